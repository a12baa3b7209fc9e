package rewards

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"mosspay/pkg/account"
	"mosspay/pkg/catalog"
	"mosspay/pkg/worker"
)

// Accounts is the slice of the account service rewards depends on.
type Accounts interface {
	Vendor(ctx context.Context, id int64) (account.Vendor, error)
	Debit(ctx context.Context, id int64, cost int) (account.Consumer, error)
}

// Service manages vendor offers and spends MossCoins on rewards.
type Service struct {
	repo     *Repository
	catalog  *catalog.Catalog
	accounts Accounts
	queue    *worker.Queue
	now      func() time.Time
}

// NewService starts the rewards worker.
func NewService(repo *Repository, cat *catalog.Catalog, accounts Accounts) *Service {
	return &Service{
		repo:     repo,
		catalog:  cat,
		accounts: accounts,
		queue:    worker.New("rewards"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close stops the worker goroutine.
func (s *Service) Close() {
	s.queue.Close()
}

// Government lists the platform reward schemes.
func (s *Service) Government() []catalog.Reward {
	return s.catalog.Rewards
}

// CreateOffer publishes a new active offer for the vendor.
func (s *Service) CreateOffer(ctx context.Context, vendorID int64, in NewOffer) (Offer, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return Offer{}, newValidationError("Offer title is required.")
	}
	if in.MossCoinCost <= 0 {
		return Offer{}, newValidationError("MossCoin cost must be a positive number.")
	}
	var created Offer
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Insert(ctx, Offer{
			VendorID:     vendorID,
			Title:        in.Title,
			Description:  in.Description,
			MossCoinCost: in.MossCoinCost,
			Status:       StatusActive,
			CreatedAt:    s.now(),
		})
		return err
	})
	return created, err
}

// ExpireOffer withdraws one of the vendor's own offers.
func (s *Service) ExpireOffer(ctx context.Context, vendorID, offerID int64) error {
	return s.queue.Do(ctx, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, offerID)
		if err != nil {
			return err
		}
		if o.VendorID != vendorID {
			return ErrNotFound
		}
		return s.repo.SetStatus(ctx, offerID, StatusExpired)
	})
}

// VendorOffers lists a vendor's active offers.
func (s *Service) VendorOffers(ctx context.Context, vendorID int64) ([]Offer, error) {
	return s.repo.ByVendorStatus(ctx, vendorID, StatusActive)
}

// ActiveOffers lists every active offer with its vendor's business name.
func (s *Service) ActiveOffers(ctx context.Context) ([]Listing, error) {
	offers, err := s.repo.ByStatus(ctx, StatusActive)
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	listings := make([]Listing, 0, len(offers))
	for _, o := range offers {
		name, ok := names[o.VendorID]
		if !ok {
			v, err := s.accounts.Vendor(ctx, o.VendorID)
			if errors.Is(err, account.ErrNotFound) {
				names[o.VendorID] = ""
				continue
			}
			if err != nil {
				return nil, err
			}
			name = v.BusinessName
			names[o.VendorID] = name
		}
		if name == "" {
			continue
		}
		listings = append(listings, Listing{Offer: o, VendorName: name})
	}
	return listings, nil
}

// Cost resolves a reward id to its MossCoin price.
func (s *Service) Cost(ctx context.Context, rewardID string) (int, error) {
	rewardID = strings.TrimSpace(rewardID)
	switch {
	case rewardID == "":
		return 0, newValidationError("Missing reward ID.")
	case strings.HasPrefix(rewardID, GovernmentPrefix):
		r, ok := s.catalog.Reward(rewardID)
		if !ok {
			return 0, ErrRewardNotFound
		}
		return r.Cost, nil
	case strings.HasPrefix(rewardID, OfferPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(rewardID, OfferPrefix), 10, 64)
		if err != nil {
			return 0, ErrOfferUnavailable
		}
		o, err := s.repo.Get(ctx, id)
		if errors.Is(err, ErrNotFound) || (err == nil && o.Status != StatusActive) {
			return 0, ErrOfferUnavailable
		}
		if err != nil {
			return 0, err
		}
		return o.MossCoinCost, nil
	default:
		return 0, newValidationError("Invalid reward type.")
	}
}

// Redeem spends the consumer's MossCoins on a government scheme or vendor offer.
func (s *Service) Redeem(ctx context.Context, consumerID int64, rewardID string) (Redemption, error) {
	cost, err := s.Cost(ctx, rewardID)
	if err != nil {
		return Redemption{}, err
	}
	c, err := s.accounts.Debit(ctx, consumerID, cost)
	if err != nil {
		if account.IsValidation(err) {
			return Redemption{}, newValidationError(err.Error())
		}
		return Redemption{}, err
	}
	return Redemption{Message: "Reward redeemed!", NewBalance: c.MossCoinBalance}, nil
}
