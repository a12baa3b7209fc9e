package account

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mosspay/pkg/phone"
	"mosspay/pkg/worker"
)

// Service owns every consumer and vendor mutation. Uniqueness checks and balance changes run
// on the worker goroutine so two requests can never interleave between read and write.
type Service struct {
	repo     *Repository
	queue    *worker.Queue
	hashCost int
}

// Option customizes the service for tests.
type Option func(*Service)

// WithHashCost lowers the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.hashCost = cost
		}
	}
}

// NewService starts the account worker.
func NewService(repo *Repository, opts ...Option) *Service {
	s := &Service{repo: repo, queue: worker.New("account"), hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the worker goroutine.
func (s *Service) Close() {
	s.queue.Close()
}

// RegisterConsumer validates the sign-up form and stores the consumer with the welcome balance.
func (s *Service) RegisterConsumer(ctx context.Context, reg ConsumerRegistration) (Consumer, error) {
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Phone = strings.TrimSpace(reg.Phone)
	switch {
	case reg.FullName == "" || reg.Email == "" || reg.Phone == "" || reg.DOB == "" || reg.Password == "":
		return Consumer{}, newValidationError("Please fill out all fields.")
	case reg.Password != reg.ConfirmPassword:
		return Consumer{}, newValidationError("Passwords do not match. Please try again.")
	}
	if err := phone.Validate(reg.Phone); err != nil {
		return Consumer{}, newValidationError(err.Error())
	}
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(reg.DOB))
	if err != nil {
		return Consumer{}, newValidationError("Date of birth must be YYYY-MM-DD.")
	}
	hash, err := s.hash(reg.Password)
	if err != nil {
		return Consumer{}, err
	}

	var stored Consumer
	err = s.queue.Do(ctx, func(ctx context.Context) error {
		if _, err := s.repo.ConsumerBy(ctx, "email", reg.Email); err == nil {
			return newValidationError("An account with this email already exists.")
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := s.repo.ConsumerBy(ctx, "phone", reg.Phone); err == nil {
			return newValidationError("An account with this phone number already exists.")
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		var err error
		stored, err = s.repo.InsertConsumer(ctx, Consumer{
			FullName:        reg.FullName,
			Email:           reg.Email,
			Phone:           reg.Phone,
			DOB:             dob,
			PasswordHash:    hash,
			MossCoinBalance: StartingBalance,
			TotalCO2Saved:   StartingCO2Saved,
			GreenPurchases:  StartingGreenPurchases,
			EcoStreak:       StartingEcoStreak,
			Rank:            StartingRank,
		})
		return err
	})
	return stored, err
}

// RegisterVendor validates the vendor sign-up form and stores the vendor.
func (s *Service) RegisterVendor(ctx context.Context, reg VendorRegistration) (Vendor, error) {
	reg.BusinessName = strings.TrimSpace(reg.BusinessName)
	reg.Email = strings.TrimSpace(reg.Email)
	switch {
	case reg.BusinessName == "" || strings.TrimSpace(reg.ContactName) == "" || reg.Email == "" ||
		strings.TrimSpace(reg.Mobile) == "" || strings.TrimSpace(reg.Address) == "" || reg.Password == "":
		return Vendor{}, newValidationError("Please fill out all fields.")
	case reg.Password != reg.ConfirmPassword:
		return Vendor{}, newValidationError("Passwords do not match. Please try again.")
	}
	hash, err := s.hash(reg.Password)
	if err != nil {
		return Vendor{}, err
	}

	var stored Vendor
	err = s.queue.Do(ctx, func(ctx context.Context) error {
		if _, err := s.repo.VendorBy(ctx, "email", reg.Email); err == nil {
			return newValidationError("An account with this email already exists.")
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		var err error
		stored, err = s.repo.InsertVendor(ctx, Vendor{
			BusinessName: reg.BusinessName,
			ContactName:  strings.TrimSpace(reg.ContactName),
			Mobile:       strings.TrimSpace(reg.Mobile),
			UdyamID:      strings.TrimSpace(reg.UdyamID),
			Address:      strings.TrimSpace(reg.Address),
			Email:        reg.Email,
			PasswordHash: hash,
		})
		return err
	})
	return stored, err
}

// AuthenticateConsumer checks an email/password pair.
func (s *Service) AuthenticateConsumer(ctx context.Context, email, password string) (Consumer, error) {
	c, err := s.repo.ConsumerBy(ctx, "email", strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return Consumer{}, ErrInvalidCredentials
	}
	if err != nil {
		return Consumer{}, err
	}
	if !checkPassword(c.PasswordHash, password) {
		return Consumer{}, ErrInvalidCredentials
	}
	return c, nil
}

// AuthenticateVendor checks an email/password pair.
func (s *Service) AuthenticateVendor(ctx context.Context, email, password string) (Vendor, error) {
	v, err := s.repo.VendorBy(ctx, "email", strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return Vendor{}, ErrInvalidCredentials
	}
	if err != nil {
		return Vendor{}, err
	}
	if !checkPassword(v.PasswordHash, password) {
		return Vendor{}, ErrInvalidCredentials
	}
	return v, nil
}

// Consumer loads a consumer by id.
func (s *Service) Consumer(ctx context.Context, id int64) (Consumer, error) {
	return s.repo.ConsumerBy(ctx, "id", id)
}

// ConsumerByPhone finds the consumer a bill is addressed to.
func (s *Service) ConsumerByPhone(ctx context.Context, number string) (Consumer, error) {
	return s.repo.ConsumerBy(ctx, "phone", strings.TrimSpace(number))
}

// Vendor loads a vendor by id.
func (s *Service) Vendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.VendorBy(ctx, "id", id)
}

// Vendors lists every vendor, used by vendor discovery.
func (s *Service) Vendors(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListVendors(ctx)
}

// ChangeConsumerPassword replaces the hash when the old password matches.
func (s *Service) ChangeConsumerPassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return newValidationError("New password is required.")
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.queue.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.ConsumerBy(ctx, "id", id)
		if err != nil {
			return err
		}
		if !checkPassword(c.PasswordHash, oldPassword) {
			return newValidationError("Old password is not correct.")
		}
		c.PasswordHash = hash
		return s.repo.UpdateConsumer(ctx, c)
	})
}

// ChangeVendorPassword replaces the hash when the old password matches.
func (s *Service) ChangeVendorPassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if newPassword == "" {
		return newValidationError("New password is required.")
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.queue.Do(ctx, func(ctx context.Context) error {
		v, err := s.repo.VendorBy(ctx, "id", id)
		if err != nil {
			return err
		}
		if !checkPassword(v.PasswordHash, oldPassword) {
			return newValidationError("Old password is not correct.")
		}
		v.PasswordHash = hash
		return s.repo.UpdateVendor(ctx, v)
	})
}

// UpdateConsumerProfile edits the settings page fields.
func (s *Service) UpdateConsumerProfile(ctx context.Context, id int64, fullName, email, number string) (Consumer, error) {
	fullName, email, number = strings.TrimSpace(fullName), strings.TrimSpace(email), strings.TrimSpace(number)
	if fullName == "" || email == "" || number == "" {
		return Consumer{}, newValidationError("Please fill out all fields.")
	}
	if err := phone.Validate(number); err != nil {
		return Consumer{}, newValidationError(err.Error())
	}
	var updated Consumer
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.ConsumerBy(ctx, "id", id)
		if err != nil {
			return err
		}
		if other, err := s.repo.ConsumerBy(ctx, "email", email); err == nil && other.ID != id {
			return newValidationError("An account with this email already exists.")
		}
		if other, err := s.repo.ConsumerBy(ctx, "phone", number); err == nil && other.ID != id {
			return newValidationError("An account with this phone number already exists.")
		}
		c.FullName, c.Email, c.Phone = fullName, email, number
		updated = c
		return s.repo.UpdateConsumer(ctx, c)
	})
	return updated, err
}

// UpdateVendorProfile edits the public shop profile.
func (s *Service) UpdateVendorProfile(ctx context.Context, id int64, p VendorProfile) (Vendor, error) {
	if strings.TrimSpace(p.BusinessName) == "" {
		return Vendor{}, newValidationError("Business name is required.")
	}
	var updated Vendor
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		v, err := s.repo.VendorBy(ctx, "id", id)
		if err != nil {
			return err
		}
		v.BusinessName = strings.TrimSpace(p.BusinessName)
		v.ContactName = strings.TrimSpace(p.ContactName)
		v.Mobile = strings.TrimSpace(p.Mobile)
		v.Address = strings.TrimSpace(p.Address)
		v.ShopCategory = strings.TrimSpace(p.ShopCategory)
		v.Description = strings.TrimSpace(p.Description)
		v.LogoURL = strings.TrimSpace(p.LogoURL)
		v.WebsiteURL = strings.TrimSpace(p.WebsiteURL)
		updated = v
		return s.repo.UpdateVendor(ctx, v)
	})
	return updated, err
}

// UpdateVendorAccount edits the contact details on the vendor settings page.
func (s *Service) UpdateVendorAccount(ctx context.Context, id int64, contactName, email, mobile string) (Vendor, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Vendor{}, newValidationError("Email is required.")
	}
	var updated Vendor
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		v, err := s.repo.VendorBy(ctx, "id", id)
		if err != nil {
			return err
		}
		if other, err := s.repo.VendorBy(ctx, "email", email); err == nil && other.ID != id {
			return newValidationError("An account with this email already exists.")
		}
		v.ContactName = strings.TrimSpace(contactName)
		v.Email = email
		v.Mobile = strings.TrimSpace(mobile)
		updated = v
		return s.repo.UpdateVendor(ctx, v)
	})
	return updated, err
}

// AwardPurchase credits a logged bill: coins, CO2 and one more green purchase.
func (s *Service) AwardPurchase(ctx context.Context, id int64, coins int, co2 float64) (Consumer, error) {
	var updated Consumer
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.ConsumerBy(ctx, "id", id)
		if err != nil {
			return err
		}
		c.MossCoinBalance += coins
		c.TotalCO2Saved += co2
		c.GreenPurchases++
		updated = c
		return s.repo.UpdateConsumer(ctx, c)
	})
	return updated, err
}

// Debit spends MossCoins; the balance never goes negative.
func (s *Service) Debit(ctx context.Context, id int64, cost int) (Consumer, error) {
	if cost < 0 {
		return Consumer{}, fmt.Errorf("debit: negative cost %d", cost)
	}
	var updated Consumer
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		c, err := s.repo.ConsumerBy(ctx, "id", id)
		if err != nil {
			return err
		}
		if c.MossCoinBalance < cost {
			return newValidationError("Not enough MossCoins!")
		}
		c.MossCoinBalance -= cost
		updated = c
		return s.repo.UpdateConsumer(ctx, c)
	})
	return updated, err
}

// Leaderboard ranks consumers by CO2 saved, highest first.
func (s *Service) Leaderboard(ctx context.Context) ([]Consumer, error) {
	consumers, err := s.repo.ListConsumers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(consumers, func(i, j int) bool {
		return consumers[i].TotalCO2Saved > consumers[j].TotalCO2Saved
	})
	return consumers, nil
}

// SproutFor reports how far the current tree has grown and how many are planted.
func SproutFor(c Consumer) Sprout {
	current := math.Mod(c.TotalCO2Saved, SproutGoalKG)
	return Sprout{
		GrowthPercent: current / SproutGoalKG * 100,
		TreesPlanted:  int(math.Floor(c.TotalCO2Saved / SproutGoalKG)),
	}
}

// ReferralCode is the first five letters of the first name, upper-cased, followed by id*3.
func ReferralCode(c Consumer) string {
	first := strings.ToUpper(strings.Split(c.FullName, " ")[0])
	if runes := []rune(first); len(runes) > 5 {
		first = string(runes[:5])
	}
	return fmt.Sprintf("%s%d", first, c.ID*3)
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
