package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mosspay/pkg/account"
	"mosspay/pkg/inventory"
	"mosspay/pkg/worker"
)

// Accounts is the slice of the account service billing depends on.
type Accounts interface {
	Consumer(ctx context.Context, id int64) (account.Consumer, error)
	ConsumerByPhone(ctx context.Context, number string) (account.Consumer, error)
	Vendor(ctx context.Context, id int64) (account.Vendor, error)
	AwardPurchase(ctx context.Context, id int64, coins int, co2 float64) (account.Consumer, error)
}

// Stock is the slice of the inventory service billing depends on.
type Stock interface {
	Get(ctx context.Context, id int64) (inventory.Item, error)
	Reserve(ctx context.Context, vendorID int64, lines []inventory.Line) ([]inventory.Reserved, error)
	Release(ctx context.Context, reserved []inventory.Reserved) error
}

// Service issues and logs bills. Both run on the billing worker so a bill cannot be
// logged twice by concurrent requests.
type Service struct {
	repo     *Repository
	accounts Accounts
	stock    Stock
	queue    *worker.Queue
	now      func() time.Time
}

// Option customizes the service for tests.
type Option func(*Service)

// WithClock overrides the time source used for created_at and ages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService starts the billing worker.
func NewService(repo *Repository, accounts Accounts, stock Stock, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		accounts: accounts,
		stock:    stock,
		queue:    worker.New("billing").WithTimeout(5 * time.Second),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the worker goroutine.
func (s *Service) Close() {
	s.queue.Close()
}

// Send turns a vendor's cart into a pending bill for the consumer registered under number.
// Stock is taken for every line or for none of them.
func (s *Service) Send(ctx context.Context, vendorID int64, number string, lines []inventory.Line) (Receipt, error) {
	number = strings.TrimSpace(number)
	if number == "" || len(lines) == 0 {
		return Receipt{}, newValidationError("Missing phone number or items.")
	}
	var receipt Receipt
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		customer, err := s.accounts.ConsumerByPhone(ctx, number)
		if errors.Is(err, account.ErrNotFound) {
			return notFoundError{message: fmt.Sprintf("No MossPay user found with phone number %s.", number)}
		}
		if err != nil {
			return err
		}

		reserved, err := s.stock.Reserve(ctx, vendorID, lines)
		if err != nil {
			if inventory.IsValidation(err) {
				return newValidationError(err.Error())
			}
			return err
		}

		total, carbon := decimal.Zero, decimal.Zero
		for _, r := range reserved {
			qty := decimal.NewFromInt(int64(r.Quantity))
			total = total.Add(r.Item.Price.Mul(qty))
			carbon = carbon.Add(r.Item.CarbonSavedKG.Mul(qty))
		}

		bill, err := s.repo.InsertBill(ctx, Bill{
			VendorID:         vendorID,
			CustomerID:       customer.ID,
			TotalAmount:      total,
			TotalCarbonSaved: carbon,
			MossCoinsToAward: CoinsFor(carbon),
			Status:           StatusPending,
			CreatedAt:        s.now(),
		})
		if err != nil {
			return errors.Join(err, s.stock.Release(ctx, reserved))
		}
		for _, r := range reserved {
			line := Line{BillID: bill.ID, ItemID: r.Item.ID, Quantity: r.Quantity, PriceAtSale: r.Item.Price, CarbonAtSale: r.Item.CarbonSavedKG}
			if err := s.repo.InsertLine(ctx, line); err != nil {
				return errors.Join(err, s.repo.DeleteBill(ctx, bill.ID), s.stock.Release(ctx, reserved))
			}
		}
		receipt = Receipt{BillID: bill.ID, Message: fmt.Sprintf("Bill sent to %s!", customer.FullName)}
		return nil
	})
	return receipt, err
}

// Log credits a pending bill to the consumer it was issued to.
func (s *Service) Log(ctx context.Context, consumerID, billID int64) (LogResult, error) {
	if billID <= 0 {
		return LogResult{}, newValidationError("Missing bill ID.")
	}
	var result LogResult
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		bill, err := s.repo.Get(ctx, billID)
		if err != nil {
			return err
		}
		if bill.CustomerID != consumerID {
			return ErrForbidden
		}
		if bill.Status == StatusLogged {
			return newValidationError("This bill has already been logged.")
		}
		consumer, err := s.accounts.AwardPurchase(ctx, consumerID, bill.MossCoinsToAward, bill.TotalCarbonSaved.InexactFloat64())
		if err != nil {
			return err
		}
		if err := s.repo.SetStatus(ctx, bill.ID, StatusLogged); err != nil {
			return err
		}
		result = LogResult{Message: "Purchase logged!", NewBalance: consumer.MossCoinBalance, NewCO2Saved: consumer.TotalCO2Saved}
		return nil
	})
	return result, err
}

// Get loads one bill.
func (s *Service) Get(ctx context.Context, id int64) (Bill, error) {
	return s.repo.Get(ctx, id)
}

// Lines lists the items on one bill.
func (s *Service) Lines(ctx context.Context, billID int64) ([]Line, error) {
	return s.repo.Lines(ctx, billID)
}

// ForConsumer lists a consumer's bills with vendor names, newest first.
func (s *Service) ForConsumer(ctx context.Context, consumerID int64) ([]View, error) {
	bills, err := s.repo.ByCustomer(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	views := make([]View, 0, len(bills))
	for _, b := range bills {
		name, ok := names[b.VendorID]
		if !ok {
			v, err := s.accounts.Vendor(ctx, b.VendorID)
			if err != nil && !errors.Is(err, account.ErrNotFound) {
				return nil, err
			}
			name = v.BusinessName
			names[b.VendorID] = name
		}
		views = append(views, View{Bill: b, VendorName: name})
	}
	return views, nil
}

// ForVendor lists a vendor's bills with customer names, newest first.
func (s *Service) ForVendor(ctx context.Context, vendorID int64) ([]View, error) {
	bills, err := s.repo.ByVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	views := make([]View, 0, len(bills))
	for _, b := range bills {
		name, ok := names[b.CustomerID]
		if !ok {
			c, err := s.accounts.Consumer(ctx, b.CustomerID)
			if err != nil && !errors.Is(err, account.ErrNotFound) {
				return nil, err
			}
			name = c.FullName
			names[b.CustomerID] = name
		}
		views = append(views, View{Bill: b, CustomerName: name})
	}
	return views, nil
}

// Insights aggregates a vendor's sales, best sellers and customer ages.
func (s *Service) Insights(ctx context.Context, vendorID int64) (Insights, error) {
	bills, err := s.repo.ByVendor(ctx, vendorID)
	if err != nil {
		return Insights{}, err
	}
	out := Insights{TotalSales: decimal.Zero, TotalCO2: decimal.Zero}
	customers := map[int64]bool{}
	sold := map[string]int{}
	itemNames := map[int64]string{}
	for _, b := range bills {
		out.TotalSales = out.TotalSales.Add(b.TotalAmount)
		out.TotalCO2 = out.TotalCO2.Add(b.TotalCarbonSaved)
		customers[b.CustomerID] = true

		lines, err := s.repo.Lines(ctx, b.ID)
		if err != nil {
			return Insights{}, err
		}
		for _, l := range lines {
			name, ok := itemNames[l.ItemID]
			if !ok {
				item, err := s.stock.Get(ctx, l.ItemID)
				if errors.Is(err, inventory.ErrNotFound) {
					itemNames[l.ItemID] = ""
					continue
				}
				if err != nil {
					return Insights{}, err
				}
				name = item.Name
				itemNames[l.ItemID] = name
			}
			if name != "" {
				sold[name] += l.Quantity
			}
		}
	}
	out.TotalCustomers = len(customers)

	for name, qty := range sold {
		out.TopItems = append(out.TopItems, ItemSales{Name: name, Sold: qty})
	}
	sort.Slice(out.TopItems, func(i, j int) bool {
		if out.TopItems[i].Sold != out.TopItems[j].Sold {
			return out.TopItems[i].Sold > out.TopItems[j].Sold
		}
		return out.TopItems[i].Name < out.TopItems[j].Name
	})
	if len(out.TopItems) > 5 {
		out.TopItems = out.TopItems[:5]
	}

	ids := make([]int64, 0, len(customers))
	for id := range customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	counts := map[string]int{}
	today := s.now()
	for _, id := range ids {
		c, err := s.accounts.Consumer(ctx, id)
		if err != nil && !errors.Is(err, account.ErrNotFound) {
			return Insights{}, err
		}
		counts[ageBucket(c.DOB, today)]++
	}
	for _, label := range ageLabels {
		out.AgeBuckets = append(out.AgeBuckets, AgeBucket{Label: label, Count: counts[label]})
	}
	return out, nil
}

var ageLabels = []string{"18-25", "26-35", "36-50", "51+", "Unknown"}

func ageBucket(born, today time.Time) string {
	if born.IsZero() {
		return "Unknown"
	}
	age := today.Year() - born.Year()
	if today.Month() < born.Month() || (today.Month() == born.Month() && today.Day() < born.Day()) {
		age--
	}
	switch {
	case age >= 18 && age <= 25:
		return "18-25"
	case age >= 26 && age <= 35:
		return "26-35"
	case age >= 36 && age <= 50:
		return "36-50"
	case age >= 51:
		return "51+"
	default:
		return "Unknown"
	}
}
