package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"mosspay/pkg/catalog"
	"mosspay/pkg/worker"
)

// Service owns stock mutations on its worker goroutine so a bill can check and take
// several items without another bill slipping in between.
type Service struct {
	repo    *Repository
	catalog *catalog.Catalog
	queue   *worker.Queue
}

// NewService starts the inventory worker; carbon values come from cat.
func NewService(repo *Repository, cat *catalog.Catalog) *Service {
	return &Service{repo: repo, catalog: cat, queue: worker.New("inventory")}
}

// Close stops the worker goroutine.
func (s *Service) Close() {
	s.queue.Close()
}

// Add validates the add-item form and stores the item with its catalog carbon value.
func (s *Service) Add(ctx context.Context, vendorID int64, in NewItem) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	switch {
	case in.Name == "" || in.Unit == "":
		return Item{}, newValidationError("Please fill out all fields.")
	case in.Price.IsNegative():
		return Item{}, newValidationError("Price cannot be negative.")
	case in.Stock < 0:
		return Item{}, newValidationError("Stock cannot be negative.")
	}
	item := Item{
		VendorID:      vendorID,
		Name:          in.Name,
		Price:         in.Price,
		Unit:          in.Unit,
		Stock:         in.Stock,
		CarbonSavedKG: decimal.NewFromFloat(s.catalog.CarbonFor(in.Name)),
	}
	var stored Item
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		stored, err = s.repo.Save(ctx, item)
		return err
	})
	return stored, err
}

// Get loads one item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Get(ctx, id)
}

// ByVendor lists a vendor's items for the manage-items table.
func (s *Service) ByVendor(ctx context.Context, vendorID int64) ([]Item, error) {
	return s.repo.ByVendor(ctx, vendorID)
}

// InStock lists a vendor's items that can still be billed.
func (s *Service) InStock(ctx context.Context, vendorID int64) ([]Item, error) {
	items, err := s.repo.ByVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, item := range items {
		if item.Stock > 0 {
			out = append(out, item)
		}
	}
	return out, nil
}

// Delete removes one of the vendor's own items.
func (s *Service) Delete(ctx context.Context, vendorID, itemID int64) error {
	return s.queue.Do(ctx, func(ctx context.Context) error {
		item, err := s.repo.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if item.VendorID != vendorID {
			return ErrNotFound
		}
		return s.repo.Delete(ctx, itemID)
	})
}

// VendorsSelling returns the ids of vendors stocking an item whose name contains term.
func (s *Service) VendorsSelling(ctx context.Context, term string) ([]int64, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	seen := map[int64]bool{}
	var ids []int64
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) && !seen[item.VendorID] {
			seen[item.VendorID] = true
			ids = append(ids, item.VendorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Reserve checks every line against stock and, only if all fit, takes them out of stock.
// Items must belong to vendorID. The returned snapshot carries the prices charged.
func (s *Service) Reserve(ctx context.Context, vendorID int64, lines []Line) ([]Reserved, error) {
	if len(lines) == 0 {
		return nil, newValidationError("Missing phone number or items.")
	}
	var reserved []Reserved
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		wanted := map[int64]int{}
		var order []int64
		for _, line := range lines {
			if line.Quantity <= 0 {
				return newValidationError(fmt.Sprintf("Quantity for item ID %d must be positive.", line.ItemID))
			}
			if _, ok := wanted[line.ItemID]; !ok {
				order = append(order, line.ItemID)
			}
			wanted[line.ItemID] += line.Quantity
		}
		picked := make([]Reserved, 0, len(order))
		for _, id := range order {
			item, err := s.repo.Get(ctx, id)
			if errors.Is(err, ErrNotFound) || (err == nil && item.VendorID != vendorID) {
				return newValidationError(fmt.Sprintf("Item ID %d not found.", id))
			}
			if err != nil {
				return err
			}
			if item.Stock < wanted[id] {
				return newValidationError(fmt.Sprintf("Not enough stock for %s. Only %d left.", item.Name, item.Stock))
			}
			picked = append(picked, Reserved{Item: item, Quantity: wanted[id]})
		}
		for i, r := range picked {
			if err := s.repo.SetStock(ctx, r.Item.ID, r.Item.Stock-r.Quantity); err != nil {
				_ = s.restore(ctx, picked[:i])
				return err
			}
		}
		reserved = picked
		return nil
	})
	return reserved, err
}

// Release puts reserved quantities back, used when a bill could not be stored.
func (s *Service) Release(ctx context.Context, reserved []Reserved) error {
	return s.queue.Do(ctx, func(ctx context.Context) error {
		return s.restore(ctx, reserved)
	})
}

func (s *Service) restore(ctx context.Context, reserved []Reserved) error {
	var errs []error
	for _, r := range reserved {
		current, err := s.repo.Get(ctx, r.Item.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.repo.SetStock(ctx, r.Item.ID, current.Stock+r.Quantity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
