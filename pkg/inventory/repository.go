package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const itemColumns = "id, vendor_id, name, price, unit, stock, carbon_saved_kg"

// Repository persists items through database/sql so storage backends stay swappable.
type Repository struct {
	db *sql.DB
}

// NewRepository wires the handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (Item, error) {
	var (
		item   Item
		price  float64
		carbon float64
	)
	if err := row.Scan(&item.ID, &item.VendorID, &item.Name, &price, &item.Unit, &item.Stock, &carbon); err != nil {
		return Item{}, err
	}
	item.Price = decimal.NewFromFloat(price)
	item.CarbonSavedKG = decimal.NewFromFloat(carbon)
	return item, nil
}

// Save inserts a new item and returns it with its generated id.
func (r *Repository) Save(ctx context.Context, item Item) (Item, error) {
	query := "INSERT INTO items (vendor_id, name, price, unit, stock, carbon_saved_kg) VALUES (?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, item.VendorID, item.Name, item.Price.InexactFloat64(), item.Unit, item.Stock, item.CarbonSavedKG.InexactFloat64())
	if err != nil {
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Item{}, err
	}
	item.ID = id
	return item, nil
}

// Get loads one item.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

// ByVendor lists one vendor's items in insertion order.
func (r *Repository) ByVendor(ctx context.Context, vendorID int64) ([]Item, error) {
	return r.query(ctx, "SELECT "+itemColumns+" FROM items WHERE vendor_id = ?", vendorID)
}

// List returns every item across vendors.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	return r.query(ctx, "SELECT "+itemColumns+" FROM items")
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetStock overwrites the stock count of one item.
func (r *Repository) SetStock(ctx context.Context, id int64, stock int) error {
	res, err := r.db.ExecContext(ctx, "UPDATE items SET stock = ? WHERE id = ?", stock, id)
	if err != nil {
		return fmt.Errorf("update stock for item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an item.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
