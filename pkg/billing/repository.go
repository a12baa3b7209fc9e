package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	billColumns = "id, vendor_id, customer_id, total_amount, total_carbon_saved, mosscoins_to_award, status, created_at"
	lineColumns = "id, bill_id, item_id, quantity, price_at_sale, carbon_at_sale"
)

// Repository persists bills and their lines through database/sql.
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

func scanBill(row scanner) (Bill, error) {
	var (
		b      Bill
		amount float64
		carbon float64
	)
	if err := row.Scan(&b.ID, &b.VendorID, &b.CustomerID, &amount, &carbon, &b.MossCoinsToAward, &b.Status, &b.CreatedAt); err != nil {
		return Bill{}, err
	}
	b.TotalAmount = decimal.NewFromFloat(amount)
	b.TotalCarbonSaved = decimal.NewFromFloat(carbon)
	return b, nil
}

// InsertBill stores a bill; created_at is stamped by the store.
func (r *Repository) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	query := "INSERT INTO bills (vendor_id, customer_id, total_amount, total_carbon_saved, mosscoins_to_award, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, b.VendorID, b.CustomerID, b.TotalAmount.InexactFloat64(),
		b.TotalCarbonSaved.InexactFloat64(), b.MossCoinsToAward, b.Status, b.CreatedAt.UTC())
	if err != nil {
		return Bill{}, fmt.Errorf("insert bill: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Bill{}, err
	}
	b.ID = id
	return b, nil
}

// InsertLine stores one bill line.
func (r *Repository) InsertLine(ctx context.Context, l Line) error {
	query := "INSERT INTO bill_items (bill_id, item_id, quantity, price_at_sale, carbon_at_sale) VALUES (?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, l.BillID, l.ItemID, l.Quantity, l.PriceAtSale.InexactFloat64(), l.CarbonAtSale.InexactFloat64())
	if err != nil {
		return fmt.Errorf("insert line for bill %d: %w", l.BillID, err)
	}
	return nil
}

// DeleteBill removes a bill and its lines; used to undo a half-written bill.
func (r *Repository) DeleteBill(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM bill_items WHERE bill_id = ?", id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id)
	return err
}

// Get loads one bill.
func (r *Repository) Get(ctx context.Context, id int64) (Bill, error) {
	b, err := scanBill(r.db.QueryRowContext(ctx, "SELECT "+billColumns+" FROM bills WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Bill{}, ErrNotFound
	}
	return b, err
}

// SetStatus moves a bill to a new status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE bills SET status = ? WHERE id = ?", status, id)
	return err
}

// ByCustomer lists a consumer's bills, newest first.
func (r *Repository) ByCustomer(ctx context.Context, customerID int64) ([]Bill, error) {
	return r.queryBills(ctx, "SELECT "+billColumns+" FROM bills WHERE customer_id = ?", customerID)
}

// ByVendor lists a vendor's bills, newest first.
func (r *Repository) ByVendor(ctx context.Context, vendorID int64) ([]Bill, error) {
	return r.queryBills(ctx, "SELECT "+billColumns+" FROM bills WHERE vendor_id = ?", vendorID)
}

func (r *Repository) queryBills(ctx context.Context, query string, args ...any) ([]Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].CreatedAt.Equal(bills[j].CreatedAt) {
			return bills[i].CreatedAt.After(bills[j].CreatedAt)
		}
		return bills[i].ID > bills[j].ID
	})
	return bills, nil
}

// Lines returns the lines of one bill.
func (r *Repository) Lines(ctx context.Context, billID int64) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+lineColumns+" FROM bill_items WHERE bill_id = ?", billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			l      Line
			price  float64
			carbon float64
		)
		if err := rows.Scan(&l.ID, &l.BillID, &l.ItemID, &l.Quantity, &price, &carbon); err != nil {
			return nil, err
		}
		l.PriceAtSale = decimal.NewFromFloat(price)
		l.CarbonAtSale = decimal.NewFromFloat(carbon)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
