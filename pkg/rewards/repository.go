package rewards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const offerColumns = "id, vendor_id, title, description, mosscoin_cost, status, created_at"

// Repository persists offers through database/sql.
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

func scanOffer(row scanner) (Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.VendorID, &o.Title, &o.Description, &o.MossCoinCost, &o.Status, &o.CreatedAt)
	return o, err
}

// Insert stores a new offer.
func (r *Repository) Insert(ctx context.Context, o Offer) (Offer, error) {
	query := "INSERT INTO offers (vendor_id, title, description, mosscoin_cost, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, o.VendorID, o.Title, o.Description, o.MossCoinCost, o.Status, o.CreatedAt.UTC())
	if err != nil {
		return Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Offer{}, err
	}
	o.ID = id
	return o, nil
}

// Get loads one offer.
func (r *Repository) Get(ctx context.Context, id int64) (Offer, error) {
	o, err := scanOffer(r.db.QueryRowContext(ctx, "SELECT "+offerColumns+" FROM offers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	return o, err
}

// ByStatus lists offers in one status, oldest first.
func (r *Repository) ByStatus(ctx context.Context, status string) ([]Offer, error) {
	return r.query(ctx, "SELECT "+offerColumns+" FROM offers WHERE status = ?", status)
}

// ByVendorStatus lists one vendor's offers in one status.
func (r *Repository) ByVendorStatus(ctx context.Context, vendorID int64, status string) ([]Offer, error) {
	return r.query(ctx, "SELECT "+offerColumns+" FROM offers WHERE vendor_id = ? AND status = ?", vendorID, status)
}

// SetStatus changes an offer's status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE offers SET status = ? WHERE id = ?", status, id)
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

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Offer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
