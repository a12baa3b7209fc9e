package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	consumerColumns = "id, fullname, email, phone, dob, password_hash, mosscoin_balance, total_co2_saved, green_purchases, eco_streak, rank"
	vendorColumns   = "id, business_name, contact_name, mobile, udyam_id, address, email, password_hash, description, logo_url, shop_category, website_url"
)

// Repository persists consumers and vendors through database/sql.
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

func scanConsumer(row scanner) (Consumer, error) {
	var c Consumer
	err := row.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.DOB, &c.PasswordHash,
		&c.MossCoinBalance, &c.TotalCO2Saved, &c.GreenPurchases, &c.EcoStreak, &c.Rank)
	return c, err
}

func scanVendor(row scanner) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.BusinessName, &v.ContactName, &v.Mobile, &v.UdyamID, &v.Address,
		&v.Email, &v.PasswordHash, &v.Description, &v.LogoURL, &v.ShopCategory, &v.WebsiteURL)
	return v, err
}

// InsertConsumer stores a new consumer and returns it with its id.
func (r *Repository) InsertConsumer(ctx context.Context, c Consumer) (Consumer, error) {
	query := "INSERT INTO consumers (fullname, email, phone, dob, password_hash, mosscoin_balance, total_co2_saved, green_purchases, eco_streak, rank) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, c.FullName, c.Email, c.Phone, c.DOB.UTC(), c.PasswordHash,
		c.MossCoinBalance, c.TotalCO2Saved, c.GreenPurchases, c.EcoStreak, c.Rank)
	if err != nil {
		return Consumer{}, fmt.Errorf("insert consumer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Consumer{}, err
	}
	c.ID = id
	return c, nil
}

// ConsumerBy fetches the first consumer whose column equals value.
func (r *Repository) ConsumerBy(ctx context.Context, column string, value any) (Consumer, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+consumerColumns+" FROM consumers WHERE "+column+" = ?", value)
	c, err := scanConsumer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Consumer{}, ErrNotFound
	}
	return c, err
}

// ListConsumers returns every consumer in insertion order.
func (r *Repository) ListConsumers(ctx context.Context) ([]Consumer, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+consumerColumns+" FROM consumers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Consumer
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateConsumer rewrites every mutable consumer column.
func (r *Repository) UpdateConsumer(ctx context.Context, c Consumer) error {
	query := "UPDATE consumers SET fullname = ?, email = ?, phone = ?, password_hash = ?, mosscoin_balance = ?, total_co2_saved = ?, green_purchases = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, c.FullName, c.Email, c.Phone, c.PasswordHash,
		c.MossCoinBalance, c.TotalCO2Saved, c.GreenPurchases, c.ID)
	if err != nil {
		return fmt.Errorf("update consumer %d: %w", c.ID, err)
	}
	return requireAffected(res)
}

// InsertVendor stores a new vendor and returns it with its id.
func (r *Repository) InsertVendor(ctx context.Context, v Vendor) (Vendor, error) {
	query := "INSERT INTO vendors (business_name, contact_name, mobile, udyam_id, address, email, password_hash, description, logo_url, shop_category, website_url) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, v.BusinessName, v.ContactName, v.Mobile, v.UdyamID, v.Address,
		v.Email, v.PasswordHash, v.Description, v.LogoURL, v.ShopCategory, v.WebsiteURL)
	if err != nil {
		return Vendor{}, fmt.Errorf("insert vendor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Vendor{}, err
	}
	v.ID = id
	return v, nil
}

// VendorBy fetches the first vendor whose column equals value.
func (r *Repository) VendorBy(ctx context.Context, column string, value any) (Vendor, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE "+column+" = ?", value)
	v, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Vendor{}, ErrNotFound
	}
	return v, err
}

// ListVendors returns every vendor in insertion order.
func (r *Repository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+vendorColumns+" FROM vendors")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVendor rewrites every mutable vendor column.
func (r *Repository) UpdateVendor(ctx context.Context, v Vendor) error {
	query := "UPDATE vendors SET business_name = ?, contact_name = ?, mobile = ?, address = ?, email = ?, password_hash = ?, description = ?, logo_url = ?, shop_category = ?, website_url = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, v.BusinessName, v.ContactName, v.Mobile, v.Address, v.Email,
		v.PasswordHash, v.Description, v.LogoURL, v.ShopCategory, v.WebsiteURL, v.ID)
	if err != nil {
		return fmt.Errorf("update vendor %d: %w", v.ID, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
