package memorydriver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	require.NoError(t, EnsureSchema(ctx, db))

	res, err := db.ExecContext(ctx, "INSERT INTO items (vendor_id, name, price, unit, stock, carbon_saved_kg) VALUES (?, ?, ?, ?, ?, ?)", 7, "Jute Bag", 120.5, "piece", 3, 1.5)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = db.ExecContext(ctx, "INSERT INTO items (vendor_id, name, price, unit, stock, carbon_saved_kg) VALUES (?, ?, ?, ?, ?, ?)", 8, "Oats (1kg)", 90.0, "kg", 10, 0.8)
	require.NoError(t, err)

	var name string
	var stock int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name, stock FROM items WHERE vendor_id = ?", 7).Scan(&name, &stock))
	assert.Equal(t, "Jute Bag", name)
	assert.Equal(t, 3, stock)

	res, err = db.ExecContext(ctx, "UPDATE items SET stock = ? WHERE id = ? AND vendor_id = ?", 1, id, 7)
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	require.NoError(t, db.QueryRowContext(ctx, "SELECT stock FROM items WHERE id = ?", id).Scan(&stock))
	assert.Equal(t, 1, stock)

	_, err = db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	require.NoError(t, err)

	rows, err := db.QueryContext(ctx, "SELECT id, name FROM items")
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var rowID int64
		var rowName string
		require.NoError(t, rows.Scan(&rowID, &rowName))
		names = append(names, rowName)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Oats (1kg)"}, names)
}

func TestCreatedAtIsStamped(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	require.NoError(t, EnsureSchema(ctx, db))

	before := time.Now().UTC().Add(-time.Second)
	_, err = db.ExecContext(ctx, "INSERT INTO offers (vendor_id, title, mosscoin_cost, status) VALUES (?, ?, ?, ?)", 1, "Free tote", 200, "active")
	require.NoError(t, err)

	var created time.Time
	require.NoError(t, db.QueryRowContext(ctx, "SELECT created_at FROM offers WHERE status = ?", "active").Scan(&created))
	assert.True(t, created.After(before))
}

func TestUnsupportedQueries(t *testing.T) {
	ctx := context.Background()
	db, cleanup, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	require.NoError(t, EnsureSchema(ctx, db))

	_, err = db.ExecContext(ctx, "UPDATE items SET stock = stock - 1 WHERE id = ?", 1)
	assert.Error(t, err)

	_, err = db.QueryContext(ctx, "SELECT nope FROM items")
	assert.Error(t, err)

	_, err = db.QueryContext(ctx, "SELECT id FROM ghosts")
	assert.Error(t, err)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mosspay.db.lz4")
	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)

	db, cleanup, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, db))
	_, err = db.ExecContext(ctx, "INSERT INTO consumers (fullname, email, phone, dob, mosscoin_balance, total_co2_saved) VALUES (?, ?, ?, ?, ?, ?)",
		"Asha Rao", "asha@example.com", "9876543210", dob, 150, 12.3)
	require.NoError(t, err)
	require.NoError(t, cleanup())

	db, cleanup, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	require.NoError(t, EnsureSchema(ctx, db))

	var (
		id      int64
		name    string
		born    time.Time
		balance int
		co2     float64
	)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT id, fullname, dob, mosscoin_balance, total_co2_saved FROM consumers WHERE phone = ?", "9876543210").
		Scan(&id, &name, &born, &balance, &co2))
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "Asha Rao", name)
	assert.True(t, born.Equal(dob))
	assert.Equal(t, 150, balance)
	assert.InDelta(t, 12.3, co2, 1e-9)

	res, err := db.ExecContext(ctx, "INSERT INTO consumers (fullname, email, phone) VALUES (?, ?, ?)", "Ravi", "ravi@example.com", "9000000000")
	require.NoError(t, err)
	next, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}
