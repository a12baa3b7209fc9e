package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosspay/pkg/catalog"
	"mosspay/pkg/storage/memorydriver"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, cleanup, err := memorydriver.Open("")
	require.NoError(t, err)
	require.NoError(t, memorydriver.EnsureSchema(context.Background(), db))
	cat, err := catalog.Default()
	require.NoError(t, err)
	svc := NewService(NewRepository(db), cat)
	t.Cleanup(func() {
		svc.Close()
		_ = cleanup()
	})
	return svc
}

func TestAddUsesCatalogCarbon(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, 1, NewItem{Name: "jute bag", Price: decimal.RequireFromString("120.50"), Unit: "piece", Stock: 4})
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.True(t, item.CarbonSavedKG.Equal(decimal.RequireFromString("1.5")))

	unknown, err := svc.Add(ctx, 1, NewItem{Name: "Mystery Box", Price: decimal.NewFromInt(10), Unit: "box", Stock: 1})
	require.NoError(t, err)
	assert.True(t, unknown.CarbonSavedKG.IsZero())

	loaded, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Price.Equal(decimal.RequireFromString("120.5")))
	assert.Equal(t, "piece", loaded.Unit)
}

func TestAddValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, 1, NewItem{Name: "", Price: decimal.NewFromInt(1), Unit: "kg", Stock: 1})
	assert.True(t, IsValidation(err))
	_, err = svc.Add(ctx, 1, NewItem{Name: "Oats (1kg)", Price: decimal.NewFromInt(-1), Unit: "kg", Stock: 1})
	assert.True(t, IsValidation(err))
	_, err = svc.Add(ctx, 1, NewItem{Name: "Oats (1kg)", Price: decimal.NewFromInt(1), Unit: "kg", Stock: -2})
	assert.True(t, IsValidation(err))
}

func TestInStockAndDiscovery(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, 1, NewItem{Name: "Oat Milk (1L)", Price: decimal.NewFromInt(90), Unit: "l", Stock: 0})
	require.NoError(t, err)
	_, err = svc.Add(ctx, 1, NewItem{Name: "Tofu (1kg)", Price: decimal.NewFromInt(200), Unit: "kg", Stock: 2})
	require.NoError(t, err)
	_, err = svc.Add(ctx, 2, NewItem{Name: "Soy Milk (1L)", Price: decimal.NewFromInt(80), Unit: "l", Stock: 5})
	require.NoError(t, err)

	stocked, err := svc.InStock(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stocked, 1)
	assert.Equal(t, "Tofu (1kg)", stocked[0].Name)

	vendors, err := svc.VendorsSelling(ctx, "MILK")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, vendors)
}

func TestReserveAllOrNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	bag, err := svc.Add(ctx, 1, NewItem{Name: "Jute Bag", Price: decimal.NewFromInt(100), Unit: "piece", Stock: 3})
	require.NoError(t, err)
	soap, err := svc.Add(ctx, 1, NewItem{Name: "Bar Soap (100g)", Price: decimal.NewFromInt(40), Unit: "piece", Stock: 1})
	require.NoError(t, err)
	foreign, err := svc.Add(ctx, 2, NewItem{Name: "Oats (1kg)", Price: decimal.NewFromInt(60), Unit: "kg", Stock: 9})
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, 1, []Line{{ItemID: bag.ID, Quantity: 2}, {ItemID: soap.ID, Quantity: 2}})
	assert.EqualError(t, err, "Not enough stock for Bar Soap (100g). Only 1 left.")
	unchanged, err := svc.Get(ctx, bag.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, unchanged.Stock)

	_, err = svc.Reserve(ctx, 1, []Line{{ItemID: foreign.ID, Quantity: 1}})
	assert.EqualError(t, err, "Item ID 3 not found.")

	_, err = svc.Reserve(ctx, 1, []Line{{ItemID: 99, Quantity: 1}})
	assert.EqualError(t, err, "Item ID 99 not found.")

	reserved, err := svc.Reserve(ctx, 1, []Line{{ItemID: bag.ID, Quantity: 2}, {ItemID: soap.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, reserved, 2)

	after, err := svc.Get(ctx, bag.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Stock)

	require.NoError(t, svc.Release(ctx, reserved))
	restored, err := svc.Get(ctx, bag.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Stock)
}

func TestDeleteOnlyOwnItems(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, 1, NewItem{Name: "Jute Bag", Price: decimal.NewFromInt(100), Unit: "piece", Stock: 3})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 2, item.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 1, item.ID))
	_, err = svc.Get(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
