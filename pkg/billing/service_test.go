package billing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"mosspay/pkg/account"
	"mosspay/pkg/catalog"
	"mosspay/pkg/inventory"
	"mosspay/pkg/storage/memorydriver"
)

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type fixture struct {
	billing  *Service
	accounts *account.Service
	stock    *inventory.Service
	vendor   account.Vendor
	asha     account.Consumer
	bag      inventory.Item
	lentils  inventory.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, cleanup, err := memorydriver.Open("")
	require.NoError(t, err)
	require.NoError(t, memorydriver.EnsureSchema(ctx, db))
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		accounts: account.NewService(account.NewRepository(db), account.WithHashCost(bcrypt.MinCost)),
		stock:    inventory.NewService(inventory.NewRepository(db), cat),
	}
	f.billing = NewService(NewRepository(db), f.accounts, f.stock, WithClock(func() time.Time { return testNow }))
	t.Cleanup(func() {
		f.billing.Close()
		f.stock.Close()
		f.accounts.Close()
		_ = cleanup()
	})

	f.vendor, err = f.accounts.RegisterVendor(ctx, account.VendorRegistration{
		BusinessName: "Green Grocer", ContactName: "Meera", Email: "shop@example.com",
		Mobile: "9111111111", Address: "12 Market Road", Password: "shop", ConfirmPassword: "shop",
	})
	require.NoError(t, err)
	f.asha, err = f.accounts.RegisterConsumer(ctx, account.ConsumerRegistration{
		FullName: "Asha Rao", Email: "asha@example.com", Phone: "9876543210",
		DOB: "1995-06-01", Password: "pw", ConfirmPassword: "pw",
	})
	require.NoError(t, err)

	f.bag, err = f.stock.Add(ctx, f.vendor.ID, inventory.NewItem{Name: "Jute Bag", Price: decimal.RequireFromString("120.50"), Unit: "piece", Stock: 5})
	require.NoError(t, err)
	f.lentils, err = f.stock.Add(ctx, f.vendor.ID, inventory.NewItem{Name: "Lentils (1kg)", Price: decimal.NewFromInt(95), Unit: "kg", Stock: 2})
	require.NoError(t, err)
	return f
}

func (f *fixture) sendDefault(t *testing.T) Receipt {
	t.Helper()
	receipt, err := f.billing.Send(context.Background(), f.vendor.ID, "9876543210", []inventory.Line{
		{ItemID: f.bag.ID, Quantity: 2},
		{ItemID: f.lentils.ID, Quantity: 1},
	})
	require.NoError(t, err)
	return receipt
}

func TestSendCreatesPendingBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	receipt := f.sendDefault(t)
	assert.Equal(t, "Bill sent to Asha Rao!", receipt.Message)

	bill, err := f.billing.Get(ctx, receipt.BillID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, bill.Status)
	assert.Equal(t, f.asha.ID, bill.CustomerID)
	assert.True(t, bill.TotalAmount.Equal(decimal.NewFromInt(336)), bill.TotalAmount.String())
	assert.True(t, bill.TotalCarbonSaved.Equal(decimal.RequireFromString("3.9")), bill.TotalCarbonSaved.String())
	assert.Equal(t, 39, bill.MossCoinsToAward)
	assert.True(t, bill.CreatedAt.Equal(testNow))

	lines, err := f.billing.Lines(ctx, receipt.BillID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	bag, err := f.stock.Get(ctx, f.bag.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, bag.Stock)
}

func TestSendRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.billing.Send(ctx, f.vendor.ID, "", []inventory.Line{{ItemID: f.bag.ID, Quantity: 1}})
	assert.EqualError(t, err, "Missing phone number or items.")
	assert.True(t, IsValidation(err))

	_, err = f.billing.Send(ctx, f.vendor.ID, "9876543210", nil)
	assert.EqualError(t, err, "Missing phone number or items.")

	_, err = f.billing.Send(ctx, f.vendor.ID, "9000000000", []inventory.Line{{ItemID: f.bag.ID, Quantity: 1}})
	assert.EqualError(t, err, "No MossPay user found with phone number 9000000000.")
	assert.True(t, IsNotFound(err))

	_, err = f.billing.Send(ctx, f.vendor.ID, "9876543210", []inventory.Line{{ItemID: 404, Quantity: 1}})
	assert.EqualError(t, err, "Item ID 404 not found.")
	assert.True(t, IsValidation(err))

	_, err = f.billing.Send(ctx, f.vendor.ID, "9876543210", []inventory.Line{
		{ItemID: f.bag.ID, Quantity: 1},
		{ItemID: f.lentils.ID, Quantity: 3},
	})
	assert.EqualError(t, err, "Not enough stock for Lentils (1kg). Only 2 left.")

	bag, err := f.stock.Get(ctx, f.bag.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, bag.Stock)

	views, err := f.billing.ForVendor(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestLogAwardsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	receipt := f.sendDefault(t)

	_, err := f.billing.Log(ctx, f.asha.ID, 0)
	assert.EqualError(t, err, "Missing bill ID.")

	_, err = f.billing.Log(ctx, f.asha.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.billing.Log(ctx, f.asha.ID+100, receipt.BillID)
	assert.ErrorIs(t, err, ErrForbidden)

	result, err := f.billing.Log(ctx, f.asha.ID, receipt.BillID)
	require.NoError(t, err)
	assert.Equal(t, "Purchase logged!", result.Message)
	assert.Equal(t, account.StartingBalance+39, result.NewBalance)
	assert.InDelta(t, account.StartingCO2Saved+3.9, result.NewCO2Saved, 1e-9)

	_, err = f.billing.Log(ctx, f.asha.ID, receipt.BillID)
	assert.EqualError(t, err, "This bill has already been logged.")

	consumer, err := f.accounts.Consumer(ctx, f.asha.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StartingBalance+39, consumer.MossCoinBalance)
}

func TestHistoryViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.sendDefault(t)
	second, err := f.billing.Send(ctx, f.vendor.ID, "9876543210", []inventory.Line{{ItemID: f.bag.ID, Quantity: 1}})
	require.NoError(t, err)

	mine, err := f.billing.ForConsumer(ctx, f.asha.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.BillID, mine[0].ID)
	assert.Equal(t, first.BillID, mine[1].ID)
	assert.Equal(t, "Green Grocer", mine[0].VendorName)

	theirs, err := f.billing.ForVendor(ctx, f.vendor.ID)
	require.NoError(t, err)
	require.Len(t, theirs, 2)
	assert.Equal(t, "Asha Rao", theirs[0].CustomerName)
}

func TestInsights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sendDefault(t)
	_, err := f.billing.Send(ctx, f.vendor.ID, "9876543210", []inventory.Line{{ItemID: f.bag.ID, Quantity: 1}})
	require.NoError(t, err)

	in, err := f.billing.Insights(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.True(t, in.TotalSales.Equal(decimal.RequireFromString("456.5")), in.TotalSales.String())
	assert.Equal(t, 1, in.TotalCustomers)
	assert.True(t, in.TotalCO2.Equal(decimal.RequireFromString("5.4")), in.TotalCO2.String())
	require.Len(t, in.TopItems, 2)
	assert.Equal(t, ItemSales{Name: "Jute Bag", Sold: 3}, in.TopItems[0])
	assert.Equal(t, ItemSales{Name: "Lentils (1kg)", Sold: 1}, in.TopItems[1])

	counts := map[string]int{}
	for _, b := range in.AgeBuckets {
		counts[b.Label] = b.Count
	}
	assert.Len(t, in.AgeBuckets, 5)
	assert.Equal(t, 1, counts["26-35"])
	assert.Zero(t, counts["Unknown"])
}

func TestAgeBucket(t *testing.T) {
	today := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		born string
		want string
	}{
		{"2008-06-01", "18-25"},
		{"2008-06-02", "Unknown"},
		{"2000-06-01", "26-35"},
		{"1990-01-01", "36-50"},
		{"1975-05-31", "51+"},
	}
	for _, tc := range cases {
		born, err := time.Parse("2006-01-02", tc.born)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ageBucket(born, today), tc.born)
	}
	assert.Equal(t, "Unknown", ageBucket(time.Time{}, today))
}

func TestWriteHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	receipt := f.sendDefault(t)
	views, err := f.billing.ForVendor(ctx, f.vendor.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, views))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bill_id", rows[0][0])
	assert.Equal(t, "Asha Rao", rows[1][2])
	assert.Equal(t, "336.00", rows[1][3])
	assert.Equal(t, decimal.NewFromInt(receipt.BillID).String(), rows[1][0])
}
