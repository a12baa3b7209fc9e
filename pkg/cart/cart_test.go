package cart

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bag = Item{ID: 1, Name: "Jute Bag", Price: decimal.RequireFromString("120.50"), Carbon: decimal.RequireFromString("1.5"), Stock: 2}
	oat = Item{ID: 2, Name: "Oat Milk (1L)", Price: decimal.NewFromInt(90), Carbon: decimal.RequireFromString("0.6"), Stock: 5}
)

func TestIncreaseStopsAtStock(t *testing.T) {
	c := New()
	q, err := c.Increase(bag)
	require.NoError(t, err)
	assert.Equal(t, 1, q)
	q, err = c.Increase(bag)
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	q, err = c.Increase(bag)
	assert.ErrorIs(t, err, ErrStockLimit)
	assert.EqualError(t, err, "Cannot add more. Only 2 in stock.")
	assert.Equal(t, 2, q)
	assert.Equal(t, 2, c.Quantity(bag.ID))

	empty := Item{ID: 3, Name: "Sold out", Stock: 0}
	_, err = c.Increase(empty)
	assert.ErrorIs(t, err, ErrStockLimit)
	assert.Equal(t, 1, c.Len())
}

func TestDecreaseRemovesAtZero(t *testing.T) {
	c := New()
	_, err := c.Increase(oat)
	require.NoError(t, err)

	assert.Equal(t, 0, c.Decrease(oat.ID))
	assert.Zero(t, c.Len())
	assert.Equal(t, 0, c.Decrease(oat.ID))
	assert.Equal(t, 0, c.Decrease(99))
}

func TestTotals(t *testing.T) {
	c := New()
	for i := 0; i < 2; i++ {
		_, err := c.Increase(bag)
		require.NoError(t, err)
	}
	_, err := c.Increase(oat)
	require.NoError(t, err)

	assert.True(t, c.Total().Equal(decimal.NewFromInt(331)), c.Total().String())
	assert.True(t, c.Carbon().Equal(decimal.RequireFromString("3.6")), c.Carbon().String())
	assert.Equal(t, 36, c.Mosscoins())
	assert.Equal(t, []LineRequest{{ID: 1, Quantity: 2}, {ID: 2, Quantity: 1}}, c.Payload())
	assert.Equal(t, "MossPay Bill\nTotal: ₹331.00\nCarbon Saved: 3.6 kg", c.Summary())
}

func TestClearReturnsResetIDs(t *testing.T) {
	c := New()
	_, _ = c.Increase(oat)
	_, _ = c.Increase(bag)

	assert.Equal(t, []int64{1, 2}, c.Clear())
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Quantity(bag.ID))
	assert.True(t, c.Total().IsZero())
	assert.Empty(t, c.Clear())
}

func TestRandomWalkKeepsInvariants(t *testing.T) {
	items := []Item{bag, oat}
	c := New()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		item := items[rng.Intn(len(items))]
		if rng.Intn(2) == 0 {
			_, _ = c.Increase(item)
		} else {
			c.Decrease(item.ID)
		}

		want := decimal.Zero
		for _, line := range c.Lines() {
			require.GreaterOrEqual(t, line.Quantity, 1)
			require.LessOrEqual(t, line.Quantity, line.Stock)
			want = want.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		require.True(t, want.Equal(c.Total()))
	}
}

func TestFilter(t *testing.T) {
	items := []Item{bag, oat}
	assert.Equal(t, []Item{oat}, Filter(items, "MILK"))
	assert.Equal(t, items, Filter(items, ""))
	assert.Empty(t, Filter(items, "soap"))
}

func TestCloneIsIndependent(t *testing.T) {
	c := New()
	item := Item{ID: 3, Name: "Jute Bag", Stock: 4}
	_, err := c.Increase(item)
	require.NoError(t, err)

	cp := c.Clone()
	cp.Clear()
	assert.Equal(t, 1, c.Quantity(3))
	assert.Zero(t, cp.Len())
}
