package tui

import (
	"context"
	"errors"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosspay/pkg/cart"
	"mosspay/pkg/client"
	"mosspay/pkg/phone"
)

type fakeBackend struct {
	items  []cart.Item
	sendTo []string
	sent   [][]cart.LineRequest
	err    error
}

func (f *fakeBackend) BillableItems(context.Context) ([]cart.Item, error) {
	return f.items, nil
}

func (f *fakeBackend) SendBillToPhone(_ context.Context, number string, bill *cart.Cart) (client.SendResult, error) {
	f.sendTo = append(f.sendTo, number)
	f.sent = append(f.sent, bill.Payload())
	if f.err != nil {
		return client.SendResult{}, f.err
	}
	return client.SendResult{Message: "Bill sent to Asha Rao!", BillID: 7, Reset: bill.Clear()}, nil
}

func newFixture(t *testing.T) (*Bill, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{items: []cart.Item{
		{ID: 1, Name: "Jute Bag", Price: decimal.NewFromInt(80), Carbon: decimal.RequireFromString("1.5"), Stock: 2},
		{ID: 2, Name: "Lentils (1kg)", Price: decimal.NewFromInt(140), Carbon: decimal.RequireFromString("0.9"), Stock: 10},
	}}
	b := NewBill(backend, WithClipboard(func(string) error { return nil }))
	b.Update(b.load()())
	require.Len(t, b.items, 2)
	return b, backend
}

func press(b *Bill, keys string) tea.Cmd {
	var cmd tea.Cmd
	for _, r := range keys {
		_, cmd = b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return cmd
}

func typeText(b *Bill, text string) {
	b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestIncreaseStopsAtStock(t *testing.T) {
	b, _ := newFixture(t)

	press(b, "+++")
	assert.Equal(t, 2, b.Cart().Quantity(1))
	assert.Equal(t, "Cannot add more. Only 2 in stock.", b.Status())

	press(b, "-")
	assert.Equal(t, 1, b.Cart().Quantity(1))
	assert.Empty(t, b.Status())

	press(b, "j+")
	assert.Equal(t, 1, b.Cart().Quantity(2))
	assert.Equal(t, "220.00", b.Cart().Total().StringFixed(2))
}

func TestSearchFiltersList(t *testing.T) {
	b, _ := newFixture(t)

	press(b, "/")
	typeText(b, "LENT")
	b.Update(tea.KeyMsg{Type: tea.KeyEnter})

	visible := b.visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Lentils (1kg)", visible[0].Name)

	press(b, "+")
	assert.Equal(t, 1, b.Cart().Quantity(2))
}

func TestSendRequiresPhoneAndItems(t *testing.T) {
	b, backend := newFixture(t)

	assert.Nil(t, press(b, "s"))
	assert.Equal(t, SendError, b.State())
	assert.Equal(t, phone.ErrInvalid.Error(), b.Status())

	press(b, "p")
	typeText(b, "9876543210")
	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, cart.ErrEmpty.Error(), b.Status())
	assert.Empty(t, backend.sendTo)
}

func TestSuccessfulSendClearsCart(t *testing.T) {
	b, backend := newFixture(t)
	press(b, "++j+")
	press(b, "p")
	typeText(b, "9876543210")

	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SendSending, b.State())

	// sending blocks edits and a second send
	press(b, "+")
	assert.Equal(t, 1, b.Cart().Quantity(2))
	assert.Nil(t, press(b, "s"))

	_, reload := b.Update(cmd())
	require.NotNil(t, reload)
	assert.Equal(t, SendSuccess, b.State())
	assert.Equal(t, "Bill sent to Asha Rao!", b.Status())
	assert.Zero(t, b.Cart().Len())
	assert.Equal(t, []int64{1, 2}, b.Reset())
	assert.Empty(t, b.phone.Value())

	require.Len(t, backend.sent, 1)
	assert.Equal(t, "9876543210", backend.sendTo[0])
	assert.Equal(t, []cart.LineRequest{{ID: 1, Quantity: 2}, {ID: 2, Quantity: 1}}, backend.sent[0])
}

func TestFailedSendKeepsCart(t *testing.T) {
	b, backend := newFixture(t)
	backend.err = &client.APIError{Status: http.StatusNotFound, Message: "No MossPay user found with phone number 9000000000."}
	press(b, "+")
	press(b, "p")
	typeText(b, "9000000000")

	_, cmd := b.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	b.Update(cmd())

	assert.Equal(t, SendError, b.State())
	assert.Equal(t, "No MossPay user found with phone number 9000000000.", b.Status())
	assert.Equal(t, 1, b.Cart().Quantity(1))

	backend.err = errors.New("connection refused")
	_, cmd = b.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, cmd)
	b.Update(cmd())
	assert.Equal(t, "An error occurred: connection refused", b.Status())
}

func TestCopySummary(t *testing.T) {
	b, _ := newFixture(t)
	var copied string
	b.copy = func(s string) error { copied = s; return nil }

	assert.Nil(t, press(b, "c"))
	assert.Equal(t, cart.ErrEmpty.Error(), b.Status())

	press(b, "+")
	cmd := press(b, "c")
	require.NotNil(t, cmd)
	b.Update(cmd())
	assert.Equal(t, "MossPay Bill\nTotal: ₹80.00\nCarbon Saved: 1.5 kg", copied)
	assert.Equal(t, "Bill summary copied.", b.Status())
}

func TestRenderQR(t *testing.T) {
	qr, err := RenderQR("MossPay Bill\nTotal: ₹80.00\nCarbon Saved: 1.5 kg")
	require.NoError(t, err)
	assert.NotEmpty(t, qr)
}

func TestCarouselWraps(t *testing.T) {
	c := NewCarousel("a", "b", "c")
	assert.Equal(t, "a", c.Current())
	assert.Equal(t, 1, c.Next())
	assert.Equal(t, 2, c.Next())
	assert.Equal(t, 0, c.Next())
	assert.Equal(t, "a", c.Current())

	empty := NewCarousel()
	assert.Equal(t, 0, empty.Next())
	assert.Empty(t, empty.Current())
	assert.Nil(t, empty.tick())
}

func TestBannerTickAdvances(t *testing.T) {
	b, _ := newFixture(t)
	_, cmd := b.Update(bannerTickMsg{})
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, b.carousel.Index())
}

func TestSidebarToggle(t *testing.T) {
	b, _ := newFixture(t)
	assert.False(t, b.sidebar.Open())
	press(b, "?")
	assert.True(t, b.sidebar.Open())
	assert.Contains(t, b.View(), "search items")
	press(b, "?")
	assert.False(t, b.sidebar.Open())
}
