package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mosspay/pkg/cart"
	"mosspay/pkg/phone"
)

// LogResult is the log-purchase response.
type LogResult struct {
	Message     string  `json:"message"`
	NewBalance  int     `json:"new_balance"`
	NewCO2Saved float64 `json:"new_co2_saved"`
}

// LogPurchase claims the MossCoins of a pending bill.
func (c *Client) LogPurchase(ctx context.Context, billID int64) (LogResult, error) {
	var out LogResult
	err := c.postJSON(ctx, "/api/consumer/log-purchase", map[string]int64{"bill_id": billID}, &out)
	return out, err
}

// Redemption is the redeem-reward response.
type Redemption struct {
	Message    string `json:"message"`
	NewBalance int    `json:"new_balance"`
}

// RedeemReward spends MossCoins on a gov_* scheme or offer_* vendor offer.
func (c *Client) RedeemReward(ctx context.Context, rewardID string) (Redemption, error) {
	var out Redemption
	err := c.postJSON(ctx, "/api/consumer/redeem-reward", map[string]string{"reward_id": rewardID}, &out)
	return out, err
}

// NewItem is the add-item form; values are sent as typed, like the browser does.
type NewItem struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Unit  string `json:"unit"`
	Stock string `json:"stock"`
}

// Item is the add-item response.
type Item struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Unit          string  `json:"unit"`
	Stock         int     `json:"stock"`
	CarbonSavedKG float64 `json:"carbon_saved_kg"`
}

// ErrMissingFields is returned before any request when the add-item form is incomplete.
var ErrMissingFields = errors.New("Please fill out all fields.")

// AddItem creates an inventory item for the logged-in vendor.
func (c *Client) AddItem(ctx context.Context, in NewItem) (Item, error) {
	in.Name, in.Price = strings.TrimSpace(in.Name), strings.TrimSpace(in.Price)
	in.Unit, in.Stock = strings.TrimSpace(in.Unit), strings.TrimSpace(in.Stock)
	if in.Name == "" || in.Price == "" || in.Unit == "" || in.Stock == "" {
		return Item{}, ErrMissingFields
	}
	var out Item
	err := c.postJSON(ctx, "/api/vendor/add-item", in, &out)
	return out, err
}

// DeleteItem removes one of the vendor's items.
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/vendor/items?id=%d", id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.URL(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, "/api/vendor/items", nil)
}

// SendResult is the send-bill response plus the ids whose quantity display must reset.
type SendResult struct {
	Message string  `json:"message"`
	BillID  int64   `json:"bill_id"`
	Reset   []int64 `json:"-"`
}

// SendBillToPhone validates the phone and cart, sends the bill and clears the cart on success.
// On any failure the cart is left untouched.
func (c *Client) SendBillToPhone(ctx context.Context, number string, bill *cart.Cart) (SendResult, error) {
	if err := phone.Validate(number); err != nil {
		return SendResult{}, err
	}
	if bill == nil || bill.Len() == 0 {
		return SendResult{}, cart.ErrEmpty
	}
	body := struct {
		Phone string             `json:"phone"`
		Cart  []cart.LineRequest `json:"cart"`
	}{number, bill.Payload()}

	var out SendResult
	if err := c.postJSON(ctx, "/api/vendor/send-bill-to-phone", body, &out); err != nil {
		return SendResult{}, err
	}
	out.Reset = bill.Clear()
	return out, nil
}

// ChangeVendorPassword updates the vendor's password and returns the server message.
func (c *Client) ChangeVendorPassword(ctx context.Context, oldPassword, newPassword string) (string, error) {
	return c.changePassword(ctx, "/api/vendor/change-password", oldPassword, newPassword)
}

// ChangeConsumerPassword updates the consumer's password and returns the server message.
func (c *Client) ChangeConsumerPassword(ctx context.Context, oldPassword, newPassword string) (string, error) {
	return c.changePassword(ctx, "/api/consumer/change-password", oldPassword, newPassword)
}

func (c *Client) changePassword(ctx context.Context, path, oldPassword, newPassword string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	if err := c.postJSON(ctx, path, body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Health returns the /api/health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/api/health"), nil)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	err = c.do(req, "/api/health", &out)
	return out, err
}
