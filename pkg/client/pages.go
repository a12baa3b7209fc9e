package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"mosspay/pkg/cart"
)

// BillableItems reads the generate-bill page: every in-stock item with price, carbon and stock.
func (c *Client) BillableItems(ctx context.Context) ([]cart.Item, error) {
	doc, err := c.page(ctx, "/vendor/generate_bill")
	if err != nil {
		return nil, err
	}
	var (
		items []cart.Item
		perr  error
	)
	doc.Find(`.btn-quantity[data-action="increase"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		item, err := parseItem(sel)
		if err != nil {
			perr = err
			return false
		}
		items = append(items, item)
		return true
	})
	return items, perr
}

func parseItem(sel *goquery.Selection) (cart.Item, error) {
	id, err := strconv.ParseInt(sel.AttrOr("data-id", ""), 10, 64)
	if err != nil {
		return cart.Item{}, fmt.Errorf("generate bill: bad data-id: %w", err)
	}
	price, err := decimal.NewFromString(sel.AttrOr("data-price", ""))
	if err != nil {
		return cart.Item{}, fmt.Errorf("generate bill: item %d: bad data-price: %w", id, err)
	}
	carbon, err := decimal.NewFromString(sel.AttrOr("data-carbon", "0"))
	if err != nil {
		return cart.Item{}, fmt.Errorf("generate bill: item %d: bad data-carbon: %w", id, err)
	}
	stock, err := strconv.Atoi(sel.AttrOr("data-stock", ""))
	if err != nil {
		return cart.Item{}, fmt.Errorf("generate bill: item %d: bad data-stock: %w", id, err)
	}
	return cart.Item{ID: id, Name: sel.AttrOr("data-name", ""), Price: price, Carbon: carbon, Stock: stock}, nil
}

// Bill is one row of the log-purchase page.
type Bill struct {
	ID         int64
	VendorName string
	Amount     string
	Coins      int
	Pending    bool
}

// Bills reads the log-purchase page, newest first.
func (c *Client) Bills(ctx context.Context) ([]Bill, error) {
	doc, err := c.page(ctx, "/consumer/log_purchase")
	if err != nil {
		return nil, err
	}
	var bills []Bill
	var perr error
	doc.Find(".bill-row").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		id, err := strconv.ParseInt(sel.AttrOr("data-bill-id", ""), 10, 64)
		if err != nil {
			perr = fmt.Errorf("log purchase: bad data-bill-id: %w", err)
			return false
		}
		coins, _ := strconv.Atoi(sel.AttrOr("data-coins", "0"))
		bills = append(bills, Bill{
			ID:         id,
			VendorName: strings.TrimSpace(sel.Find(".vendor").Text()),
			Amount:     strings.TrimSpace(sel.Find(".amount").Text()),
			Coins:      coins,
			Pending:    sel.AttrOr("data-status", "") == "pending",
		})
		return true
	})
	return bills, perr
}

// PendingBills keeps only the bills that still have a Log button.
func (c *Client) PendingBills(ctx context.Context) ([]Bill, error) {
	bills, err := c.Bills(ctx)
	if err != nil {
		return nil, err
	}
	pending := bills[:0]
	for _, b := range bills {
		if b.Pending {
			pending = append(pending, b)
		}
	}
	return pending, nil
}

// Reward is one redeemable card on the redeem page.
type Reward struct {
	ID    string
	Title string
	Cost  int
}

// RewardsPage is the redeem page: the balance and every card.
type RewardsPage struct {
	Balance int
	Rewards []Reward
}

// Rewards reads the redeem page.
func (c *Client) Rewards(ctx context.Context) (RewardsPage, error) {
	doc, err := c.page(ctx, "/consumer/redeem")
	if err != nil {
		return RewardsPage{}, err
	}
	balance, err := strconv.Atoi(strings.TrimSpace(doc.Find("#user-balance").Text()))
	if err != nil {
		return RewardsPage{}, fmt.Errorf("redeem: bad balance: %w", err)
	}
	out := RewardsPage{Balance: balance}
	doc.Find(".reward-card").Each(func(_ int, card *goquery.Selection) {
		btn := card.Find(".btn-redeem")
		cost, err := strconv.Atoi(btn.AttrOr("data-cost", ""))
		if err != nil {
			return
		}
		out.Rewards = append(out.Rewards, Reward{
			ID:    btn.AttrOr("data-reward-id", ""),
			Title: strings.TrimSpace(card.Find(".title").Text()),
			Cost:  cost,
		})
	})
	return out, nil
}
