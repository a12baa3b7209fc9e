// Package cart is the selection a vendor builds while authoring a bill.
//
// An entry exists only while its quantity is at least one, and a quantity never exceeds the
// stock the item had when the vendor opened the bill page.
package cart

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CoinsPerKG matches the server's MossCoin award rate.
const CoinsPerKG = 10

var (
	// ErrStockLimit matches every StockLimitError.
	ErrStockLimit = errors.New("stock limit reached")
	// ErrEmpty is returned when a bill is sent with nothing selected.
	ErrEmpty = errors.New("Please add items to the bill.")
)

// StockLimitError is returned by Increase once the quantity equals the stock.
type StockLimitError struct {
	Stock int
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("Cannot add more. Only %d in stock.", e.Stock)
}

func (e *StockLimitError) Is(target error) bool { return target == ErrStockLimit }

// Item is a billable product as listed on the generate-bill page.
type Item struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Carbon decimal.Decimal
	Stock  int
}

// Line is one selected item and its quantity.
type Line struct {
	Item
	Quantity int
}

// Subtotal is price × quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CarbonSaved is carbon × quantity.
func (l Line) CarbonSaved() decimal.Decimal {
	return l.Carbon.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineRequest is the wire form of a line in send-bill-to-phone.
type LineRequest struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// Cart is not safe for concurrent use; one bill-authoring session owns it.
type Cart struct {
	lines map[int64]*Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{lines: make(map[int64]*Line)}
}

// Increase adds one unit of item and returns the new quantity.
func (c *Cart) Increase(item Item) (int, error) {
	line, ok := c.lines[item.ID]
	current := 0
	if ok {
		current = line.Quantity
	}
	if current >= item.Stock {
		return current, &StockLimitError{Stock: item.Stock}
	}
	if !ok {
		line = &Line{Item: item}
		c.lines[item.ID] = line
	}
	line.Quantity++
	return line.Quantity, nil
}

// Decrease removes one unit and returns the new quantity; the entry goes away at zero.
func (c *Cart) Decrease(id int64) int {
	line, ok := c.lines[id]
	if !ok {
		return 0
	}
	line.Quantity--
	if line.Quantity <= 0 {
		delete(c.lines, id)
		return 0
	}
	return line.Quantity
}

// Quantity returns the selected quantity for id.
func (c *Cart) Quantity(id int64) int {
	if line, ok := c.lines[id]; ok {
		return line.Quantity
	}
	return 0
}

// Len is the number of distinct items selected.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the selection ordered by item id.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Total is the sum of price × quantity.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Carbon is the sum of carbon × quantity.
func (c *Cart) Carbon() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.CarbonSaved())
	}
	return total
}

// Mosscoins is the number of coins the bill will award once logged.
func (c *Cart) Mosscoins() int {
	return int(c.Carbon().Mul(decimal.NewFromInt(CoinsPerKG)).IntPart())
}

// Payload is the cart field of a send-bill-to-phone request.
func (c *Cart) Payload() []LineRequest {
	lines := c.Lines()
	out := make([]LineRequest, len(lines))
	for i, line := range lines {
		out[i] = LineRequest{ID: line.ID, Quantity: line.Quantity}
	}
	return out
}

// Clear empties the cart and returns the ids whose displayed quantity must go back to zero.
func (c *Cart) Clear() []int64 {
	ids := make([]int64, 0, len(c.lines))
	for id := range c.lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	c.lines = make(map[int64]*Line)
	return ids
}

// Clone copies the selection so it can be sent while the on-screen cart keeps changing.
func (c *Cart) Clone() *Cart {
	out := New()
	for id, line := range c.lines {
		cp := *line
		out.lines[id] = &cp
	}
	return out
}

// Summary is the text encoded in the bill QR code.
func (c *Cart) Summary() string {
	return fmt.Sprintf("MossPay Bill\nTotal: ₹%s\nCarbon Saved: %s kg", c.Total().StringFixed(2), c.Carbon().StringFixed(1))
}

// Filter keeps items whose name contains term, ignoring case. An empty term keeps all.
func Filter(items []Item, term string) []Item {
	needle := strings.ToLower(term)
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) {
			out = append(out, item)
		}
	}
	return out
}
