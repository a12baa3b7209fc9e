package inventory

import "github.com/shopspring/decimal"

// Item is one product a vendor stocks; carbon is the CO2 saved per unit sold.
type Item struct {
	ID            int64
	VendorID      int64
	Name          string
	Price         decimal.Decimal
	Unit          string
	Stock         int
	CarbonSavedKG decimal.Decimal
}

// NewItem is the add-item form after parsing.
type NewItem struct {
	Name  string
	Price decimal.Decimal
	Unit  string
	Stock int
}

// Line asks for a quantity of one item, as sent by the bill builder.
type Line struct {
	ItemID   int64
	Quantity int
}

// Reserved is an item taken out of stock for a bill, priced at the moment of sale.
type Reserved struct {
	Item     Item
	Quantity int
}
