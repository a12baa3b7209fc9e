package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill statuses.
const (
	StatusPending = "pending"
	StatusLogged  = "logged"
)

// CoinsPerKG converts CO2 saved into MossCoins awarded.
const CoinsPerKG = 10

// Bill is a purchase a vendor issued to a consumer; the consumer logs it to earn coins.
type Bill struct {
	ID               int64
	VendorID         int64
	CustomerID       int64
	TotalAmount      decimal.Decimal
	TotalCarbonSaved decimal.Decimal
	MossCoinsToAward int
	Status           string
	CreatedAt        time.Time
}

// Line is one item on a bill, priced at the moment of sale.
type Line struct {
	ID           int64
	BillID       int64
	ItemID       int64
	Quantity     int
	PriceAtSale  decimal.Decimal
	CarbonAtSale decimal.Decimal
}

// View is a bill joined with the name of the other party, for history pages.
type View struct {
	Bill
	VendorName   string
	CustomerName string
}

// Receipt is returned to the vendor once a bill has been sent.
type Receipt struct {
	BillID  int64
	Message string
}

// LogResult is returned to the consumer once a bill has been logged.
type LogResult struct {
	Message     string
	NewBalance  int
	NewCO2Saved float64
}

// ItemSales is one row of the top-items table.
type ItemSales struct {
	Name string
	Sold int
}

// AgeBucket counts distinct customers in an age range.
type AgeBucket struct {
	Label string
	Count int
}

// Insights summarizes a vendor's sales for the customer insights page.
type Insights struct {
	TotalSales     decimal.Decimal
	TotalCustomers int
	TotalCO2       decimal.Decimal
	TopItems       []ItemSales
	AgeBuckets     []AgeBucket
}

// CoinsFor truncates carbon×CoinsPerKG to whole coins.
func CoinsFor(carbon decimal.Decimal) int {
	return int(carbon.Mul(decimal.NewFromInt(CoinsPerKG)).IntPart())
}
