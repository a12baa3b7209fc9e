package account

import "time"

// Starting values every new consumer receives, matching the welcome offer.
const (
	StartingBalance        = 150
	StartingCO2Saved       = 12.3
	StartingGreenPurchases = 5
	StartingEcoStreak      = 8
	StartingRank           = 240

	// SproutGoalKG is the CO2 a consumer must save to grow one tree.
	SproutGoalKG = 100.0
)

// Consumer is a shopper who collects MossCoins by logging vendor bills.
type Consumer struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"fullname"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	DOB             time.Time `json:"dob"`
	PasswordHash    string    `json:"-"`
	MossCoinBalance int       `json:"mosscoin_balance"`
	TotalCO2Saved   float64   `json:"total_co2_saved"`
	GreenPurchases  int       `json:"green_purchases"`
	EcoStreak       int       `json:"eco_streak"`
	Rank            int       `json:"rank"`
}

// Vendor is a shop that sells items and issues bills to consumers.
type Vendor struct {
	ID           int64  `json:"id"`
	BusinessName string `json:"business_name"`
	ContactName  string `json:"contact_name"`
	Mobile       string `json:"mobile"`
	UdyamID      string `json:"udyam_id"`
	Address      string `json:"address"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Description  string `json:"description"`
	LogoURL      string `json:"logo_url"`
	ShopCategory string `json:"shop_category"`
	WebsiteURL   string `json:"website_url"`
}

// ConsumerRegistration carries the sign-up form.
type ConsumerRegistration struct {
	FullName        string
	Email           string
	Phone           string
	DOB             string
	Password        string
	ConfirmPassword string
}

// VendorRegistration carries the vendor sign-up form.
type VendorRegistration struct {
	BusinessName    string
	ContactName     string
	Email           string
	Mobile          string
	UdyamID         string
	Address         string
	Password        string
	ConfirmPassword string
}

// VendorProfile is the public shop profile a vendor edits.
type VendorProfile struct {
	BusinessName string
	ContactName  string
	Mobile       string
	Address      string
	ShopCategory string
	Description  string
	LogoURL      string
	WebsiteURL   string
}

// Sprout is the tree-growth indicator on the consumer dashboard.
type Sprout struct {
	GrowthPercent float64
	TreesPlanted  int
}
