package rewards

import "time"

// Offer statuses.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Reward id prefixes accepted by Redeem.
const (
	GovernmentPrefix = "gov_"
	OfferPrefix      = "offer_"
)

// Offer is a vendor-funded reward consumers can buy with MossCoins.
type Offer struct {
	ID           int64
	VendorID     int64
	Title        string
	Description  string
	MossCoinCost int
	Status       string
	CreatedAt    time.Time
}

// RewardID is the id the redeem page and API use for the offer.
func (o Offer) RewardID() string {
	return OfferPrefix + itoa(o.ID)
}

// Listing is an active offer with the business that runs it.
type Listing struct {
	Offer
	VendorName string
}

// NewOffer carries the manage-offers form.
type NewOffer struct {
	Title        string
	Description  string
	MossCoinCost int
}

// Redemption is returned once coins have been spent.
type Redemption struct {
	Message    string
	NewBalance int
}
