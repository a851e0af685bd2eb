package rest

// Amounts travel as decimal strings in the smallest currency unit so they
// survive JSON clients that parse numbers as float64.

// CreateAuctionRequest lists an item. The caller becomes the seller.
type CreateAuctionRequest struct {
	ItemDescription string  `json:"item_description" validate:"max=4096"`
	StartingPrice   string  `json:"starting_price" validate:"required,amount"`
	EndingPrice     string  `json:"ending_price" validate:"required,amount"`
	DurationSeconds *uint64 `json:"duration_seconds" validate:"required"`
}

// BuyRequest pays for an auction at its current price. Any excess is
// refunded to the caller.
type BuyRequest struct {
	AmountPaid string `json:"amount_paid" validate:"required,amount"`
}

// UpdateFeeRequest replaces the platform fee.
type UpdateFeeRequest struct {
	FeeBps *uint64 `json:"fee_bps" validate:"required"`
}

// ListAuctionsQuery is parsed from the query string of GET /auctions.
type ListAuctionsQuery struct {
	Status string `validate:"omitempty,oneof=all active completed"`
	Seller string `validate:"omitempty,max=128"`
	Offset uint64
	Limit  int `validate:"min=1,max=1000"`
}
