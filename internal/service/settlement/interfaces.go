package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/cache"
	"github.com/davidleathers/dutch-auction-exchange/internal/metrics"
)

// Service is the auction exchange: listing, pricing, settlement and fee
// administration.
type Service interface {
	// CreateAuction lists an item on behalf of seller and returns its id
	CreateAuction(ctx context.Context, seller values.Principal, req *CreateAuctionRequest) (uint64, error)
	// GetAuction returns the stored auction with its derived view fields
	GetAuction(ctx context.Context, id uint64) (*AuctionView, error)
	// GetCurrentPrice returns the asking price of an active auction
	GetCurrentPrice(ctx context.Context, id uint64) (values.Amount, error)
	// ListAuctions enumerates auctions in id order
	ListAuctions(ctx context.Context, filter ListFilter) ([]*AuctionView, error)
	// AuctionCount returns the id the next auction will get
	AuctionCount(ctx context.Context) (uint64, error)
	// Buy purchases an auction at the current price
	Buy(ctx context.Context, id uint64, payer values.Principal, amountPaid values.Amount) (*Result, error)
	// CancelAuction withdraws an auction; only its seller may do so
	CancelAuction(ctx context.Context, id uint64, caller values.Principal) error
	// UpdatePlatformFeePercentage replaces the fee; only the admin may do so
	UpdatePlatformFeePercentage(ctx context.Context, caller values.Principal, bps uint64) error
	// PlatformFee returns the fee in basis points
	PlatformFee(ctx context.Context) (uint64, error)
	// Admin returns the principal allowed to change the fee
	Admin() values.Principal
}

// CreateAuctionRequest carries the terms of a new auction.
type CreateAuctionRequest struct {
	ItemDescription string
	StartingPrice   values.Amount
	EndingPrice     values.Amount
	Duration        uint64
}

// ListFilter selects auctions by seller and status. Status "completed"
// matches sold and cancelled auctions.
type ListFilter struct {
	Seller values.Principal
	Status string
	Offset uint64
	Limit  int
}

// AuctionView is an auction as shown to callers.
type AuctionView struct {
	*auction.Auction
	EndAt        uint64         `json:"end_at"`
	Status       auction.Status `json:"status"`
	CurrentPrice *values.Amount `json:"current_price,omitempty"`
}

// Result describes a completed purchase.
type Result struct {
	SettlementID   uuid.UUID        `json:"settlement_id"`
	AuctionID      uint64           `json:"auction_id"`
	Seller         values.Principal `json:"seller"`
	Buyer          values.Principal `json:"buyer"`
	Price          values.Amount    `json:"price"`
	FeeBps         uint64           `json:"fee_bps"`
	FeePaid        values.Amount    `json:"fee_paid"`
	SellerProceeds values.Amount    `json:"seller_proceeds"`
	Refund         values.Amount    `json:"refund"`
}

// Dependencies wires an Engine. Auctions, Fees, Ledger and Admin are
// required; everything else has a default.
type Dependencies struct {
	Auctions      auction.Repository
	Fees          auction.FeeRepository
	Ledger        ledger.Ledger
	Admin         values.Principal
	InitialFeeBps uint64

	// CurrencyDecimals scales amounts to whole units in metrics.
	CurrencyDecimals int32

	Clock     auction.Clock
	Locker    cache.Locker
	Publisher auction.Publisher
	Metrics   *metrics.Registry
	Logger    *slog.Logger
}
