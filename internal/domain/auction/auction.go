package auction

import (
	"fmt"
	"strings"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

const (
	// MinDuration is the shortest allowed auction, in seconds.
	MinDuration uint64 = 60
	// MaxDuration is the longest allowed auction (7 days), in seconds.
	MaxDuration uint64 = 7 * 24 * 3600
	// MaxFeeBps caps the platform fee at 10%.
	MaxFeeBps uint64 = 1000
	// BpsDenominator is the number of basis points in 100%.
	BpsDenominator uint64 = 10000

	maxDescriptionLength = 4096
)

// Auction is a descending-price listing. Only Active (and the ClosedReason
// written together with it) changes after creation.
type Auction struct {
	ID              uint64           `json:"id"`
	Seller          values.Principal `json:"seller"`
	ItemDescription string           `json:"item_description"`
	StartingPrice   values.Amount    `json:"starting_price"`
	EndingPrice     values.Amount    `json:"ending_price"`
	Duration        uint64           `json:"duration"`
	StartAt         uint64           `json:"start_at"`
	Active          bool             `json:"active"`
	ClosedReason    ClosedReason     `json:"closed_reason,omitempty"`
}

// ClosedReason records how an auction left the active state.
type ClosedReason string

const (
	ClosedNone      ClosedReason = ""
	ClosedSold      ClosedReason = "sold"
	ClosedCancelled ClosedReason = "cancelled"
)

// Status is the derived view state of an auction at a given instant.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSold      Status = "sold"
	StatusCancelled Status = "cancelled"
)

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case StatusActive:
		return StatusActive, nil
	case StatusExpired:
		return StatusExpired, nil
	case StatusSold:
		return StatusSold, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown auction status: %q", s)
	}
}

// ValidateTerms checks the creation-time rules: the price must fit in 256
// bits and strictly decrease, and the duration must be within
// [MinDuration, MaxDuration].
func ValidateTerms(startingPrice, endingPrice values.Amount, duration uint64) error {
	if startingPrice.GreaterThan(values.MaxAmount) {
		return errors.ErrInvalidPrice.WithDetails(map[string]interface{}{
			"starting_price": startingPrice.String(),
			"max":            values.MaxAmount.String(),
		})
	}
	if !startingPrice.GreaterThan(endingPrice) {
		return errors.ErrInvalidPrice.WithDetails(map[string]interface{}{
			"starting_price": startingPrice.String(),
			"ending_price":   endingPrice.String(),
		})
	}
	if duration < MinDuration || duration > MaxDuration {
		return errors.ErrInvalidDuration.WithDetails(map[string]interface{}{
			"duration": duration,
			"min":      MinDuration,
			"max":      MaxDuration,
		})
	}
	return nil
}

// New builds an active auction starting at now. The id is assigned by the
// registry that stores it.
func New(id uint64, seller values.Principal, itemDescription string, startingPrice, endingPrice values.Amount, duration, now uint64) (*Auction, error) {
	if err := ValidateTerms(startingPrice, endingPrice, duration); err != nil {
		return nil, err
	}
	if seller.IsZero() {
		return nil, errors.NewValidationError("INVALID_SELLER", "seller is required")
	}
	if len(itemDescription) > maxDescriptionLength {
		return nil, errors.NewValidationError("INVALID_DESCRIPTION",
			fmt.Sprintf("item description exceeds %d bytes", maxDescriptionLength))
	}

	return &Auction{
		ID:              id,
		Seller:          seller,
		ItemDescription: itemDescription,
		StartingPrice:   startingPrice,
		EndingPrice:     endingPrice,
		Duration:        duration,
		StartAt:         now,
		Active:          true,
	}, nil
}

// EndAt is the first instant at which purchases are rejected.
func (a *Auction) EndAt() uint64 {
	return a.StartAt + a.Duration
}

// IsExpired reports whether the purchase window has closed. Expiry does not
// change Active.
func (a *Auction) IsExpired(now uint64) bool {
	return now >= a.EndAt()
}

// StatusAt derives the view state at now.
func (a *Auction) StatusAt(now uint64) Status {
	if !a.Active {
		if a.ClosedReason == ClosedCancelled {
			return StatusCancelled
		}
		return StatusSold
	}
	if a.IsExpired(now) {
		return StatusExpired
	}
	return StatusActive
}

// Purchasable reports whether a buy at now could succeed given enough payment.
func (a *Auction) Purchasable(now uint64) bool {
	return a.Active && !a.IsExpired(now)
}

// MarkSold closes the auction as sold. A second close fails.
func (a *Auction) MarkSold() error {
	return a.close(ClosedSold)
}

// MarkCancelled closes the auction as cancelled. A second close fails.
func (a *Auction) MarkCancelled() error {
	return a.close(ClosedCancelled)
}

func (a *Auction) close(reason ClosedReason) error {
	if !a.Active {
		return errors.ErrAuctionNotActive.WithDetails(map[string]interface{}{"auction_id": a.ID})
	}
	a.Active = false
	a.ClosedReason = reason
	return nil
}

// Clone returns a copy safe to hand out of a store.
func (a *Auction) Clone() *Auction {
	cp := *a
	return &cp
}
