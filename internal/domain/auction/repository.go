package auction

import (
	"context"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// Repository stores auctions keyed by a sequential id that is never reused.
type Repository interface {
	// Insert allocates the next id, writes it to a.ID and stores a copy.
	Insert(ctx context.Context, a *Auction) (uint64, error)

	// Get returns a copy of the auction or errors.ErrAuctionNotFound.
	Get(ctx context.Context, id uint64) (*Auction, error)

	// Count returns the next id to be allocated.
	Count(ctx context.Context) (uint64, error)

	List(ctx context.Context, filter ListFilter) ([]*Auction, error)

	// Close flips Active to false with the given reason. It fails with
	// errors.ErrAuctionNotActive when the auction is already closed and with
	// errors.ErrAuctionNotFound when the id was never allocated.
	Close(ctx context.Context, id uint64, reason ClosedReason) error

	// Reopen undoes a sold close whose settlement could not be committed.
	Reopen(ctx context.Context, id uint64) error
}

// FeeRepository holds the process-wide platform fee rate.
type FeeRepository interface {
	// InitFee stores bps unless a fee is already stored and returns the
	// fee in effect.
	InitFee(ctx context.Context, bps uint64) (uint64, error)
	GetFee(ctx context.Context) (uint64, error)
	SetFee(ctx context.Context, bps uint64) error
}

// ListFilter narrows List. Zero values mean no restriction.
type ListFilter struct {
	Seller values.Principal
	Active *bool
	Offset uint64
	Limit  int
}

// Matches reports whether a satisfies the seller and active restrictions.
// Offset and Limit are applied by the store.
func (f ListFilter) Matches(a *Auction) bool {
	if !f.Seller.IsZero() && a.Seller != f.Seller {
		return false
	}
	if f.Active != nil && a.Active != *f.Active {
		return false
	}
	return true
}
