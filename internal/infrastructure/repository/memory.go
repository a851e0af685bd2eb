package repository

import (
	"context"
	"sync"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
)

// MemoryAuctionRepository is an append-only arena: the id of an auction is
// its index, so ids are sequential from 0 and never reused.
type MemoryAuctionRepository struct {
	mu       sync.RWMutex
	auctions []*auction.Auction
}

func NewMemoryAuctionRepository() *MemoryAuctionRepository {
	return &MemoryAuctionRepository{}
}

func (r *MemoryAuctionRepository) Insert(_ context.Context, a *auction.Auction) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uint64(len(r.auctions))
	a.ID = id
	r.auctions = append(r.auctions, a.Clone())
	return id, nil
}

func (r *MemoryAuctionRepository) Get(_ context.Context, id uint64) (*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (r *MemoryAuctionRepository) Count(_ context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.auctions)), nil
}

func (r *MemoryAuctionRepository) List(_ context.Context, filter auction.ListFilter) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*auction.Auction, 0)
	var skipped uint64
	for _, a := range r.auctions {
		if !filter.Matches(a) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, a.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryAuctionRepository) Close(_ context.Context, id uint64, reason auction.ClosedReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.lookup(id)
	if err != nil {
		return err
	}

	switch reason {
	case auction.ClosedSold:
		return a.MarkSold()
	case auction.ClosedCancelled:
		return a.MarkCancelled()
	default:
		return errors.NewInternalError("unknown close reason: " + string(reason))
	}
}

func (r *MemoryAuctionRepository) Reopen(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.lookup(id)
	if err != nil {
		return err
	}
	if a.ClosedReason != auction.ClosedSold {
		return errors.NewInternalError("only a sold auction can be reopened")
	}
	a.Active = true
	a.ClosedReason = auction.ClosedNone
	return nil
}

func (r *MemoryAuctionRepository) lookup(id uint64) (*auction.Auction, error) {
	if id >= uint64(len(r.auctions)) {
		return nil, errors.ErrAuctionNotFound
	}
	return r.auctions[id], nil
}

// MemoryFeeRepository holds the platform fee in memory.
type MemoryFeeRepository struct {
	mu  sync.RWMutex
	set bool
	bps uint64
}

func NewMemoryFeeRepository() *MemoryFeeRepository {
	return &MemoryFeeRepository{}
}

func (r *MemoryFeeRepository) InitFee(_ context.Context, bps uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set {
		r.bps = bps
		r.set = true
	}
	return r.bps, nil
}

func (r *MemoryFeeRepository) GetFee(_ context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.set {
		return 0, ErrNotFound
	}
	return r.bps, nil
}

func (r *MemoryFeeRepository) SetFee(_ context.Context, bps uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bps = bps
	r.set = true
	return nil
}
