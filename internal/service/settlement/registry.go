package settlement

import (
	"context"
	"fmt"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// Registry validates and stores auctions. It does no locking of its own;
// callers serialize mutations.
type Registry struct {
	repo auction.Repository
}

func NewRegistry(repo auction.Repository) *Registry {
	return &Registry{repo: repo}
}

// Create validates the terms and stores a new active auction starting at now.
func (r *Registry) Create(ctx context.Context, seller values.Principal, itemDescription string, startingPrice, endingPrice values.Amount, duration, now uint64) (uint64, error) {
	a, err := auction.New(0, seller, itemDescription, startingPrice, endingPrice, duration, now)
	if err != nil {
		return 0, err
	}
	id, err := r.repo.Insert(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("store auction: %w", err)
	}
	return id, nil
}

func (r *Registry) Get(ctx context.Context, id uint64) (*auction.Auction, error) {
	return r.repo.Get(ctx, id)
}

// GetActive returns the auction if it exists and is active. Unknown ids are
// reported as not active.
func (r *Registry) GetActive(ctx context.Context, id uint64) (*auction.Auction, error) {
	a, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return nil, notActive(id)
		}
		return nil, err
	}
	if !a.Active {
		return nil, notActive(id)
	}
	return a, nil
}

func (r *Registry) MarkSold(ctx context.Context, id uint64) error {
	return r.repo.Close(ctx, id, auction.ClosedSold)
}

func (r *Registry) MarkCancelled(ctx context.Context, id uint64) error {
	return r.repo.Close(ctx, id, auction.ClosedCancelled)
}

// Unsell reverts MarkSold when the settlement that followed it failed.
func (r *Registry) Unsell(ctx context.Context, id uint64) error {
	return r.repo.Reopen(ctx, id)
}

func (r *Registry) Count(ctx context.Context) (uint64, error) {
	return r.repo.Count(ctx)
}

func (r *Registry) List(ctx context.Context, filter auction.ListFilter) ([]*auction.Auction, error) {
	return r.repo.List(ctx, filter)
}

func notActive(id uint64) error {
	return errors.ErrAuctionNotActive.WithDetails(map[string]interface{}{"auction_id": id})
}
