package settlement

import (
	"context"
	"fmt"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// FeeAdmin owns the platform fee rate and the principal allowed to change it.
type FeeAdmin struct {
	repo  auction.FeeRepository
	admin values.Principal
}

// NewFeeAdmin validates the initial fee and stores it unless a fee is
// already persisted.
func NewFeeAdmin(ctx context.Context, repo auction.FeeRepository, admin values.Principal, initialBps uint64) (*FeeAdmin, error) {
	if admin.IsZero() {
		return nil, fmt.Errorf("fee admin principal is required")
	}
	if err := auction.ValidateFee(initialBps); err != nil {
		return nil, err
	}
	if _, err := repo.InitFee(ctx, initialBps); err != nil {
		return nil, fmt.Errorf("init platform fee: %w", err)
	}
	return &FeeAdmin{repo: repo, admin: admin}, nil
}

func (f *FeeAdmin) Admin() values.Principal {
	return f.admin
}

func (f *FeeAdmin) Fee(ctx context.Context) (uint64, error) {
	bps, err := f.repo.GetFee(ctx)
	if err != nil {
		return 0, fmt.Errorf("read platform fee: %w", err)
	}
	return bps, nil
}

// Update replaces the fee. Only the admin may call it, and the admin check
// runs before the bound check.
func (f *FeeAdmin) Update(ctx context.Context, caller values.Principal, bps uint64) error {
	if caller != f.admin {
		return errors.Unauthorized(caller.String())
	}
	if err := auction.ValidateFee(bps); err != nil {
		return err
	}
	if err := f.repo.SetFee(ctx, bps); err != nil {
		return fmt.Errorf("store platform fee: %w", err)
	}
	return nil
}
