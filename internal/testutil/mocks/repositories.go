package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
)

// AuctionRepository mock
type AuctionRepository struct {
	mock.Mock
}

func (m *AuctionRepository) Insert(ctx context.Context, a *auction.Auction) (uint64, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *AuctionRepository) Get(ctx context.Context, id uint64) (*auction.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Auction), args.Error(1)
}

func (m *AuctionRepository) Count(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *AuctionRepository) List(ctx context.Context, filter auction.ListFilter) ([]*auction.Auction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auction.Auction), args.Error(1)
}

func (m *AuctionRepository) Close(ctx context.Context, id uint64, reason auction.ClosedReason) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *AuctionRepository) Reopen(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// FeeRepository mock
type FeeRepository struct {
	mock.Mock
}

func (m *FeeRepository) InitFee(ctx context.Context, bps uint64) (uint64, error) {
	args := m.Called(ctx, bps)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *FeeRepository) GetFee(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *FeeRepository) SetFee(ctx context.Context, bps uint64) error {
	args := m.Called(ctx, bps)
	return args.Error(0)
}
