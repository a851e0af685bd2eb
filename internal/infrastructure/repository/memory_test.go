package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

var (
	alice = values.MustNewPrincipal("alice")
	bob   = values.MustNewPrincipal("bob")
)

func newAuction(t *testing.T, seller values.Principal) *auction.Auction {
	t.Helper()
	a, err := auction.New(0, seller, "lamp", values.AmountFromUint64(1000), values.AmountFromUint64(100), 3600, 1000)
	require.NoError(t, err)
	return a
}

func TestMemoryAuctionRepository_SequentialIDs(t *testing.T) {
	repo := NewMemoryAuctionRepository()
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	for want := uint64(0); want < 3; want++ {
		a := newAuction(t, alice)
		id, err := repo.Insert(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.Equal(t, want, a.ID)
	}

	require.NoError(t, repo.Close(ctx, 1, auction.ClosedCancelled))

	id, err := repo.Insert(ctx, newAuction(t, alice))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id, "closed ids are not reused")

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestMemoryAuctionRepository_GetReturnsCopies(t *testing.T) {
	repo := NewMemoryAuctionRepository()
	ctx := context.Background()

	_, err := repo.Insert(ctx, newAuction(t, alice))
	require.NoError(t, err)

	got, err := repo.Get(ctx, 0)
	require.NoError(t, err)
	got.Active = false

	again, err := repo.Get(ctx, 0)
	require.NoError(t, err)
	assert.True(t, again.Active, "callers cannot mutate stored records")

	_, err = repo.Get(ctx, 5)
	assert.ErrorIs(t, err, errors.ErrAuctionNotFound)
}

func TestMemoryAuctionRepository_CloseAndReopen(t *testing.T) {
	repo := NewMemoryAuctionRepository()
	ctx := context.Background()
	_, err := repo.Insert(ctx, newAuction(t, alice))
	require.NoError(t, err)

	require.NoError(t, repo.Close(ctx, 0, auction.ClosedSold))
	assert.ErrorIs(t, repo.Close(ctx, 0, auction.ClosedSold), errors.ErrAuctionNotActive)
	assert.ErrorIs(t, repo.Close(ctx, 0, auction.ClosedCancelled), errors.ErrAuctionNotActive)
	assert.ErrorIs(t, repo.Close(ctx, 9, auction.ClosedSold), errors.ErrAuctionNotFound)

	require.NoError(t, repo.Reopen(ctx, 0))
	a, err := repo.Get(ctx, 0)
	require.NoError(t, err)
	assert.True(t, a.Active)
	assert.Equal(t, auction.ClosedNone, a.ClosedReason)

	require.NoError(t, repo.Close(ctx, 0, auction.ClosedCancelled))
	assert.Error(t, repo.Reopen(ctx, 0), "cancelled auctions stay closed")
}

func TestMemoryAuctionRepository_List(t *testing.T) {
	repo := NewMemoryAuctionRepository()
	ctx := context.Background()

	for _, seller := range []values.Principal{alice, bob, alice, bob, alice} {
		_, err := repo.Insert(ctx, newAuction(t, seller))
		require.NoError(t, err)
	}
	require.NoError(t, repo.Close(ctx, 2, auction.ClosedSold))

	active := true
	inactive := false

	tests := []struct {
		name   string
		filter auction.ListFilter
		ids    []uint64
	}{
		{name: "all", filter: auction.ListFilter{}, ids: []uint64{0, 1, 2, 3, 4}},
		{name: "by seller", filter: auction.ListFilter{Seller: alice}, ids: []uint64{0, 2, 4}},
		{name: "active only", filter: auction.ListFilter{Active: &active}, ids: []uint64{0, 1, 3, 4}},
		{name: "completed only", filter: auction.ListFilter{Active: &inactive}, ids: []uint64{2}},
		{name: "seller and active", filter: auction.ListFilter{Seller: alice, Active: &active}, ids: []uint64{0, 4}},
		{name: "paged", filter: auction.ListFilter{Offset: 1, Limit: 2}, ids: []uint64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]uint64, 0, len(got))
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestMemoryFeeRepository(t *testing.T) {
	repo := NewMemoryFeeRepository()
	ctx := context.Background()

	_, err := repo.GetFee(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	fee, err := repo.InitFee(ctx, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), fee)

	require.NoError(t, repo.SetFee(ctx, 500))
	fee, err = repo.InitFee(ctx, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), fee, "init keeps an existing fee")
}
