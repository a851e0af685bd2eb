//go:build integration

package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/testutil/containers"
)

func TestPostgresLedger(t *testing.T) {
	pool := containers.MigratedPool(t)
	l := NewPostgresLedger(pool, zaptest.NewLogger(t))
	ctx := context.Background()

	balance := func(t *testing.T, p values.Principal) string {
		t.Helper()
		b, err := l.Balance(ctx, p)
		require.NoError(t, err)
		return b.String()
	}

	require.NoError(t, l.Deposit(ctx, buyer, amt(1000)))
	assert.Equal(t, "1000", balance(t, buyer))
	assert.Equal(t, "0", balance(t, seller), "unknown accounts have a zero balance")

	t.Run("settlement commits atomically", func(t *testing.T) {
		tx, err := l.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Collect(ctx, buyer, amt(900)))
		require.NoError(t, tx.Transfer(ctx, admin, amt(20)))
		require.NoError(t, tx.Transfer(ctx, seller, amt(780)))
		require.NoError(t, tx.Transfer(ctx, buyer, amt(100)))

		assert.Equal(t, "1000", balance(t, buyer))
		require.NoError(t, tx.Commit(ctx))

		assert.Equal(t, "200", balance(t, buyer))
		assert.Equal(t, "780", balance(t, seller))
		assert.Equal(t, "20", balance(t, admin))

		entries, err := l.Entries(ctx, tx.ID())
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		tx, err := l.Begin(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, tx.Collect(ctx, buyer, amt(201)), ledger.ErrInsufficientFunds)
		require.NoError(t, tx.Rollback(ctx))
		assert.Equal(t, "200", balance(t, buyer))
	})

	t.Run("blocked recipient rolls back", func(t *testing.T) {
		require.NoError(t, l.SetCanReceive(ctx, seller, false))
		defer func() { require.NoError(t, l.SetCanReceive(ctx, seller, true)) }()

		tx, err := l.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Collect(ctx, buyer, amt(100)))
		assert.ErrorIs(t, tx.Transfer(ctx, seller, amt(100)), ledger.ErrCannotReceive)
		require.NoError(t, tx.Rollback(ctx))

		assert.Equal(t, "200", balance(t, buyer))
		assert.Equal(t, "780", balance(t, seller))
	})

	t.Run("unbalanced escrow never commits", func(t *testing.T) {
		tx, err := l.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Collect(ctx, buyer, amt(50)))
		require.NoError(t, tx.Transfer(ctx, seller, amt(10)))
		assert.ErrorIs(t, tx.Commit(ctx), ledger.ErrEscrowImbalance)

		assert.Equal(t, "200", balance(t, buyer))
		assert.Equal(t, "780", balance(t, seller))
	})
}
