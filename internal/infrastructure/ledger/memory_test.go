package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

var (
	buyer  = values.MustNewPrincipal("buyer")
	seller = values.MustNewPrincipal("seller")
	admin  = values.MustNewPrincipal("admin")
)

func amt(n uint64) values.Amount { return values.AmountFromUint64(n) }

func newFunded(t *testing.T, balance uint64) *MemoryLedger {
	t.Helper()
	l := NewMemoryLedger(zaptest.NewLogger(t))
	require.NoError(t, l.Deposit(context.Background(), buyer, amt(balance)))
	return l
}

func balanceOf(t *testing.T, l *MemoryLedger, p values.Principal) uint64 {
	t.Helper()
	b, err := l.Balance(context.Background(), p)
	require.NoError(t, err)
	return b.BigInt().Uint64()
}

func TestMemoryLedger_SettlementCommit(t *testing.T) {
	ctx := context.Background()
	l := newFunded(t, 1000)

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Collect(ctx, buyer, amt(900)))
	require.NoError(t, tx.Transfer(ctx, admin, amt(20)))
	require.NoError(t, tx.Transfer(ctx, seller, amt(780)))
	require.NoError(t, tx.Transfer(ctx, buyer, amt(100)))

	// Nothing is visible before commit.
	assert.Equal(t, uint64(1000), balanceOf(t, l, buyer))
	assert.Equal(t, uint64(0), balanceOf(t, l, seller))

	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, uint64(200), balanceOf(t, l, buyer))
	assert.Equal(t, uint64(780), balanceOf(t, l, seller))
	assert.Equal(t, uint64(20), balanceOf(t, l, admin))

	var settled int
	for _, e := range l.Entries() {
		if e.TxID == tx.ID() {
			settled++
		}
	}
	assert.Equal(t, 4, settled)

	assert.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")
	assert.ErrorIs(t, tx.Commit(ctx), ledger.ErrTxClosed)
}

func TestMemoryLedger_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		stage   func(tx ledger.Tx) error
		wantErr error
	}{
		{
			name:    "collect beyond balance",
			stage:   func(tx ledger.Tx) error { return tx.Collect(ctx, buyer, amt(1001)) },
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name: "collect twice beyond balance",
			stage: func(tx ledger.Tx) error {
				if err := tx.Collect(ctx, buyer, amt(600)); err != nil {
					return err
				}
				return tx.Collect(ctx, buyer, amt(600))
			},
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name: "transfer beyond escrow",
			stage: func(tx ledger.Tx) error {
				if err := tx.Collect(ctx, buyer, amt(10)); err != nil {
					return err
				}
				return tx.Transfer(ctx, seller, amt(11))
			},
			wantErr: ledger.ErrEscrowOverdrawn,
		},
		{
			name: "commit with undistributed escrow",
			stage: func(tx ledger.Tx) error {
				if err := tx.Collect(ctx, buyer, amt(10)); err != nil {
					return err
				}
				if err := tx.Transfer(ctx, seller, amt(9)); err != nil {
					return err
				}
				return tx.Commit(ctx)
			},
			wantErr: ledger.ErrEscrowImbalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFunded(t, 1000)
			tx, err := l.Begin(ctx)
			require.NoError(t, err)

			assert.ErrorIs(t, tt.stage(tx), tt.wantErr)
			require.NoError(t, tx.Rollback(ctx))

			assert.Equal(t, uint64(1000), balanceOf(t, l, buyer))
			assert.Equal(t, uint64(0), balanceOf(t, l, seller))
		})
	}
}

func TestMemoryLedger_CannotReceive(t *testing.T) {
	ctx := context.Background()
	l := newFunded(t, 100)
	require.NoError(t, l.SetCanReceive(ctx, seller, false))

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Collect(ctx, buyer, amt(100)))
	assert.ErrorIs(t, tx.Transfer(ctx, seller, amt(100)), ledger.ErrCannotReceive)
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, uint64(100), balanceOf(t, l, buyer))

	require.NoError(t, l.SetCanReceive(ctx, seller, true))
	tx, err = l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Collect(ctx, buyer, amt(100)))
	require.NoError(t, tx.Transfer(ctx, seller, amt(100)))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, uint64(100), balanceOf(t, l, seller))
}

func TestMemoryLedger_CommitRechecksBalances(t *testing.T) {
	ctx := context.Background()
	l := newFunded(t, 100)

	first, err := l.Begin(ctx)
	require.NoError(t, err)
	second, err := l.Begin(ctx)
	require.NoError(t, err)

	for _, tx := range []ledger.Tx{first, second} {
		require.NoError(t, tx.Collect(ctx, buyer, amt(80)))
		require.NoError(t, tx.Transfer(ctx, seller, amt(80)))
	}

	require.NoError(t, first.Commit(ctx))
	assert.ErrorIs(t, second.Commit(ctx), ledger.ErrInsufficientFunds)

	assert.Equal(t, uint64(20), balanceOf(t, l, buyer))
	assert.Equal(t, uint64(80), balanceOf(t, l, seller))
}

func TestMemoryLedger_Seed(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(nil)

	require.NoError(t, l.Seed(ctx, map[string]string{
		"0xAbCdEf0123456789aBcDeF0123456789AbCdEf01": "1000000000000000000",
	}))
	b, err := l.Balance(ctx, values.MustNewPrincipal("0xabcdef0123456789abcdef0123456789abcdef01"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", b.String())

	assert.Error(t, l.Seed(ctx, map[string]string{"buyer": "-1"}))
	assert.Error(t, l.Seed(ctx, map[string]string{"": "1"}))
}
