// Package ledger defines the balance ledger the settlement engine moves funds
// through. A settlement collects the buyer's payment into the transaction's
// escrow and pays it out again; a transaction only commits when the escrow
// has been fully distributed.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

var (
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrCannotReceive     = errors.New("ledger: account cannot receive funds")
	ErrEscrowImbalance   = errors.New("ledger: escrow not fully distributed")
	ErrEscrowOverdrawn   = errors.New("ledger: transfer exceeds escrow")
	ErrTxClosed          = errors.New("ledger: transaction already closed")
)

// Ledger opens settlement transactions and reports balances.
type Ledger interface {
	Begin(ctx context.Context) (Tx, error)
	Balance(ctx context.Context, account values.Principal) (values.Amount, error)
}

// Tx stages movements that become visible only on Commit. Staging calls
// fail immediately when the ledger would reject the movement.
type Tx interface {
	ID() uuid.UUID

	// Collect moves amount from an account into the transaction escrow.
	Collect(ctx context.Context, from values.Principal, amount values.Amount) error

	// Transfer pays amount out of the escrow to an account.
	Transfer(ctx context.Context, to values.Principal, amount values.Amount) error

	// Commit applies all staged movements. It fails with ErrEscrowImbalance
	// if collected and transferred totals differ.
	Commit(ctx context.Context) error

	// Rollback discards staged movements. It is a no-op after Commit.
	Rollback(ctx context.Context) error

	// Bind returns a context under which stores sharing the ledger's
	// database write inside this transaction, and reports whether they do.
	// Writes made through a bound context commit and roll back with it.
	Bind(ctx context.Context) (context.Context, bool)
}

// EntryKind distinguishes escrow intake from payouts.
type EntryKind string

const (
	EntryDeposit  EntryKind = "deposit"
	EntryCollect  EntryKind = "collect"
	EntryTransfer EntryKind = "transfer"
)

// Entry is one committed movement.
type Entry struct {
	ID        uuid.UUID        `json:"id"`
	TxID      uuid.UUID        `json:"tx_id"`
	Kind      EntryKind        `json:"kind"`
	Account   values.Principal `json:"account"`
	Amount    values.Amount    `json:"amount"`
	CreatedAt time.Time        `json:"created_at"`
}

// Escrow tracks collected and paid out totals of a transaction.
type Escrow struct {
	Collected   values.Amount
	Transferred values.Amount
}

// Remaining is what can still be paid out.
func (e Escrow) Remaining() values.Amount {
	r, err := e.Collected.Sub(e.Transferred)
	if err != nil {
		return values.ZeroAmount
	}
	return r
}

// Reserve accounts for a payout, failing when it exceeds the escrow.
func (e *Escrow) Reserve(amount values.Amount) error {
	if e.Remaining().LessThan(amount) {
		return ErrEscrowOverdrawn
	}
	e.Transferred = e.Transferred.Add(amount)
	return nil
}

// Balanced reports whether everything collected has been paid out.
func (e Escrow) Balanced() bool {
	return e.Collected.Equal(e.Transferred)
}
