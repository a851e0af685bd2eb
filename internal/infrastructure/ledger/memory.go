// Package ledger provides the balance ledgers the settlement engine moves
// funds through: an in-process ledger for single-node deployments and tests,
// and a PostgreSQL ledger that commits with the database transaction.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// MemoryLedger keeps balances in a map. Staged movements are re-validated
// against current balances when a transaction commits.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[values.Principal]values.Amount
	blocked  map[values.Principal]bool
	entries  []ledger.Entry
	now      func() time.Time
	logger   *zap.Logger
}

func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLedger{
		balances: make(map[values.Principal]values.Amount),
		blocked:  make(map[values.Principal]bool),
		now:      time.Now,
		logger:   logger,
	}
}

// Seed credits every account in the map, parsing amounts as base units.
func (l *MemoryLedger) Seed(ctx context.Context, seed map[string]string) error {
	for account, raw := range seed {
		p, err := values.NewPrincipal(account)
		if err != nil {
			return err
		}
		amount, err := values.ParseAmount(raw)
		if err != nil {
			return err
		}
		if err := l.Deposit(ctx, p, amount); err != nil {
			return err
		}
	}
	return nil
}

// Deposit credits an account outside of any settlement.
func (l *MemoryLedger) Deposit(_ context.Context, account values.Principal, amount values.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.blocked[account] {
		return ledger.ErrCannotReceive
	}
	l.balances[account] = l.balances[account].Add(amount)
	l.entries = append(l.entries, ledger.Entry{
		ID:        uuid.New(),
		Kind:      ledger.EntryDeposit,
		Account:   account,
		Amount:    amount,
		CreatedAt: l.now(),
	})
	return nil
}

// SetCanReceive toggles whether transfers to the account are accepted.
func (l *MemoryLedger) SetCanReceive(_ context.Context, account values.Principal, ok bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok {
		delete(l.blocked, account)
	} else {
		l.blocked[account] = true
	}
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, account values.Principal) (values.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Entries returns the committed movements in commit order.
func (l *MemoryLedger) Entries() []ledger.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MemoryLedger) Begin(_ context.Context) (ledger.Tx, error) {
	return &memoryTx{
		ledger: l,
		id:     uuid.New(),
		debits: make(map[values.Principal]values.Amount),
	}, nil
}

type memoryMove struct {
	kind    ledger.EntryKind
	account values.Principal
	amount  values.Amount
}

type memoryTx struct {
	ledger *MemoryLedger
	id     uuid.UUID
	escrow ledger.Escrow
	debits map[values.Principal]values.Amount
	moves  []memoryMove
	closed bool
}

func (tx *memoryTx) ID() uuid.UUID { return tx.id }

// Bind returns ctx unchanged; in-process stores do not join the transaction.
func (tx *memoryTx) Bind(ctx context.Context) (context.Context, bool) { return ctx, false }

func (tx *memoryTx) Collect(_ context.Context, from values.Principal, amount values.Amount) error {
	if tx.closed {
		return ledger.ErrTxClosed
	}

	debit := tx.debits[from].Add(amount)
	balance, _ := tx.ledger.Balance(context.Background(), from)
	if balance.LessThan(debit) {
		return ledger.ErrInsufficientFunds
	}

	tx.debits[from] = debit
	tx.escrow.Collected = tx.escrow.Collected.Add(amount)
	tx.moves = append(tx.moves, memoryMove{kind: ledger.EntryCollect, account: from, amount: amount})
	return nil
}

func (tx *memoryTx) Transfer(_ context.Context, to values.Principal, amount values.Amount) error {
	if tx.closed {
		return ledger.ErrTxClosed
	}

	tx.ledger.mu.Lock()
	blocked := tx.ledger.blocked[to]
	tx.ledger.mu.Unlock()
	if blocked {
		return ledger.ErrCannotReceive
	}

	if err := tx.escrow.Reserve(amount); err != nil {
		return err
	}
	tx.moves = append(tx.moves, memoryMove{kind: ledger.EntryTransfer, account: to, amount: amount})
	return nil
}

func (tx *memoryTx) Commit(_ context.Context) error {
	if tx.closed {
		return ledger.ErrTxClosed
	}
	tx.closed = true

	if !tx.escrow.Balanced() {
		return ledger.ErrEscrowImbalance
	}

	l := tx.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	// Balances may have moved since staging.
	for account, debit := range tx.debits {
		if l.balances[account].LessThan(debit) {
			return ledger.ErrInsufficientFunds
		}
	}
	for _, m := range tx.moves {
		if m.kind == ledger.EntryTransfer && l.blocked[m.account] {
			return ledger.ErrCannotReceive
		}
	}

	at := l.now()
	for _, m := range tx.moves {
		switch m.kind {
		case ledger.EntryCollect:
			// checked above
			l.balances[m.account], _ = l.balances[m.account].Sub(m.amount)
		case ledger.EntryTransfer:
			l.balances[m.account] = l.balances[m.account].Add(m.amount)
		}
		l.entries = append(l.entries, ledger.Entry{
			ID:        uuid.New(),
			TxID:      tx.id,
			Kind:      m.kind,
			Account:   m.account,
			Amount:    m.amount,
			CreatedAt: at,
		})
	}

	l.logger.Debug("ledger transaction committed",
		zap.String("tx_id", tx.id.String()),
		zap.Int("movements", len(tx.moves)),
		zap.String("volume", tx.escrow.Collected.String()))
	return nil
}

func (tx *memoryTx) Rollback(_ context.Context) error {
	tx.closed = true
	tx.moves = nil
	return nil
}
