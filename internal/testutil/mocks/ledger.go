package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// Ledger mock
type Ledger struct {
	mock.Mock
}

func (m *Ledger) Begin(ctx context.Context) (ledger.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ledger.Tx), args.Error(1)
}

func (m *Ledger) Balance(ctx context.Context, account values.Principal) (values.Amount, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(values.Amount), args.Error(1)
}

// LedgerTx mock. Joined makes Bind report that stores write inside the
// transaction; the bound context then carries TxID (see BoundTx).
type LedgerTx struct {
	mock.Mock
	TxID   uuid.UUID
	Joined bool
}

type boundTxKey struct{}

// BoundTx returns the id of the LedgerTx a context was bound to.
func BoundTx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(boundTxKey{}).(uuid.UUID)
	return id, ok
}

func NewLedgerTx() *LedgerTx {
	return &LedgerTx{TxID: uuid.New()}
}

func (m *LedgerTx) ID() uuid.UUID {
	return m.TxID
}

func (m *LedgerTx) Collect(ctx context.Context, from values.Principal, amount values.Amount) error {
	args := m.Called(ctx, from, amount)
	return args.Error(0)
}

func (m *LedgerTx) Transfer(ctx context.Context, to values.Principal, amount values.Amount) error {
	args := m.Called(ctx, to, amount)
	return args.Error(0)
}

func (m *LedgerTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *LedgerTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *LedgerTx) Bind(ctx context.Context) (context.Context, bool) {
	if !m.Joined {
		return ctx, false
	}
	return context.WithValue(ctx, boundTxKey{}, m.TxID), true
}

// Publisher mock
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, event auction.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
