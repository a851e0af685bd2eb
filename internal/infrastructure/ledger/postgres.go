package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/database"
)

// PostgresLedger keeps balances in ledger_accounts. Each settlement runs in
// one database transaction; staged movements take row locks, so concurrent
// settlements touching the same account serialize in the database.
type PostgresLedger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresLedger(db *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresLedger{db: db, logger: logger}
}

func (l *PostgresLedger) Balance(ctx context.Context, account values.Principal) (values.Amount, error) {
	var balance values.Amount
	err := l.db.QueryRow(ctx,
		`SELECT balance::text FROM ledger_accounts WHERE account = $1`,
		account.String(),
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return values.ZeroAmount, nil
	}
	if err != nil {
		return values.ZeroAmount, fmt.Errorf("ledger balance: %w", err)
	}
	return balance, nil
}

// Deposit credits an account outside of any settlement.
func (l *PostgresLedger) Deposit(ctx context.Context, account values.Principal, amount values.Amount) error {
	return database.RunInTx(ctx, l.db, func(tx pgx.Tx) error {
		if err := credit(ctx, tx, account, amount); err != nil {
			return err
		}
		return insertEntry(ctx, tx, uuid.New(), ledger.EntryDeposit, account, amount)
	})
}

// Seed credits every account in the map, parsing amounts as base units.
func (l *PostgresLedger) Seed(ctx context.Context, seed map[string]string) error {
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
			return fmt.Errorf("seed %s: %w", p, err)
		}
	}
	return nil
}

// SetCanReceive toggles whether transfers to the account are accepted.
func (l *PostgresLedger) SetCanReceive(ctx context.Context, account values.Principal, ok bool) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO ledger_accounts (account, can_receive) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET can_receive = EXCLUDED.can_receive, updated_at = NOW()`,
		account.String(), ok)
	if err != nil {
		return fmt.Errorf("ledger set can_receive: %w", err)
	}
	return nil
}

// Entries returns the committed movements of one settlement.
func (l *PostgresLedger) Entries(ctx context.Context, txID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, tx_id, kind, account, amount::text, created_at
		FROM ledger_entries WHERE tx_id = $1 ORDER BY created_at, kind, id`,
		txID)
	if err != nil {
		return nil, fmt.Errorf("ledger entries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var (
			e             ledger.Entry
			kind, account string
		)
		if err := rows.Scan(&e.ID, &e.TxID, &kind, &account, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Kind = ledger.EntryKind(kind)
		e.Account = values.Principal(account)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *PostgresLedger) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger begin: %w", err)
	}
	return &postgresTx{tx: tx, id: uuid.New(), logger: l.logger}, nil
}

type postgresTx struct {
	tx     pgx.Tx
	id     uuid.UUID
	escrow ledger.Escrow
	closed bool
	logger *zap.Logger
}

func (t *postgresTx) ID() uuid.UUID { return t.id }

// Bind carries the database transaction in ctx, so repositories on the same
// database (see database.Conn) write inside it.
func (t *postgresTx) Bind(ctx context.Context) (context.Context, bool) {
	return database.WithTx(ctx, t.tx), true
}

func (t *postgresTx) Collect(ctx context.Context, from values.Principal, amount values.Amount) error {
	if t.closed {
		return ledger.ErrTxClosed
	}

	if !amount.IsZero() {
		tag, err := t.tx.Exec(ctx, `
			UPDATE ledger_accounts SET balance = balance - $2::text::numeric, updated_at = NOW()
			WHERE account = $1 AND balance >= $2::text::numeric`,
			from.String(), amount.String())
		if err != nil {
			return fmt.Errorf("ledger collect: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ledger.ErrInsufficientFunds
		}
		if err := insertEntry(ctx, t.tx, t.id, ledger.EntryCollect, from, amount); err != nil {
			return err
		}
	}

	t.escrow.Collected = t.escrow.Collected.Add(amount)
	return nil
}

func (t *postgresTx) Transfer(ctx context.Context, to values.Principal, amount values.Amount) error {
	if t.closed {
		return ledger.ErrTxClosed
	}
	if err := t.escrow.Reserve(amount); err != nil {
		return err
	}
	if err := credit(ctx, t.tx, to, amount); err != nil {
		return err
	}
	return insertEntry(ctx, t.tx, t.id, ledger.EntryTransfer, to, amount)
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if t.closed {
		return ledger.ErrTxClosed
	}
	t.closed = true

	if !t.escrow.Balanced() {
		_ = t.tx.Rollback(ctx)
		return ledger.ErrEscrowImbalance
	}
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}

	t.logger.Debug("ledger transaction committed",
		zap.String("tx_id", t.id.String()),
		zap.String("volume", t.escrow.Collected.String()))
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("ledger rollback: %w", err)
	}
	return nil
}

// credit adds amount to an account, creating it on first use. Accounts that
// cannot receive make the upsert affect no row.
func credit(ctx context.Context, tx pgx.Tx, account values.Principal, amount values.Amount) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (account, balance) VALUES ($1, $2::text::numeric)
		ON CONFLICT (account) DO UPDATE
			SET balance = ledger_accounts.balance + EXCLUDED.balance, updated_at = NOW()
			WHERE ledger_accounts.can_receive`,
		account.String(), amount.String())
	if err != nil {
		return fmt.Errorf("ledger credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrCannotReceive
	}
	return nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, txID uuid.UUID, kind ledger.EntryKind, account values.Principal, amount values.Amount) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, tx_id, kind, account, amount)
		VALUES ($1, $2, $3, $4, $5::text::numeric)`,
		uuid.New(), txID, string(kind), account.String(), amount.String())
	if err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}
	return nil
}
