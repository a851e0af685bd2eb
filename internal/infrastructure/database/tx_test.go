package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commits   int
	rollbacks int
}

func (f *fakeTx) Commit(context.Context) error {
	f.commits++
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.commits > 0 {
		return pgx.ErrTxClosed
	}
	f.rollbacks++
	return nil
}

type fakeBeginner struct {
	tx     *fakeTx
	begins int
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	b.begins++
	return b.tx, nil
}

func TestTxFromContext(t *testing.T) {
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)

	_, ok = TxFromContext(WithTx(context.Background(), nil))
	assert.False(t, ok, "a nil tx is not carried")

	tx := &fakeTx{}
	got, ok := TxFromContext(WithTx(context.Background(), tx))
	require.True(t, ok)
	assert.Same(t, tx, got)
}

func TestConn(t *testing.T) {
	db := &fakeTx{}
	assert.Same(t, db, Conn(context.Background(), db))

	tx := &fakeTx{}
	assert.Same(t, tx, Conn(WithTx(context.Background(), tx), db))
}

func TestRunInTx(t *testing.T) {
	t.Run("opens and commits its own transaction", func(t *testing.T) {
		db := &fakeBeginner{tx: &fakeTx{}}
		var seen pgx.Tx
		err := RunInTx(context.Background(), db, func(tx pgx.Tx) error {
			seen = tx
			return nil
		})
		require.NoError(t, err)
		assert.Same(t, db.tx, seen)
		assert.Equal(t, 1, db.begins)
		assert.Equal(t, 1, db.tx.commits)
	})

	t.Run("rolls back its own transaction on error", func(t *testing.T) {
		db := &fakeBeginner{tx: &fakeTx{}}
		err := RunInTx(context.Background(), db, func(pgx.Tx) error { return assert.AnError })
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 0, db.tx.commits)
		assert.Equal(t, 1, db.tx.rollbacks)
	})

	t.Run("joins the transaction carried by ctx", func(t *testing.T) {
		outer := &fakeTx{}
		db := &fakeBeginner{tx: &fakeTx{}}
		var seen pgx.Tx
		err := RunInTx(WithTx(context.Background(), outer), db, func(tx pgx.Tx) error {
			seen = tx
			return nil
		})
		require.NoError(t, err)
		assert.Same(t, outer, seen)
		assert.Zero(t, db.begins)
		assert.Zero(t, outer.commits, "the owner of the outer transaction commits")
	})
}
