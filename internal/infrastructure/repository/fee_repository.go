package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FeeRepository keeps the platform fee in the single-row platform_settings table.
type FeeRepository struct {
	db *pgxpool.Pool
}

func NewFeeRepository(db *pgxpool.Pool) *FeeRepository {
	return &FeeRepository{db: db}
}

func (r *FeeRepository) InitFee(ctx context.Context, bps uint64) (uint64, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO platform_settings (singleton, fee_bps) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO NOTHING`,
		int32(bps))
	if err != nil {
		return 0, WrapRepositoryError(err, "init platform fee")
	}
	return r.GetFee(ctx)
}

func (r *FeeRepository) GetFee(ctx context.Context) (uint64, error) {
	var bps int32
	if err := r.db.QueryRow(ctx, `SELECT fee_bps FROM platform_settings`).Scan(&bps); err != nil {
		return 0, WrapRepositoryError(err, "get platform fee")
	}
	return uint64(bps), nil
}

func (r *FeeRepository) SetFee(ctx context.Context, bps uint64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO platform_settings (singleton, fee_bps, updated_at) VALUES (TRUE, $1, NOW())
		ON CONFLICT (singleton) DO UPDATE SET fee_bps = EXCLUDED.fee_bps, updated_at = EXCLUDED.updated_at`,
		int32(bps))
	return WrapRepositoryError(err, "set platform fee")
}
