package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/database"
)

const auctionColumns = `id, seller, item_description, starting_price::text, ending_price::text,
	duration, start_at, active, closed_reason`

// AuctionRepository stores auctions in PostgreSQL. Ids come from the
// single-row auction_sequence table, bumped in the same transaction as the
// insert so a failed insert never burns an id.
type AuctionRepository struct {
	db *pgxpool.Pool
}

func NewAuctionRepository(db *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{db: db}
}

func (r *AuctionRepository) Insert(ctx context.Context, a *auction.Auction) (uint64, error) {
	var id int64
	err := database.RunInTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE auction_sequence SET next_id = next_id + 1 RETURNING next_id - 1`,
		).Scan(&id)
		if err != nil {
			if IsNotFound(err) {
				return ErrSequenceMissing
			}
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO auctions (id, seller, item_description, starting_price, ending_price,
				duration, start_at, active, closed_reason)
			VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6, $7, TRUE, '')`,
			id, a.Seller.String(), a.ItemDescription, a.StartingPrice.String(), a.EndingPrice.String(),
			int64(a.Duration), int64(a.StartAt))
		return err
	})
	if err != nil {
		return 0, WrapRepositoryError(err, "insert auction")
	}

	a.ID = uint64(id)
	return a.ID, nil
}

func (r *AuctionRepository) Get(ctx context.Context, id uint64) (*auction.Auction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, int64(id))
	a, err := scanAuction(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.ErrAuctionNotFound
		}
		return nil, WrapRepositoryError(err, "get auction")
	}
	return a, nil
}

func (r *AuctionRepository) Count(ctx context.Context) (uint64, error) {
	var next int64
	if err := r.db.QueryRow(ctx, `SELECT next_id FROM auction_sequence`).Scan(&next); err != nil {
		if IsNotFound(err) {
			return 0, ErrSequenceMissing
		}
		return 0, WrapRepositoryError(err, "count auctions")
	}
	return uint64(next), nil
}

func (r *AuctionRepository) List(ctx context.Context, filter auction.ListFilter) ([]*auction.Auction, error) {
	var (
		conds []string
		args  []interface{}
	)
	if !filter.Seller.IsZero() {
		args = append(args, filter.Seller.String())
		conds = append(conds, fmt.Sprintf("seller = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conds = append(conds, fmt.Sprintf("active = $%d", len(args)))
	}

	query := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, int64(filter.Offset))
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, WrapRepositoryError(err, "list auctions")
	}
	defer rows.Close()

	out := make([]*auction.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, WrapRepositoryError(err, "scan auction")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close runs inside the transaction carried by ctx, if any, so a sale can
// commit or roll back together with its ledger movements.
func (r *AuctionRepository) Close(ctx context.Context, id uint64, reason auction.ClosedReason) error {
	if reason != auction.ClosedSold && reason != auction.ClosedCancelled {
		return errors.NewInternalError("unknown close reason: " + string(reason))
	}

	conn := database.Conn(ctx, r.db)
	tag, err := conn.Exec(ctx, `
		UPDATE auctions SET active = FALSE, closed_reason = $2, updated_at = NOW()
		WHERE id = $1 AND active`,
		int64(id), string(reason))
	if err != nil {
		return WrapRepositoryError(err, "close auction")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE id = $1)`, int64(id)).Scan(&exists); err != nil {
		return WrapRepositoryError(err, "close auction")
	}
	if !exists {
		return errors.ErrAuctionNotFound
	}
	return errors.ErrAuctionNotActive.WithDetails(map[string]interface{}{"auction_id": id})
}

func (r *AuctionRepository) Reopen(ctx context.Context, id uint64) error {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, `
		UPDATE auctions SET active = TRUE, closed_reason = '', updated_at = NOW()
		WHERE id = $1 AND closed_reason = 'sold'`,
		int64(id))
	if err != nil {
		return WrapRepositoryError(err, "reopen auction")
	}
	if tag.RowsAffected() == 0 {
		return errors.NewInternalError("only a sold auction can be reopened")
	}
	return nil
}

func scanAuction(row pgx.Row) (*auction.Auction, error) {
	var (
		a                auction.Auction
		id, dur, startAt int64
		seller, reason   string
	)
	err := row.Scan(&id, &seller, &a.ItemDescription, &a.StartingPrice, &a.EndingPrice,
		&dur, &startAt, &a.Active, &reason)
	if err != nil {
		return nil, err
	}

	a.ID = uint64(id)
	a.Seller = values.Principal(seller)
	a.Duration = uint64(dur)
	a.StartAt = uint64(startAt)
	a.ClosedReason = auction.ClosedReason(reason)
	return &a, nil
}
