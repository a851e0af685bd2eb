// Package settlement runs the Dutch auction exchange: it lists auctions,
// prices them, settles purchases against the ledger and administers the
// platform fee.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/cache"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/telemetry"
	"github.com/davidleathers/dutch-auction-exchange/internal/metrics"
)

const (
	statusAll       = "all"
	statusActive    = "active"
	statusCompleted = "completed"
)

// Engine implements Service. Mutations hold the per-auction lock from the
// Locker and the engine's write lock; reads hold the read lock, so no reader
// sees a sale whose ledger transaction has not committed.
type Engine struct {
	registry  *Registry
	fees      *FeeAdmin
	ledger    ledger.Ledger
	clock     auction.Clock
	locker    cache.Locker
	publisher auction.Publisher
	metrics   *metrics.Registry
	logger    *slog.Logger
	tracer    trace.Tracer

	currencyDecimals int32

	mu sync.RWMutex
}

var _ Service = (*Engine)(nil)

// NewEngine builds an engine and persists the initial fee unless one is
// already stored. It fails with InvalidFeePercentage for an initial fee above
// the maximum.
func NewEngine(ctx context.Context, deps Dependencies) (*Engine, error) {
	if deps.Auctions == nil || deps.Fees == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("auction repository, fee repository and ledger are required")
	}

	fees, err := NewFeeAdmin(ctx, deps.Fees, deps.Admin, deps.InitialFeeBps)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		registry:         NewRegistry(deps.Auctions),
		fees:             fees,
		ledger:           deps.Ledger,
		clock:            deps.Clock,
		locker:           deps.Locker,
		publisher:        deps.Publisher,
		metrics:          deps.Metrics,
		logger:           deps.Logger,
		tracer:           otel.Tracer("service.settlement"),
		currencyDecimals: deps.CurrencyDecimals,
	}
	if e.clock == nil {
		e.clock = auction.RealClock{}
	}
	if e.locker == nil {
		e.locker = cache.NewLocalLocker()
	}
	if e.publisher == nil {
		e.publisher = nopPublisher{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		if e.metrics, err = metrics.NewRegistry("service.settlement"); err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
	}
	return e, nil
}

func (e *Engine) CreateAuction(ctx context.Context, seller values.Principal, req *CreateAuctionRequest) (uint64, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CreateAuction",
		trace.WithAttributes(attribute.String("auction.seller", seller.String())))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	id, err := e.registry.Create(ctx, seller, req.ItemDescription, req.StartingPrice, req.EndingPrice, req.Duration, auction.Unix(now))
	if err != nil {
		return 0, e.reject(ctx, span, "create", err)
	}
	span.SetAttributes(attribute.Int64("auction.id", int64(id)))

	e.metrics.RecordAuctionCreated(ctx)
	e.logger.InfoContext(ctx, "auction created",
		slog.Uint64("auction_id", id),
		slog.String("seller", seller.String()),
		slog.String("starting_price", req.StartingPrice.String()),
		slog.String("ending_price", req.EndingPrice.String()),
		slog.Uint64("duration", req.Duration))

	if a, err := e.registry.Get(ctx, id); err == nil {
		e.publish(ctx, auction.NewAuctionCreated(a, now))
	}
	return id, nil
}

func (e *Engine) GetAuction(ctx context.Context, id uint64) (*AuctionView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.view(a, auction.Unix(e.clock.Now())), nil
}

// GetCurrentPrice fails with AuctionNotActive for unknown or closed
// auctions. An expired auction still reports its ending price.
func (e *Engine) GetCurrentPrice(ctx context.Context, id uint64) (values.Amount, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, err := e.registry.GetActive(ctx, id)
	if err != nil {
		return values.ZeroAmount, err
	}
	return auction.CurrentPrice(a, auction.Unix(e.clock.Now())), nil
}

func (e *Engine) ListAuctions(ctx context.Context, filter ListFilter) ([]*AuctionView, error) {
	f := auction.ListFilter{Seller: filter.Seller, Offset: filter.Offset, Limit: filter.Limit}
	switch filter.Status {
	case "", statusAll:
	case statusActive:
		active := true
		f.Active = &active
	case statusCompleted:
		active := false
		f.Active = &active
	default:
		return nil, errors.NewValidationError("INVALID_STATUS_FILTER",
			"status must be one of all, active, completed").
			WithDetails(map[string]interface{}{"status": filter.Status})
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	list, err := e.registry.List(ctx, f)
	if err != nil {
		return nil, err
	}
	now := auction.Unix(e.clock.Now())
	out := make([]*AuctionView, 0, len(list))
	for _, a := range list {
		out = append(out, e.view(a, now))
	}
	return out, nil
}

func (e *Engine) AuctionCount(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Count(ctx)
}

// Buy settles a purchase of auction id by payer, who sends amountPaid. The
// checks run in a fixed order: not active, expired, insufficient payment.
// Once they pass, the caller's cancellation no longer applies.
func (e *Engine) Buy(ctx context.Context, id uint64, payer values.Principal, amountPaid values.Amount) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Buy", trace.WithAttributes(
		attribute.Int64("auction.id", int64(id)),
		attribute.String("auction.buyer", payer.String()),
		attribute.String("auction.amount_paid", amountPaid.String()),
	))
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return nil, e.reject(ctx, span, "buy", err)
	}
	defer e.unlock(ctx, id, release)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	unix := auction.Unix(now)

	a, err := e.registry.GetActive(ctx, id)
	if err != nil {
		return nil, e.reject(ctx, span, "buy", err)
	}
	if a.IsExpired(unix) {
		return nil, e.reject(ctx, span, "buy", errors.ErrAuctionExpired.WithDetails(map[string]interface{}{
			"auction_id": id,
			"end_at":     a.EndAt(),
		}))
	}

	price := auction.CurrentPrice(a, unix)
	feeBps, err := e.fees.Fee(ctx)
	if err != nil {
		return nil, e.reject(ctx, span, "buy", err)
	}
	breakdown, err := auction.Split(price, amountPaid, feeBps)
	if err != nil {
		return nil, e.reject(ctx, span, "buy", err)
	}

	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	settlementID, err := e.settle(ctx, a, payer, amountPaid, breakdown)
	if err != nil {
		e.metrics.RecordSettlementFailure(ctx, time.Since(started))
		return nil, e.reject(ctx, span, "buy", err)
	}
	e.metrics.RecordSettlement(ctx, time.Since(started), e.units(price), e.units(breakdown.FeePaid))
	e.metrics.RecordAuctionClosed(ctx, string(auction.ClosedSold))

	result := &Result{
		SettlementID:   settlementID,
		AuctionID:      id,
		Seller:         a.Seller,
		Buyer:          payer,
		Price:          price,
		FeeBps:         feeBps,
		FeePaid:        breakdown.FeePaid,
		SellerProceeds: breakdown.SellerProceeds,
		Refund:         breakdown.Refund,
	}
	span.SetAttributes(
		attribute.String("settlement.id", settlementID.String()),
		attribute.String("settlement.price", price.String()),
	)

	e.logger.InfoContext(ctx, "auction sold",
		slog.Uint64("auction_id", id),
		slog.String("settlement_id", settlementID.String()),
		slog.String("buyer", payer.String()),
		slog.String("price", price.String()),
		slog.String("fee", breakdown.FeePaid.String()),
		slog.String("refund", breakdown.Refund.String()))

	e.publish(ctx, auction.NewAuctionSuccessful(a, payer, price, settlementID, now))
	return result, nil
}

// settle moves the funds and marks the auction sold as one unit. When the
// ledger's transaction carries the auction store's writes, the sale mark
// commits with it; otherwise the mark is reverted if the commit fails.
func (e *Engine) settle(ctx context.Context, a *auction.Auction, payer values.Principal, paid values.Amount, b auction.Breakdown) (uuid.UUID, error) {
	tx, err := e.ledger.Begin(ctx)
	if err != nil {
		return uuid.Nil, errors.SettlementFailed(err)
	}

	abort := func(cause error) (uuid.UUID, error) {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			e.logger.ErrorContext(ctx, "ledger rollback failed",
				slog.String("settlement_id", tx.ID().String()),
				slog.Any("error", rbErr))
		}
		return uuid.Nil, cause
	}

	if err := tx.Collect(ctx, payer, paid); err != nil {
		return abort(errors.SettlementFailed(err))
	}

	payouts := []struct {
		to     values.Principal
		amount values.Amount
	}{
		{e.fees.Admin(), b.FeePaid},
		{a.Seller, b.SellerProceeds},
		{payer, b.Refund},
	}
	for _, p := range payouts {
		if p.amount.IsZero() {
			continue
		}
		if err := tx.Transfer(ctx, p.to, p.amount); err != nil {
			return abort(errors.SettlementFailed(err))
		}
	}

	markCtx, joined := tx.Bind(ctx)
	if err := e.registry.MarkSold(markCtx, a.ID); err != nil {
		return abort(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if joined {
			// The sale mark went down with the ledger transaction.
			return abort(errors.SettlementFailed(err))
		}
		if reopenErr := e.registry.Unsell(ctx, a.ID); reopenErr != nil {
			e.logger.ErrorContext(ctx, "failed to revert sale after ledger commit failure",
				slog.Uint64("auction_id", a.ID),
				slog.String("settlement_id", tx.ID().String()),
				slog.Any("error", reopenErr))
		}
		return abort(errors.SettlementFailed(err))
	}
	return tx.ID(), nil
}

// CancelAuction checks activity before ownership, so unknown ids surface as
// AuctionNotActive.
func (e *Engine) CancelAuction(ctx context.Context, id uint64, caller values.Principal) error {
	ctx, span := e.tracer.Start(ctx, "Engine.CancelAuction", trace.WithAttributes(
		attribute.Int64("auction.id", int64(id)),
		attribute.String("auction.caller", caller.String()),
	))
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return e.reject(ctx, span, "cancel", err)
	}
	defer e.unlock(ctx, id, release)

	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.registry.GetActive(ctx, id)
	if err != nil {
		return e.reject(ctx, span, "cancel", err)
	}
	if caller != a.Seller {
		return e.reject(ctx, span, "cancel", errors.ErrNotSeller.WithDetails(map[string]interface{}{
			"auction_id": id,
			"caller":     caller.String(),
		}))
	}
	if err := e.registry.MarkCancelled(ctx, id); err != nil {
		return e.reject(ctx, span, "cancel", err)
	}

	e.metrics.RecordAuctionClosed(ctx, string(auction.ClosedCancelled))
	e.logger.InfoContext(ctx, "auction cancelled", slog.Uint64("auction_id", id))

	e.publish(ctx, auction.NewAuctionCancelled(a, e.clock.Now()))
	return nil
}

func (e *Engine) UpdatePlatformFeePercentage(ctx context.Context, caller values.Principal, bps uint64) error {
	ctx, span := e.tracer.Start(ctx, "Engine.UpdatePlatformFeePercentage", trace.WithAttributes(
		attribute.String("fee.caller", caller.String()),
		attribute.Int64("fee.bps", int64(bps)),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.fees.Update(ctx, caller, bps); err != nil {
		return e.reject(ctx, span, "update_fee", err)
	}

	e.metrics.RecordFeeUpdate(ctx, bps)
	e.logger.InfoContext(ctx, "platform fee updated", slog.Uint64("fee_bps", bps))
	e.publish(ctx, auction.NewPlatformFeeUpdated(bps, caller, e.clock.Now()))
	return nil
}

func (e *Engine) PlatformFee(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fees.Fee(ctx)
}

func (e *Engine) Admin() values.Principal {
	return e.fees.Admin()
}

func (e *Engine) view(a *auction.Auction, now uint64) *AuctionView {
	v := &AuctionView{
		Auction: a,
		EndAt:   a.EndAt(),
		Status:  a.StatusAt(now),
	}
	if a.Purchasable(now) {
		price := auction.CurrentPrice(a, now)
		v.CurrentPrice = &price
	}
	return v
}

func (e *Engine) lock(ctx context.Context, id uint64) (cache.Release, error) {
	release, err := e.locker.Lock(ctx, "auction:"+strconv.FormatUint(id, 10))
	if err != nil {
		return nil, fmt.Errorf("acquire auction lock: %w", err)
	}
	return release, nil
}

func (e *Engine) unlock(ctx context.Context, id uint64, release cache.Release) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		e.logger.WarnContext(ctx, "auction lock release failed",
			slog.Uint64("auction_id", id),
			slog.Any("error", err))
	}
}

// reject records a failed operation on the span and in metrics and returns
// err unchanged.
func (e *Engine) reject(ctx context.Context, span trace.Span, op string, err error) error {
	telemetry.RecordError(span, err)

	code := errors.CodeOf(err)
	e.metrics.RecordRejection(ctx, op, code)

	if code == errors.CodeInternal || code == errors.CodeSettlementFailed {
		e.logger.ErrorContext(ctx, "operation failed", slog.String("operation", op), slog.Any("error", err))
	} else {
		e.logger.DebugContext(ctx, "operation rejected", slog.String("operation", op), slog.String("code", code))
	}
	return err
}

func (e *Engine) publish(ctx context.Context, event auction.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("event_type", string(event.EventType)),
			slog.Any("error", err))
	}
}

// units converts a base-unit amount to whole currency units for metrics.
func (e *Engine) units(a values.Amount) float64 {
	return a.Decimal().Shift(-e.currencyDecimals).InexactFloat64()
}
