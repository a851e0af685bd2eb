package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the auction domain instruments
type Registry struct {
	meter metric.Meter

	AuctionsCreated    metric.Int64Counter
	AuctionsClosed     metric.Int64Counter
	OpenAuctions       metric.Int64UpDownCounter
	Rejections         metric.Int64Counter
	Settlements        metric.Int64Counter
	SettlementFailures metric.Int64Counter
	SettlementDuration metric.Float64Histogram
	SaleValue          metric.Float64Histogram
	FeesCollected      metric.Float64Counter
	FeeUpdates         metric.Int64Counter
}

// NewRegistry creates a registry on the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithProvider(otel.GetMeterProvider(), meterName)
}

// NewRegistryWithProvider creates a registry on mp
func NewRegistryWithProvider(mp metric.MeterProvider, meterName string) (*Registry, error) {
	r := &Registry{meter: mp.Meter(meterName)}

	if err := r.initAuctionMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSettlementMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initAuctionMetrics() error {
	var err error

	r.AuctionsCreated, err = r.meter.Int64Counter(
		"dax.auction.created_total",
		metric.WithDescription("Total number of auctions created"),
	)
	if err != nil {
		return err
	}

	r.AuctionsClosed, err = r.meter.Int64Counter(
		"dax.auction.closed_total",
		metric.WithDescription("Total number of auctions closed, by reason"),
	)
	if err != nil {
		return err
	}

	r.OpenAuctions, err = r.meter.Int64UpDownCounter(
		"dax.auction.open",
		metric.WithDescription("Auctions created by this process and not yet closed"),
	)
	if err != nil {
		return err
	}

	r.Rejections, err = r.meter.Int64Counter(
		"dax.auction.rejections_total",
		metric.WithDescription("Operations rejected by a business rule, by operation and code"),
	)
	if err != nil {
		return err
	}

	r.FeeUpdates, err = r.meter.Int64Counter(
		"dax.platform.fee_updates_total",
		metric.WithDescription("Total number of platform fee changes"),
	)
	return err
}

func (r *Registry) initSettlementMetrics() error {
	var err error

	r.Settlements, err = r.meter.Int64Counter(
		"dax.settlement.success_total",
		metric.WithDescription("Total number of committed settlements"),
	)
	if err != nil {
		return err
	}

	r.SettlementFailures, err = r.meter.Int64Counter(
		"dax.settlement.failure_total",
		metric.WithDescription("Settlements rolled back because the ledger rejected them"),
	)
	if err != nil {
		return err
	}

	r.SettlementDuration, err = r.meter.Float64Histogram(
		"dax.settlement.duration",
		metric.WithDescription("Duration of buy operations in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return err
	}

	r.SaleValue, err = r.meter.Float64Histogram(
		"dax.settlement.sale_value",
		metric.WithDescription("Sale price in whole currency units"),
	)
	if err != nil {
		return err
	}

	r.FeesCollected, err = r.meter.Float64Counter(
		"dax.settlement.fees_collected",
		metric.WithDescription("Platform fees collected in whole currency units"),
	)
	return err
}

func (r *Registry) RecordAuctionCreated(ctx context.Context) {
	r.AuctionsCreated.Add(ctx, 1)
	r.OpenAuctions.Add(ctx, 1)
}

func (r *Registry) RecordAuctionClosed(ctx context.Context, reason string) {
	r.AuctionsClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	r.OpenAuctions.Add(ctx, -1)
}

func (r *Registry) RecordRejection(ctx context.Context, operation, code string) {
	r.Rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("code", code),
	))
}

// RecordSettlement records a committed sale. price and fee are in whole units.
func (r *Registry) RecordSettlement(ctx context.Context, duration time.Duration, price, fee float64) {
	r.Settlements.Add(ctx, 1)
	r.SettlementDuration.Record(ctx, float64(duration.Microseconds())/1000)
	r.SaleValue.Record(ctx, price)
	r.FeesCollected.Add(ctx, fee)
}

func (r *Registry) RecordSettlementFailure(ctx context.Context, duration time.Duration) {
	r.SettlementFailures.Add(ctx, 1)
	r.SettlementDuration.Record(ctx, float64(duration.Microseconds())/1000,
		metric.WithAttributes(attribute.Bool("failed", true)))
}

func (r *Registry) RecordFeeUpdate(ctx context.Context, bps uint64) {
	r.FeeUpdates.Add(ctx, 1, metric.WithAttributes(attribute.Int64("fee_bps", int64(bps))))
}
