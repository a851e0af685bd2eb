package settlement

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
)

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e auction.Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", e.EventID.String()),
		slog.String("event_type", string(e.EventType)),
	}
	if e.AuctionID != nil {
		attrs = append(attrs, slog.Uint64("auction_id", *e.AuctionID))
	}
	if !e.Buyer.IsZero() {
		attrs = append(attrs, slog.String("buyer", e.Buyer.String()))
	}
	if e.Price != nil {
		attrs = append(attrs, slog.String("price", e.Price.String()))
	}
	if e.FeeBps != nil {
		attrs = append(attrs, slog.Uint64("fee_bps", *e.FeeBps))
	}
	p.logger.LogAttrs(ctx, slog.LevelInfo, "auction event", attrs...)
	return nil
}

// MultiPublisher fans an event out to several publishers. Every publisher
// is called; their errors are joined.
type MultiPublisher []auction.Publisher

func (m MultiPublisher) Publish(ctx context.Context, e auction.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []auction.Event
}

func (r *Recorder) Publish(_ context.Context, e auction.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []auction.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auction.Event, len(r.events))
	copy(out, r.events)
	return out
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, auction.Event) error { return nil }
