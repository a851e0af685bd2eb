package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// EventType names a committed state change.
type EventType string

const (
	EventAuctionCreated     EventType = "auction.created"
	EventAuctionSuccessful  EventType = "auction.successful"
	EventAuctionCancelled   EventType = "auction.cancelled"
	EventPlatformFeeUpdated EventType = "platform.fee_updated"
)

// Event is emitted after a mutation has been committed. Rejected operations
// never produce events.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`

	AuctionID       *uint64          `json:"auction_id,omitempty"`
	Seller          values.Principal `json:"seller,omitempty"`
	Buyer           values.Principal `json:"buyer,omitempty"`
	ItemDescription string           `json:"item_description,omitempty"`
	StartingPrice   *values.Amount   `json:"starting_price,omitempty"`
	EndingPrice     *values.Amount   `json:"ending_price,omitempty"`
	Duration        uint64           `json:"duration,omitempty"`
	Price           *values.Amount   `json:"price,omitempty"`
	SettlementID    *uuid.UUID       `json:"settlement_id,omitempty"`

	FeeBps    *uint64          `json:"fee_bps,omitempty"`
	UpdatedBy values.Principal `json:"updated_by,omitempty"`
}

// Publisher receives committed events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func newEvent(t EventType, at time.Time) Event {
	return Event{
		EventID:   uuid.New(),
		EventType: t,
		Timestamp: at.UTC(),
	}
}

func NewAuctionCreated(a *Auction, at time.Time) Event {
	e := newEvent(EventAuctionCreated, at)
	id := a.ID
	start, end := a.StartingPrice, a.EndingPrice
	e.AuctionID = &id
	e.Seller = a.Seller
	e.ItemDescription = a.ItemDescription
	e.StartingPrice = &start
	e.EndingPrice = &end
	e.Duration = a.Duration
	return e
}

func NewAuctionSuccessful(a *Auction, buyer values.Principal, price values.Amount, settlementID uuid.UUID, at time.Time) Event {
	e := newEvent(EventAuctionSuccessful, at)
	id := a.ID
	e.AuctionID = &id
	e.Seller = a.Seller
	e.Buyer = buyer
	e.Price = &price
	e.SettlementID = &settlementID
	return e
}

func NewAuctionCancelled(a *Auction, at time.Time) Event {
	e := newEvent(EventAuctionCancelled, at)
	id := a.ID
	e.AuctionID = &id
	e.Seller = a.Seller
	return e
}

func NewPlatformFeeUpdated(bps uint64, by values.Principal, at time.Time) Event {
	e := newEvent(EventPlatformFeeUpdated, at)
	e.FeeBps = &bps
	e.UpdatedBy = by
	return e
}
