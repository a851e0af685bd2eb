package rest

import (
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/service/settlement"
)

type CreateAuctionResponse struct {
	ID uint64 `json:"id"`
}

// ListResponse is a page of items in id order.
type ListResponse[T any] struct {
	Items  []T    `json:"items"`
	Offset uint64 `json:"offset"`
	Limit  int    `json:"limit"`
	Count  int    `json:"count"`
}

type AuctionListResponse = ListResponse[*settlement.AuctionView]

type PriceResponse struct {
	AuctionID    uint64        `json:"auction_id"`
	CurrentPrice values.Amount `json:"current_price"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type FeeResponse struct {
	FeeBps    uint64           `json:"fee_bps"`
	MaxFeeBps uint64           `json:"max_fee_bps"`
	Admin     values.Principal `json:"admin"`
}

type CancelResponse struct {
	AuctionID uint64 `json:"auction_id"`
	Cancelled bool   `json:"cancelled"`
}
