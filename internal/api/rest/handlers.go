package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/service/settlement"
)

const defaultListLimit = 100

// Handler serves the auction exchange endpoints.
type Handler struct {
	*BaseHandler
	svc settlement.Service
}

func NewHandler(base *BaseHandler, svc settlement.Service) *Handler {
	return &Handler{BaseHandler: base, svc: svc}
}

// createAuction handles POST /api/v1/auctions
func (h *Handler) createAuction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.createAuction")
	defer span.End()

	seller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateAuctionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	start, err := values.ParseAmount(req.StartingPrice)
	if err != nil {
		h.handleError(w, r, badRequest("starting_price: %v", err))
		return
	}
	end, err := values.ParseAmount(req.EndingPrice)
	if err != nil {
		h.handleError(w, r, badRequest("ending_price: %v", err))
		return
	}

	id, err := h.svc.CreateAuction(ctx, seller, &settlement.CreateAuctionRequest{
		ItemDescription: req.ItemDescription,
		StartingPrice:   start,
		EndingPrice:     end,
		Duration:        *req.DurationSeconds,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int64("auction.id", int64(id)))
	w.Header().Set("Location", fmt.Sprintf("/api/v1/auctions/%d", id))
	h.writeSuccess(w, r, http.StatusCreated, CreateAuctionResponse{ID: id})
}

// listAuctions handles GET /api/v1/auctions
func (h *Handler) listAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ListAuctionsQuery{
		Status: q.Get("status"),
		Seller: q.Get("seller"),
		Limit:  defaultListLimit,
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.handleError(w, r, badRequest("offset must be a non-negative integer"))
			return
		}
		query.Offset = offset
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.handleError(w, r, badRequest("limit must be an integer"))
			return
		}
		query.Limit = limit
	}
	if err := h.validator.Struct(query); err != nil {
		h.handleError(w, r, h.formatValidationError(err))
		return
	}

	filter := settlement.ListFilter{Status: query.Status, Offset: query.Offset, Limit: query.Limit}
	if query.Seller != "" {
		seller, err := values.NewPrincipal(query.Seller)
		if err != nil {
			h.handleError(w, r, badRequest("seller: %v", err))
			return
		}
		filter.Seller = seller
	}

	items, err := h.svc.ListAuctions(r.Context(), filter)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, AuctionListResponse{
		Items:  items,
		Offset: query.Offset,
		Limit:  query.Limit,
		Count:  len(items),
	})
}

// countAuctions handles GET /api/v1/auctions/count
func (h *Handler) countAuctions(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.AuctionCount(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, CountResponse{Count: n})
}

// getAuction handles GET /api/v1/auctions/{id}
func (h *Handler) getAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.auctionID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.GetAuction(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, view)
}

// getPrice handles GET /api/v1/auctions/{id}/price
func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.auctionID(w, r)
	if !ok {
		return
	}
	price, err := h.svc.GetCurrentPrice(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, PriceResponse{AuctionID: id, CurrentPrice: price})
}

// buy handles POST /api/v1/auctions/{id}/buy
func (h *Handler) buy(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.buy")
	defer span.End()

	id, ok := h.auctionID(w, r)
	if !ok {
		return
	}
	payer, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req BuyRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	paid, err := values.ParseAmount(req.AmountPaid)
	if err != nil {
		h.handleError(w, r, badRequest("amount_paid: %v", err))
		return
	}

	span.SetAttributes(attribute.Int64("auction.id", int64(id)), attribute.String("payer", payer.String()))
	res, err := h.svc.Buy(ctx, id, payer, paid)
	if err != nil {
		span.SetAttributes(attribute.Bool("settled", false))
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, res)
}

// cancelAuction handles POST /api/v1/auctions/{id}/cancel
func (h *Handler) cancelAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.auctionID(w, r)
	if !ok {
		return
	}
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelAuction(r.Context(), id, caller); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, CancelResponse{AuctionID: id, Cancelled: true})
}

// getFee handles GET /api/v1/platform/fee
func (h *Handler) getFee(w http.ResponseWriter, r *http.Request) {
	bps, err := h.svc.PlatformFee(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, FeeResponse{
		FeeBps:    bps,
		MaxFeeBps: auction.MaxFeeBps,
		Admin:     h.svc.Admin(),
	})
}

// updateFee handles PUT /api/v1/platform/fee
func (h *Handler) updateFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req UpdateFeeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.svc.UpdatePlatformFeePercentage(r.Context(), caller, *req.FeeBps); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, FeeResponse{
		FeeBps:    *req.FeeBps,
		MaxFeeBps: auction.MaxFeeBps,
		Admin:     h.svc.Admin(),
	})
}

func (h *Handler) auctionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.handleError(w, r, badRequest("auction id must be a non-negative integer"))
		return 0, false
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("auction.id", int64(id)))
	return id, true
}

// caller returns the authenticated principal. Routes that call it sit behind
// the auth middleware, so a missing principal is a wiring error.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (values.Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, http.StatusUnauthorized, &ErrorResponse{
			Code:    "AUTHENTICATION_REQUIRED",
			Message: "Authentication required",
		})
		return "", false
	}
	return p, true
}
