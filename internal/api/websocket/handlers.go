package websocket

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
)

// Handler upgrades /ws requests and attaches them to the hub. Initial
// filters come from repeated auction_id and event_type query parameters.
type Handler struct {
	hub      *EventHub
	upgrader websocket.Upgrader
}

// NewHandler builds a handler. A nil checkOrigin accepts every origin.
func NewHandler(hub *EventHub, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warn("websocket upgrade failed",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	client := newClient(conn, h.hub, filters)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func parseFilters(r *http.Request) (Filters, error) {
	var f Filters
	q := r.URL.Query()
	for _, raw := range q["auction_id"] {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Filters{}, err
		}
		f.AuctionIDs = append(f.AuctionIDs, id)
	}
	for _, t := range q["event_type"] {
		f.EventTypes = append(f.EventTypes, auction.EventType(t))
	}
	return f, nil
}
