package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

func startHub(t *testing.T) (*EventHub, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewEventHub(zaptest.NewLogger(t))
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHandler(hub, nil))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "connection.established", welcome.Type)
	return conn
}

func createdEvent(t *testing.T, id uint64) auction.Event {
	t.Helper()
	a, err := auction.New(id, values.MustNewPrincipal("seller"), "lamp",
		values.AmountFromUint64(1000), values.AmountFromUint64(100), 3600, 1_700_000_000)
	require.NoError(t, err)
	return auction.NewAuctionCreated(a, time.Unix(1_700_000_000, 0))
}

func TestEventHub_DeliversPublishedEvents(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	event := createdEvent(t, 7)
	require.NoError(t, hub.Publish(context.Background(), event))

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))

	assert.Equal(t, string(auction.EventAuctionCreated), got.Type)
	require.NotNil(t, got.Event)
	require.NotNil(t, got.Event.AuctionID)
	assert.Equal(t, uint64(7), *got.Event.AuctionID)
	assert.Equal(t, event.EventID, got.Event.EventID)
}

func TestEventHub_AuctionFilter(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?auction_id=2")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), createdEvent(t, 1)))
	require.NoError(t, hub.Publish(context.Background(), createdEvent(t, 2)))

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	require.NotNil(t, got.Event)
	assert.Equal(t, uint64(2), *got.Event.AuctionID)
}

func TestEventHub_PingPong(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pong", got.Type)
}

func TestFilters_Matches(t *testing.T) {
	id := uint64(3)
	created := &auction.Event{EventType: auction.EventAuctionCreated, AuctionID: &id}
	feeUpdated := &auction.Event{EventType: auction.EventPlatformFeeUpdated}

	tests := []struct {
		name    string
		filters Filters
		event   *auction.Event
		want    bool
	}{
		{"empty matches all", Filters{}, created, true},
		{"auction id hit", Filters{AuctionIDs: []uint64{1, 3}}, created, true},
		{"auction id miss", Filters{AuctionIDs: []uint64{1}}, created, false},
		{"auction filter skips fee events", Filters{AuctionIDs: []uint64{3}}, feeUpdated, false},
		{"type hit", Filters{EventTypes: []auction.EventType{auction.EventPlatformFeeUpdated}}, feeUpdated, true},
		{"type miss", Filters{EventTypes: []auction.EventType{auction.EventAuctionCancelled}}, created, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.matches(tt.event))
		})
	}
}

func TestHandler_RejectsBadAuctionID(t *testing.T) {
	hub := NewEventHub(zaptest.NewLogger(t))
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"?auction_id=abc", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
