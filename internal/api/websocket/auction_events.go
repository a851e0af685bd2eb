package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 512
	sendBuffer     = 32
)

// Message is what clients receive. Control messages (connection.established,
// pong) carry Data; auction events carry Event.
type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Event     *auction.Event `json:"event,omitempty"`
	Data      interface{}    `json:"data,omitempty"`
}

// EventHub fans committed auction events out to WebSocket subscribers.
// It implements auction.Publisher.
type EventHub struct {
	logger      *zap.Logger
	clients     map[uuid.UUID]*Client
	clientsLock sync.RWMutex
	broadcast   chan *Message
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopOnce    sync.Once
}

// Client is one subscribed connection.
type Client struct {
	ID      uuid.UUID
	conn    *websocket.Conn
	send    chan *Message
	hub     *EventHub
	mu      sync.RWMutex
	filters Filters
}

// Filters narrows the events a client receives. Empty slices match all.
type Filters struct {
	AuctionIDs []uint64            `json:"auction_ids,omitempty"`
	EventTypes []auction.EventType `json:"event_types,omitempty"`
}

func (f Filters) matches(e *auction.Event) bool {
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if t == e.EventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.AuctionIDs) > 0 {
		if e.AuctionID == nil {
			return false
		}
		for _, id := range f.AuctionIDs {
			if id == *e.AuctionID {
				return true
			}
		}
		return false
	}
	return true
}

func NewEventHub(logger *zap.Logger) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		logger:     logger,
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done or Stop is
// called.
func (h *EventHub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			h.shutdown()
			return
		case <-h.done:
			h.shutdown()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.broadcastMessage(msg)
		case <-ticker.C:
			h.pingClients()
		}
	}
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues e for every matching client. It never blocks: when the
// queue is full the event is dropped for WebSocket subscribers only.
func (h *EventHub) Publish(_ context.Context, e auction.Event) error {
	msg := &Message{
		ID:        e.EventID.String(),
		Type:      string(e.EventType),
		Timestamp: e.Timestamp,
		Event:     &e,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("event_id", msg.ID),
			zap.String("event_type", msg.Type),
		)
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}

func (h *EventHub) registerClient(client *Client) {
	h.clientsLock.Lock()
	h.clients[client.ID] = client
	h.clientsLock.Unlock()

	h.logger.Info("websocket client registered", zap.String("client_id", client.ID.String()))

	welcome := &Message{
		ID:        uuid.New().String(),
		Type:      "connection.established",
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"client_id": client.ID.String(),
			"filters":   client.currentFilters(),
		},
	}
	select {
	case client.send <- welcome:
	default:
	}
}

func (h *EventHub) unregisterClient(client *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.send)
		h.logger.Info("websocket client unregistered", zap.String("client_id", client.ID.String()))
	}
}

func (h *EventHub) broadcastMessage(msg *Message) {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	for _, client := range h.clients {
		if !client.currentFilters().matches(msg.Event) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("client send buffer full, closing connection",
				zap.String("client_id", client.ID.String()),
			)
			go h.drop(client)
		}
	}
}

func (h *EventHub) pingClients() {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	for _, client := range h.clients {
		if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			h.logger.Debug("ping failed", zap.String("client_id", client.ID.String()), zap.Error(err))
			go h.drop(client)
		}
	}
}

func (h *EventHub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *EventHub) shutdown() {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	for _, client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[uuid.UUID]*Client)
}

func newClient(conn *websocket.Conn, hub *EventHub, filters Filters) *Client {
	return &Client{
		ID:      uuid.New(),
		conn:    conn,
		send:    make(chan *Message, sendBuffer),
		hub:     hub,
		filters: filters,
	}
}

func (c *Client) currentFilters() Filters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters
}

// readPump handles filter updates and pings from the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.String("client_id", c.ID.String()), zap.Error(err))
			}
			return
		}

		var msg struct {
			Type    string   `json:"type"`
			Filters *Filters `json:"filters"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Debug("bad client message", zap.String("client_id", c.ID.String()), zap.Error(err))
			continue
		}

		switch msg.Type {
		case "update_filters":
			if msg.Filters != nil {
				c.mu.Lock()
				c.filters = *msg.Filters
				c.mu.Unlock()
				c.hub.logger.Debug("client filters updated",
					zap.String("client_id", c.ID.String()),
					zap.Any("filters", msg.Filters),
				)
			}
		case "ping":
			pong := &Message{ID: uuid.New().String(), Type: "pong", Timestamp: time.Now().UTC()}
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
