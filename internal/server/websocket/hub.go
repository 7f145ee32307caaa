// Package websocket pushes catalog rebuild events to WebSocket clients.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/aliasmap/internal/server/events"
	"github.com/agentstation/aliasmap/pkg/constants"
)

// Transport is the name clients see in their greeting and metrics.
const Transport = "websocket"

// Recorder counts clients dropped for falling behind.
type Recorder interface {
	StreamSkipped(transport string)
}

type nopRecorder struct{}

func (nopRecorder) StreamSkipped(string) {}

// Hub tracks attached clients and hands each broker event to all of them.
// A client whose buffer is full is disconnected; it can reconnect and will
// be sent the latest rebuild event on attach.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	last    *events.Event
	closed  bool
	now     func() time.Time
	logger  *zerolog.Logger
	metrics Recorder
}

var _ events.Sink = (*Hub)(nil)

// Option configures a Hub.
type Option func(*Hub)

// WithRecorder sets where dropped clients are counted.
func WithRecorder(r Recorder) Option {
	return func(h *Hub) {
		if r != nil {
			h.metrics = r
		}
	}
}

// NewHub creates a hub with no clients.
func NewHub(logger *zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		now:     time.Now,
		logger:  logger,
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run closes every client once ctx is cancelled. Should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.logger.Info().Msg("WebSocket hub shut down")
}

// Attach registers c and queues its greeting followed by the latest rebuild
// event. It returns false once the hub is closed.
func (h *Hub) Attach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	c.send <- events.Greeting(Transport, c.id, h.now())
	if h.last != nil {
		c.send <- *h.last
	}
	h.clients[c] = struct{}{}
	h.logger.Info().
		Str("client_id", c.id).
		Int("total_clients", len(h.clients)).
		Msg("WebSocket client connected")
	return true
}

// Detach removes c. It is safe to call more than once.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Info().
		Str("client_id", c.id).
		Int("total_clients", len(h.clients)).
		Msg("WebSocket client disconnected")
}

// Deliver implements events.Sink.
func (h *Hub) Deliver(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.Rebuild() {
		h.last = &e
	}
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			delete(h.clients, c)
			close(c.send)
			h.metrics.StreamSkipped(Transport)
			h.logger.Warn().
				Str("client_id", c.id).
				Uint64("seq", e.Seq).
				Msg("WebSocket client buffer full, disconnected")
		}
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Client is one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan events.Event
}

// NewClient creates a client; it receives nothing until the hub attaches it.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan events.Event, constants.StreamBufferSize),
	}
}

// ID returns the client identifier.
func (c *Client) ID() string {
	return c.id
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
)

// ReadPump drains the connection until it fails, then detaches the client.
// Clients only listen; anything they send is discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
	}
}

// WritePump writes queued events as JSON and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				c.hub.logger.Debug().Err(err).Str("client_id", c.id).Msg("WebSocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
