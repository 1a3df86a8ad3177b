// Package channel fans quote updates out to connected websocket clients.
package channel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/conc/pool"

	"ratefeed/internal/telemetry"
)

// Event names pushed to clients.
const (
	EventCurrencyUpdate     = "currency_update"
	EventBulkCurrencyUpdate = "bulk_currency_update"
	EventMessage            = "message"
)

// Greeting is sent once to every newly connected client, as {"data":Greeting}.
const Greeting = "Connected to the server"

const defaultWriteTimeout = 5 * time.Second

// Frame is the envelope of every text frame sent to clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Publisher is what producers of updates depend on.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) int
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

// write is bounded by timeout alone: a publisher giving up must not look like a dead client.
func (c *client) write(ctx context.Context, timeout time.Duration, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

type Options struct {
	WriteTimeout time.Duration
	// OriginPatterns as understood by websocket.AcceptOptions; empty allows any origin.
	OriginPatterns []string
}

// Hub tracks connected clients. Zero per-client state beyond the connection itself.
type Hub struct {
	opts   Options
	logger hclog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

var _ Publisher = (*Hub)(nil)

func NewHub(opts Options, logger hclog.Logger) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Hub{
		opts:    opts,
		logger:  logger.Named("channel"),
		clients: make(map[string]*client),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends {"event":event,"data":payload} to every client and returns how many received it.
// Clients whose write fails are dropped.
func (h *Hub) Publish(ctx context.Context, event string, payload any) int {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("encode frame", "event", event, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	var (
		mu        sync.Mutex
		delivered int
	)
	p := pool.New().WithMaxGoroutines(min(len(targets), 16))
	for _, c := range targets {
		p.Go(func() {
			if err := c.write(ctx, h.opts.WriteTimeout, data); err != nil {
				h.logger.Debug("dropping client after failed write", "client", c.id, "error", err)
				h.remove(c.id, websocket.StatusPolicyViolation, "write failed")
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		})
	}
	p.Wait()
	telemetry.IncrPublished(event)
	return delivered
}

// ServeHTTP upgrades the request, greets the client and holds the connection until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	acceptOpts := &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns}
	if len(h.opts.OriginPatterns) == 0 {
		acceptOpts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		h.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}

	// Greet before registering so no broadcast can overtake the greeting.
	greeting, _ := json.Marshal(Frame{Event: EventMessage, Data: map[string]string{"data": Greeting}})
	if err := c.write(r.Context(), h.opts.WriteTimeout, greeting); err != nil {
		h.logger.Debug("greeting failed", "client", c.id, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "greeting failed")
		return
	}
	h.add(c)
	h.logger.Info("client connected", "client", c.id, "remote", r.RemoteAddr)

	// Clients only listen; CloseRead discards anything they send and reports disconnects.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	h.remove(c.id, websocket.StatusNormalClosure, "")
	h.logger.Info("client disconnected", "client", c.id)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	telemetry.SetConnectedClients(0)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	telemetry.SetConnectedClients(n)
}

func (h *Hub) remove(id string, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	n := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	telemetry.SetConnectedClients(n)
	if err := c.conn.Close(code, reason); err != nil {
		h.logger.Trace("close", "client", id, "error", err)
	}
}
