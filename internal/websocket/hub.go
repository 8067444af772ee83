package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"datafit/internal/infrastructure"
	"datafit/pkg/contracts/events"
)

// deliveryQueueSize bounds the events waiting for the hub loop. Publishers
// never block: an event that does not fit is dropped.
const deliveryQueueSize = 256

type delivery struct {
	ownerID int64
	msgType events.MessageType
	payload []byte
}

// Hub tracks connected clients per owner and routes events to the owner's
// clients only.
type Hub struct {
	clients map[*Client]struct{}
	owners  map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery

	// guards clients and owners for readers outside the hub loop
	mu sync.RWMutex

	quit     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	running  bool
	stopOnce sync.Once

	logger  *slog.Logger
	metrics *Metrics
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		owners:     make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, deliveryQueueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start starts the hub loop. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop closes every client and stops the hub loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })

	h.startMu.Lock()
	running := h.running
	h.startMu.Unlock()
	if running {
		<-h.done
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OwnerClientCount returns the number of clients connected for ownerID.
func (h *Hub) OwnerClientCount(ownerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners[ownerID])
}

// Register hands a client to the hub. It returns false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client. Safe to call after Stop.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// PublishReportStage sends an upload stage event to the owner's clients.
func (h *Hub) PublishReportStage(ownerID int64, event events.ReportStageEvent) {
	h.publish(ownerID, events.MessageTypeReportStage, event)
}

func (h *Hub) publish(ownerID int64, msgType events.MessageType, data interface{}) {
	payload, err := json.Marshal(events.Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		h.logger.Error("failed to marshal event",
			slog.String("type", string(msgType)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.deliver <- delivery{ownerID: ownerID, msgType: msgType, payload: payload}:
	default:
		h.metrics.dropped(context.Background())
		h.logger.Warn("event queue full, dropping event",
			slog.Int64("owner_id", ownerID),
			slog.String("type", string(msgType)))
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("hub shut down")
			return

		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.remove(c, "client disconnected")

		case d := <-h.deliver:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.owners[d.ownerID]))
			for c := range h.owners[d.ownerID] {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				select {
				case c.send <- d.payload:
					h.metrics.sent(c.ctx(), string(d.msgType))
				default:
					h.metrics.dropped(c.ctx())
					h.remove(c, "client send buffer full, disconnecting")
				}
			}
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.owners[c.ownerID] == nil {
		h.owners[c.ownerID] = make(map[*Client]struct{})
	}
	h.owners[c.ownerID][c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	ctx := c.ctx()
	h.metrics.connected(ctx)
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", c.id),
		slog.Int64("owner_id", c.ownerID),
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("total_clients", total))

	payload, err := json.Marshal(events.Message{
		ID:        uuid.New().String(),
		Type:      events.MessageTypeConnect,
		Timestamp: time.Now().UTC(),
		TraceID:   c.traceID,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": c.id,
		},
	})
	if err == nil {
		select {
		case c.send <- payload:
		default:
		}
	}
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	delete(h.owners[c.ownerID], c)
	if len(h.owners[c.ownerID]) == 0 {
		delete(h.owners, c.ownerID)
	}
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()

	ctx := c.ctx()
	h.metrics.disconnected(ctx, time.Since(c.connectedAt))
	h.logger.InfoContext(ctx, reason,
		slog.String("client_id", c.id),
		slog.Int64("owner_id", c.ownerID),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", total))
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.remove(c, "client closed on shutdown")
	}
}
