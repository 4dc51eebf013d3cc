package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
	"github.com/kailas-cloud/quotawatch/internal/transport/dto"
)

// Event types pushed to clients.
const (
	EventSnapshot    = "snapshot"
	EventMalfunction = "malfunction"
)

// Message is the envelope of every pushed event.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans telemetry events out to connected websocket clients. New clients
// receive the latest snapshot on connect.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan message
	register   chan *client
	unregister chan *client
	count      chan int
	done       chan struct{}
	latest     []byte
	logger     *zap.Logger
}

type message struct {
	data     []byte
	snapshot bool
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan message, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
		count:      make(chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			metrics.EventClients.Set(0)
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.latest != nil {
				c.send <- h.latest
			}
			metrics.EventClients.Set(float64(len(h.clients)))
			h.logger.Debug("Event client connected", zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				metrics.EventClients.Set(float64(len(h.clients)))
				h.logger.Debug("Event client disconnected", zap.Int("clients", len(h.clients)))
			}

		case m := <-h.broadcast:
			if m.snapshot {
				h.latest = m.data
			}
			for c := range h.clients {
				select {
				case c.send <- m.data:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
					metrics.EventsDroppedTotal.WithLabelValues("slow_client").Inc()
				}
			}
			metrics.EventClients.Set(float64(len(h.clients)))

		case h.count <- len(h.clients):
		}
	}
}

// Clients returns the number of connected clients, or 0 once Run has returned.
func (h *Hub) Clients() int {
	select {
	case n := <-h.count:
		return n
	case <-h.done:
		return 0
	}
}

// OnSnapshot implements telemetry.Subscriber.
func (h *Hub) OnSnapshot(snap quota.Snapshot) {
	h.publish(Message{Type: EventSnapshot, Data: dto.FromSnapshot(&snap)}, true)
}

// OnMalfunction implements telemetry.Subscriber.
func (h *Hub) OnMalfunction(m domain.Malfunction) {
	h.publish(Message{Type: EventMalfunction, Data: dto.FromMalfunction(m)}, false)
}

// publish never blocks the caller: a full queue drops the event.
func (h *Hub) publish(msg Message, snapshot bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{data: data, snapshot: snapshot}:
	default:
		metrics.EventsDroppedTotal.WithLabelValues("queue_full").Inc()
		h.logger.Warn("Event queue full, dropping event", zap.String("type", msg.Type))
	}
}
