package uifeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/rs/zerolog"
)

// Event types pushed to the browser
const (
	EventToast          = "toast"
	EventAlert          = "alert"
	EventAlertDismissed = "alert_dismissed"
	EventSound          = "sound"
	EventStatus         = "status"
	EventSession        = "session"
	EventTick           = "tick"
	EventQueue          = "queue"
)

// Sticky events are replayed to a client when it connects so a reloaded
// page shows the current state immediately
var sticky = map[string]bool{
	EventStatus:  true,
	EventSession: true,
	EventQueue:   true,
}

// Hub maintains the set of active UI clients and broadcasts events to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Last message per sticky event type
	latest map[string][]byte

	// Mutex to protect clients and latest
	mu sync.RWMutex

	// Closed when Run returns
	done chan struct{}

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		latest:     make(map[string][]byte),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "uifeed").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			for _, msg := range h.latest {
				select {
				case client.send <- msg:
				default:
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastRaw(message)
		}
	}
}

// Publish marshals and broadcasts an event. It never blocks; when the
// broadcast buffer is full the event is dropped.
func (h *Hub) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(types.UIEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("type", eventType).Msg("failed to marshal ui event")
		return
	}

	if sticky[eventType] {
		h.mu.Lock()
		h.latest[eventType] = data
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn().Str("type", eventType).Msg("broadcast buffer full, dropping ui event")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastRaw sends a message to all clients
func (h *Hub) broadcastRaw(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and remove it
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn().
				Str("client_id", client.id).
				Msg("client send buffer full, closing connection")
		}
	}
}

// add registers a client unless the hub has stopped
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// remove unregisters a client; a no-op once the hub has stopped
func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
