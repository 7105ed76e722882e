package sse

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event type tags carried in the JSON envelope's "type" field.
const (
	EventMessage         = "message"
	EventDelete          = "delete"
	EventUpdate          = "update"
	EventAppStateUpdated = "appStateUpdated"
	EventAgentStatus     = "agentStatus"
	EventAgentState      = "agentState"
	EventAgentTyping     = "agentTyping" // legacy mirror of agentState busy/idle
	EventScrollToMessage = "scrollToMessage"
	EventWidgetError     = "widgetError"
)

// Client is one live SSE subscription (one browser tab/device).
type Client struct {
	ID      string
	channel chan []byte
}

// Events returns the client's outbound frame channel. Each element is a
// fully serialized JSON envelope.
func (c *Client) Events() <-chan []byte {
	return c.channel
}

// Hub fans serialized JSON events out to every open subscription.
// Delivery is best-effort and at-most-once: a sink whose buffer is full
// misses the event, and a broken connection is dropped when its stream
// loop observes the close. Clients reconcile gaps with a full re-fetch.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an independent Hub. Multiple hubs can coexist (tests
// construct their own).
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Subscribe registers a new sink and returns its handle.
func (h *Hub) Subscribe(bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	client := &Client{
		ID:      uuid.New().String(),
		channel: make(chan []byte, bufferSize),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	return client
}

// Unsubscribe removes a sink. Idempotent.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.channel)
	}
}

// Broadcast serializes the event once and writes it to every open sink.
// A sink that cannot accept the frame is skipped, never blocked on.
func (h *Hub) Broadcast(event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.channel <- payload:
		default:
			// buffer full, client will reconcile on re-fetch
		}
	}
	return nil
}

// Send delivers an event to a single sink only. Used for the initial
// agent health probe result on a fresh subscription.
func (h *Hub) Send(client *Client, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return nil
	}
	select {
	case client.channel <- payload:
	default:
	}
	return nil
}

// Count returns the number of open subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
