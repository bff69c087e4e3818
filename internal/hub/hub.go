package hub

import (
	"encoding/json"
	"sync"

	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/pkg/log"
)

// Hub is the set of live connections. Delivery is synchronous from the
// caller and never blocks: a client whose buffer is full is evicted. Since
// the session calls the hub under its own lock, every client receives
// events in mutation order.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	n := len(h.clients)
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnectionID, client.ID).Int("clients", n).Msg("client registered")
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		h.removeLocked(client)
		l := log.L()
		l.Debug().Str(log.FieldConnectionID, client.ID).Msg("client unregistered")
	}
}

// Broadcast sends evt to every client.
func (h *Hub) Broadcast(evt *domain.Event) {
	data, ok := encode(evt)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		h.deliverLocked(client, data)
	}
}

// SendTo sends evt to a single client. Unknown ids are ignored.
func (h *Hub) SendTo(clientID string, evt *domain.Event) {
	data, ok := encode(evt)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		h.deliverLocked(client, data)
	}
}

// Terminate queues evt as the client's final frame and closes the
// connection once it has been written.
func (h *Hub) Terminate(clientID string, evt *domain.Event) {
	data, ok := encode(evt)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	client, found := h.clients[clientID]
	if !found {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
	h.removeLocked(client)

	l := log.L()
	l.Info().Str(log.FieldConnectionID, clientID).Str(log.FieldEvent, evt.Type).Msg("client terminated")
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *Hub) deliverLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.removeLocked(client)
		l := log.L()
		l.Warn().Str(log.FieldConnectionID, client.ID).Msg("send buffer full, client evicted")
	}
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client.ID)
	close(client.Send)
}

func encode(evt *domain.Event) ([]byte, bool) {
	data, err := json.Marshal(evt)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEvent, evt.Type).Msg("failed to encode event")
		return nil, false
	}
	return data, true
}
