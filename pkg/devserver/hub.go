package devserver

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/msniranjan18/chit-chat-client/pkg/metrics"
	"github.com/msniranjan18/chit-chat-client/pkg/push"
)

// Hub tracks the sockets of every connected user. A user may hold several
// sockets; they count as online while at least one is open.
type Hub struct {
	// Registered clients by userID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger zerolog.Logger
	mu     sync.RWMutex
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case <-ctx.Done():
			close(h.done)
			h.shutdown()
			h.logger.Info().Msg("WebSocket hub stopped")
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	metrics.DevServerSockets.Inc()

	h.broadcastOnlineLocked()
	h.logger.Info().Str("user_id", client.UserID).Msg("Client registered")
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok || !userClients[client] {
		return
	}
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)
	metrics.DevServerSockets.Dec()

	h.broadcastOnlineLocked()
	h.logger.Info().Str("user_id", client.UserID).Msg("Client unregistered")
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, userClients := range h.clients {
		for client := range userClients {
			close(client.send)
			metrics.DevServerSockets.Dec()
		}
		delete(h.clients, userID)
	}
}

// Register hands client to the running hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Online returns the IDs of connected users, sorted.
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []string {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) broadcastOnlineLocked() {
	frame, err := encodeEnvelope(push.EventOnlineUsers, h.onlineLocked())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode online users")
		return
	}
	for _, userClients := range h.clients {
		for client := range userClients {
			h.enqueueLocked(client, frame)
		}
	}
}

// SendTo pushes an event to every socket of userID and returns how many
// sockets it was queued on.
func (h *Hub) SendTo(userID, event string, v any) int {
	frame, err := encodeEnvelope(event, v)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for client := range h.clients[userID] {
		if h.enqueueLocked(client, frame) {
			n++
		}
	}
	return n
}

// enqueueLocked drops the frame when the client's buffer is full; a client
// that slow is about to fail its ping anyway.
func (h *Hub) enqueueLocked(client *Client, frame []byte) bool {
	select {
	case client.send <- frame:
		return true
	default:
		h.logger.Warn().Str("user_id", client.UserID).Msg("Client buffer full, dropping frame")
		return false
	}
}

func encodeEnvelope(event string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(push.Envelope{Type: event, Payload: payload})
}
