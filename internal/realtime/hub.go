package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Frame is the wire envelope for every websocket message in both
// directions.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// inboundFrame defers payload decoding until the event type is known.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub tracks connected clients and their room memberships. Rooms come in
// two flavors: one per tenant account (every authenticated socket joins
// its own account room) and one per conversation (joined explicitly).
type Hub struct {
	mu                sync.RWMutex
	accountRooms      map[string]map[*Client]bool
	conversationRooms map[string]map[*Client]bool
	logger            *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		accountRooms:      make(map[string]map[*Client]bool),
		conversationRooms: make(map[string]map[*Client]bool),
		logger:            logger,
	}
}

// Register adds an authenticated client to its account room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.accountRooms[c.accountID] == nil {
		h.accountRooms[c.accountID] = make(map[*Client]bool)
	}
	h.accountRooms[c.accountID][c] = true
}

// Unregister removes the client from its account room and every
// conversation room it joined.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room := h.accountRooms[c.accountID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.accountRooms, c.accountID)
		}
	}
	for convID := range c.joined {
		h.leaveConversationLocked(convID, c)
	}
}

// JoinConversation subscribes the client to a conversation room.
func (h *Hub) JoinConversation(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conversationRooms[conversationID] == nil {
		h.conversationRooms[conversationID] = make(map[*Client]bool)
	}
	h.conversationRooms[conversationID][c] = true
	c.joined[conversationID] = true
}

// LeaveConversation unsubscribes the client from a conversation room.
func (h *Hub) LeaveConversation(conversationID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveConversationLocked(conversationID, c)
}

func (h *Hub) leaveConversationLocked(conversationID string, c *Client) {
	if room := h.conversationRooms[conversationID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.conversationRooms, conversationID)
		}
	}
	delete(c.joined, conversationID)
}

// ToConversation pushes an event to every client in the conversation room.
func (h *Hub) ToConversation(conversationID, event string, payload interface{}) {
	h.mu.RLock()
	clients := h.snapshotLocked(h.conversationRooms[conversationID])
	h.mu.RUnlock()
	h.send(clients, event, payload)
}

// ToAccount pushes an event to every client in the account room.
func (h *Hub) ToAccount(accountID, event string, payload interface{}) {
	h.mu.RLock()
	clients := h.snapshotLocked(h.accountRooms[accountID])
	h.mu.RUnlock()
	h.send(clients, event, payload)
}

func (h *Hub) snapshotLocked(room map[*Client]bool) []*Client {
	if len(room) == 0 {
		return nil
	}
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) send(clients []*Client, event string, payload interface{}) {
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("Failed to marshal broadcast frame")
		return
	}

	for _, c := range clients {
		c.enqueue(data)
	}
}

// ConversationRoomSize reports how many clients are in a conversation room.
func (h *Hub) ConversationRoomSize(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversationRooms[conversationID])
}

// AccountRoomSize reports how many clients are in an account room.
func (h *Hub) AccountRoomSize(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accountRooms[accountID])
}
