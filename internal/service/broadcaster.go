package service

import "omnidesk/internal/models"

// Realtime event names pushed to connected clients.
const (
	EventMessageNew         = "message:new"
	EventConversationUpdate = "conversation:update"
	EventPresenceUpdate     = "presence:update"
	EventTyping             = "typing"
	EventMessageRead        = "message:read"
)

// Broadcaster fans domain events out to connected clients. The in-process
// hub implements it for single-instance deployments; a bus-backed
// implementation can replace it for horizontal scaling without touching the
// services.
type Broadcaster interface {
	ToConversation(conversationID, event string, payload interface{})
	ToAccount(accountID, event string, payload interface{})
}

// NopBroadcaster discards all events. Used when no realtime gateway is
// attached, and in tests.
type NopBroadcaster struct{}

func (NopBroadcaster) ToConversation(string, string, interface{}) {}
func (NopBroadcaster) ToAccount(string, string, interface{})      {}

// MessagePayload is the body of message:new events.
type MessagePayload struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// ConversationPayload is the body of conversation:update events.
type ConversationPayload struct {
	ConversationID string                    `json:"conversationId"`
	Update         models.ConversationUpdate `json:"update"`
}

// PresencePayload is the body of presence:update events.
type PresencePayload struct {
	UserID     string                `json:"userId"`
	Status     models.PresenceStatus `json:"status"`
	LastSeenAt string                `json:"lastSeenAt"`
}

// TypingPayload is the body of typing events.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ReadPayload is the body of message:read events.
type ReadPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	ReadAt         string `json:"readAt"`
}
