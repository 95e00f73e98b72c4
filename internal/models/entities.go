package models

import "time"

type ConversationStatus string

const (
	ConversationOpen    ConversationStatus = "OPEN"
	ConversationPending ConversationStatus = "PENDING"
	ConversationClosed  ConversationStatus = "CLOSED"
)

// IsValid reports whether s is one of the three known conversation states.
func (s ConversationStatus) IsValid() bool {
	switch s {
	case ConversationOpen, ConversationPending, ConversationClosed:
		return true
	}
	return false
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "IN"
	DirectionOutbound MessageDirection = "OUT"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// IsValid reports whether s is a known presence status.
func (s PresenceStatus) IsValid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// Account is a tenant. Accounts are provisioned out of band; the ingestion
// pipeline only ever reads them.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Inbox binds a provider channel (identified by the provider's own external
// id, e.g. a phone-number id or page id) to a tenant account.
type Inbox struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	Channel    string    `json:"channel"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Contact is an end user reaching the inbox, unique per (inbox, phone).
type Contact struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	InboxID   string    `json:"inboxId"`
	Phone     string    `json:"phone"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Conversation struct {
	ID             string             `json:"id"`
	InboxID        string             `json:"inboxId"`
	ContactID      string             `json:"contactId"`
	Status         ConversationStatus `json:"status"`
	LastActivityAt time.Time          `json:"lastActivityAt"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Message is immutable once stored. ExternalID carries the provider's own
// message id and is the dedup key within a conversation when present.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	ExternalID     *string          `json:"externalId,omitempty"`
	Direction      MessageDirection `json:"direction"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	Text           *string          `json:"text,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ConversationParticipant records an operator's membership and read state for
// one conversation. UnreadCount is a derived cache: incremented on each
// inbound message and recomputed exactly on mark-read.
type ConversationParticipant struct {
	ConversationID    string     `json:"conversationId"`
	UserAccountID     string     `json:"userAccountId"`
	JoinedAt          time.Time  `json:"joinedAt"`
	LeftAt            *time.Time `json:"leftAt,omitempty"`
	LastReadMessageID *string    `json:"lastReadMessageId,omitempty"`
	LastReadAt        *time.Time `json:"lastReadAt,omitempty"`
	UnreadCount       int        `json:"unreadCount"`
	Muted             bool       `json:"muted"`
	MutedUntil        *time.Time `json:"mutedUntil,omitempty"`
}

// Presence is one row per user, upserted on connect and reset on disconnect.
type Presence struct {
	UserAccountID          string         `json:"userAccountId"`
	AccountID              string         `json:"accountId"`
	Status                 PresenceStatus `json:"status"`
	LastSeenAt             time.Time      `json:"lastSeenAt"`
	SocketID               *string        `json:"socketId,omitempty"`
	CurrentConversationID  *string        `json:"currentConversationId,omitempty"`
	TypingInConversationID *string        `json:"isTypingInConversation,omitempty"`
}

// IdempotencyRecord caches the outcome of a mutating request keyed by a
// client-supplied token. Read-only after creation until it expires.
type IdempotencyRecord struct {
	Key          string    `json:"key"`
	AccountID    string    `json:"accountId"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	RequestBody  string    `json:"requestBody"`
	StatusCode   int       `json:"statusCode"`
	ResponseBody string    `json:"responseBody"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}
