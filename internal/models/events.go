package models

import "time"

// UnifiedInboundEvent is the channel-independent form of one provider webhook
// message. Every field except Phone is optional: normalizers degrade missing
// or malformed provider fields to nil instead of failing the event.
type UnifiedInboundEvent struct {
	Channel           string
	InboxExternalID   *string
	Phone             string
	ContactName       *string
	ProviderMessageID *string
	Text              *string
	SentAt            *time.Time
}

// IngestResult reports how a batch of inbound events was applied.
type IngestResult struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// ConversationUpdate is the payload broadcast on conversation:update.
type ConversationUpdate struct {
	Status         ConversationStatus `json:"status"`
	LastActivityAt time.Time          `json:"lastActivityAt"`
}
