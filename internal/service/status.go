package service

import "omnidesk/internal/models"

// Conversation lifecycle rules. OPEN is the initial state; PENDING and
// CLOSED are reachable only through an explicit status update, and CLOSED is
// always re-openable.

// ApplyInboundTransition returns the status a conversation takes when a new
// inbound message arrives: a closed thread reopens, everything else is
// untouched.
func ApplyInboundTransition(current models.ConversationStatus) models.ConversationStatus {
	if current == models.ConversationClosed {
		return models.ConversationOpen
	}
	return current
}

// ApplyOutboundTransition returns the status a conversation takes when an
// operator replies: replying to a closed thread reactivates it.
func ApplyOutboundTransition(current models.ConversationStatus) models.ConversationStatus {
	if current == models.ConversationClosed {
		return models.ConversationOpen
	}
	return current
}
