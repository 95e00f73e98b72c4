package service

import (
	"context"

	"omnidesk/internal/database"
	apperrors "omnidesk/internal/errors"
	"omnidesk/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConversationService owns the operator-facing conversation mutations: the
// explicit status endpoint and outbound sends.
type ConversationService struct {
	db          *database.Database
	logger      *logrus.Logger
	broadcaster Broadcaster
	clock       Clock
}

func NewConversationService(db *database.Database, logger *logrus.Logger, broadcaster Broadcaster) *ConversationService {
	return &ConversationService{
		db:          db,
		logger:      logger,
		broadcaster: broadcaster,
		clock:       RealClock(),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *ConversationService) WithClock(clock Clock) *ConversationService {
	s.clock = clock
	return s
}

// authorize verifies the conversation exists and belongs to the caller's
// tenant.
func (s *ConversationService) authorize(ctx context.Context, store *database.Store, accountID, conversationID string) (*models.Conversation, error) {
	conv, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("conversation lookup", err)
	}
	if conv == nil {
		return nil, apperrors.NewNotFoundError("conversation", conversationID)
	}

	owner, err := store.GetConversationAccount(ctx, conversationID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("conversation account lookup", err)
	}
	if owner != accountID {
		return nil, apperrors.NewAuthorizationError("conversation", conversationID)
	}
	return conv, nil
}

// SetStatus applies an explicit user-driven transition. Any of the three
// states may be targeted unconditionally; this is the only path into PENDING
// or CLOSED.
func (s *ConversationService) SetStatus(ctx context.Context, accountID, conversationID string, target models.ConversationStatus) (*models.Conversation, error) {
	if !target.IsValid() {
		return nil, apperrors.NewValidationError("status", "must be one of OPEN, PENDING, CLOSED")
	}

	var conv *models.Conversation
	err := s.db.WithTx(ctx, func(store *database.Store) error {
		var err error
		conv, err = s.authorize(ctx, store, accountID, conversationID)
		if err != nil {
			return err
		}
		if conv.Status == target {
			return nil
		}
		if err := store.UpdateConversationStatus(ctx, conversationID, target, conv.LastActivityAt); err != nil {
			return apperrors.NewDatabaseError("conversation status update", err)
		}
		conv.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	update := ConversationPayload{
		ConversationID: conv.ID,
		Update: models.ConversationUpdate{
			Status:         conv.Status,
			LastActivityAt: conv.LastActivityAt,
		},
	}
	s.broadcaster.ToConversation(conv.ID, EventConversationUpdate, update)
	s.broadcaster.ToAccount(accountID, EventConversationUpdate, update)

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"status":          target,
	}).Info("Conversation status updated")
	return conv, nil
}

// SendMessage stores an operator reply as an outbound message. Replying to a
// closed thread reactivates it.
func (s *ConversationService) SendMessage(ctx context.Context, accountID, userAccountID, conversationID, text string) (*models.Message, error) {
	if text == "" {
		return nil, apperrors.NewValidationError("text", "must not be empty")
	}

	now := s.clock.Now()
	var msg *models.Message
	var conv *models.Conversation
	var statusChanged bool

	err := s.db.WithTx(ctx, func(store *database.Store) error {
		var err error
		conv, err = s.authorize(ctx, store, accountID, conversationID)
		if err != nil {
			return err
		}

		body := text
		msg = &models.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			Direction:      models.DirectionOutbound,
			From:           userAccountID,
			To:             conv.ContactID,
			Text:           &body,
			Timestamp:      now,
			CreatedAt:      now,
		}
		if err := store.InsertMessage(ctx, msg); err != nil {
			return apperrors.NewDatabaseError("message insert", err)
		}

		next := ApplyOutboundTransition(conv.Status)
		statusChanged = next != conv.Status
		if err := store.UpdateConversationStatus(ctx, conv.ID, next, now); err != nil {
			return apperrors.NewDatabaseError("conversation status update", err)
		}
		conv.Status = next
		conv.LastActivityAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := MessagePayload{ConversationID: conv.ID, Message: msg}
	s.broadcaster.ToConversation(conv.ID, EventMessageNew, payload)
	s.broadcaster.ToAccount(accountID, EventMessageNew, payload)

	if statusChanged {
		update := ConversationPayload{
			ConversationID: conv.ID,
			Update: models.ConversationUpdate{
				Status:         conv.Status,
				LastActivityAt: conv.LastActivityAt,
			},
		}
		s.broadcaster.ToConversation(conv.ID, EventConversationUpdate, update)
		s.broadcaster.ToAccount(accountID, EventConversationUpdate, update)
	}

	return msg, nil
}
