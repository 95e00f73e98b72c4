package service

import (
	"context"
	"time"

	"omnidesk/internal/database"
	apperrors "omnidesk/internal/errors"

	"github.com/sirupsen/logrus"
)

// ReceiptService maintains per-(conversation, user) read markers and unread
// counters. Unread counts are eventually exact: incremented on each inbound
// message and recomputed from the message table on every mark-read.
type ReceiptService struct {
	db          *database.Database
	logger      *logrus.Logger
	broadcaster Broadcaster
	clock       Clock
}

func NewReceiptService(db *database.Database, logger *logrus.Logger, broadcaster Broadcaster) *ReceiptService {
	return &ReceiptService{
		db:          db,
		logger:      logger,
		broadcaster: broadcaster,
		clock:       RealClock(),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *ReceiptService) WithClock(clock Clock) *ReceiptService {
	s.clock = clock
	return s
}

// MarkRead moves the caller's read marker to messageID and recomputes the
// unread counter as the number of inbound messages newer than it. Returns
// the new unread count.
func (s *ReceiptService) MarkRead(ctx context.Context, accountID, userAccountID, conversationID, messageID string) (int, error) {
	var unread int
	var readAt time.Time

	err := s.db.WithTx(ctx, func(store *database.Store) error {
		owner, err := store.GetConversationAccount(ctx, conversationID)
		if err != nil {
			return apperrors.NewDatabaseError("conversation account lookup", err)
		}
		if owner == "" {
			return apperrors.NewNotFoundError("conversation", conversationID)
		}
		if owner != accountID {
			return apperrors.NewAuthorizationError("conversation", conversationID)
		}

		participant, err := store.GetParticipant(ctx, conversationID, userAccountID)
		if err != nil {
			return apperrors.NewDatabaseError("participant lookup", err)
		}
		if participant == nil {
			return apperrors.NewNotFoundError("participant", userAccountID)
		}

		msg, err := store.GetMessage(ctx, messageID)
		if err != nil {
			return apperrors.NewDatabaseError("message lookup", err)
		}
		if msg == nil || msg.ConversationID != conversationID {
			return apperrors.NewNotFoundError("message", messageID)
		}

		// Messages the user sent are never unread for themselves, so only
		// inbound messages newer than the marker count.
		unread, err = store.CountInboundAfter(ctx, conversationID, msg.Timestamp)
		if err != nil {
			return apperrors.NewDatabaseError("unread recount", err)
		}

		readAt = s.clock.Now()
		if err := store.UpdateReadState(ctx, conversationID, userAccountID, messageID, readAt, unread); err != nil {
			return apperrors.NewDatabaseError("read state update", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.broadcaster.ToConversation(conversationID, EventMessageRead, ReadPayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		UserID:         userAccountID,
		ReadAt:         readAt.Format(time.RFC3339),
	})

	s.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"user_id":         userAccountID,
		"unread":          unread,
	}).Debug("Read marker advanced")
	return unread, nil
}
