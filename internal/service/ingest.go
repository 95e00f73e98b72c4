package service

import (
	"context"
	"time"

	"omnidesk/internal/database"
	apperrors "omnidesk/internal/errors"
	"omnidesk/internal/metrics"
	"omnidesk/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IngestService turns unified inbound events into durable contact,
// conversation, and message state. Each event runs in its own transaction;
// the (conversation_id, external_id) lookup inside that transaction is the
// sole dedup authority, so provider retries are safe however they arrive.
type IngestService struct {
	db          *database.Database
	logger      *logrus.Logger
	broadcaster Broadcaster
	clock       Clock
}

func NewIngestService(db *database.Database, logger *logrus.Logger, broadcaster Broadcaster) *IngestService {
	return &IngestService{
		db:          db,
		logger:      logger,
		broadcaster: broadcaster,
		clock:       RealClock(),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *IngestService) WithClock(clock Clock) *IngestService {
	s.clock = clock
	return s
}

// storedEvent carries what a committed event needs broadcast after the
// transaction is out of the way.
type storedEvent struct {
	accountID     string
	message       *models.Message
	conversation  *models.Conversation
	statusChanged bool
}

// Ingest applies a webhook batch in payload order. A missing account/inbox is
// a configuration fault that aborts the whole batch; a store failure on one
// event is logged and does not disturb the others.
func (s *IngestService) Ingest(ctx context.Context, channel string, events []models.UnifiedInboundEvent) (models.IngestResult, error) {
	var result models.IngestResult

	for i := range events {
		stored, err := s.ingestOne(ctx, channel, &events[i])
		if err != nil {
			if apperrors.GetCode(err) == apperrors.ErrCodeConfiguration {
				return result, err
			}
			s.logger.WithError(err).WithFields(logrus.Fields{
				"channel": channel,
				"phone":   events[i].Phone,
			}).Error("Failed to ingest inbound event")
			continue
		}

		if stored != nil {
			result.Stored++
			metrics.IncrementCounter("ingest_events_total", map[string]string{
				"channel": channel, "result": "stored",
			}, "Inbound events by outcome")
			s.broadcastStored(stored)
		} else {
			result.Skipped++
			metrics.IncrementCounter("ingest_events_total", map[string]string{
				"channel": channel, "result": "duplicate",
			}, "Inbound events by outcome")
		}
	}

	return result, nil
}

// ingestOne applies a single event inside one transaction. A nil storedEvent
// with nil error means the event was a duplicate delivery.
func (s *IngestService) ingestOne(ctx context.Context, channel string, event *models.UnifiedInboundEvent) (*storedEvent, error) {
	inbox, err := s.resolveInbox(ctx, channel, event)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var stored *storedEvent

	err = s.db.WithTx(ctx, func(store *database.Store) error {
		contact, err := s.upsertContact(ctx, store, inbox, event, now)
		if err != nil {
			return err
		}

		conv, err := s.resolveConversation(ctx, store, inbox, contact, now)
		if err != nil {
			return err
		}

		// Dedup: the provider's message id is authoritative. A redelivered
		// webhook finds the existing row and writes nothing.
		if event.ProviderMessageID != nil {
			existing, err := store.GetMessageByExternalID(ctx, conv.ID, *event.ProviderMessageID)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
		}

		timestamp := now
		if event.SentAt != nil {
			timestamp = *event.SentAt
		}

		msg := &models.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			ExternalID:     event.ProviderMessageID,
			Direction:      models.DirectionInbound,
			From:           event.Phone,
			To:             inbox.ExternalID,
			Text:           event.Text,
			Timestamp:      timestamp,
			CreatedAt:      now,
		}
		if err := store.InsertMessage(ctx, msg); err != nil {
			return err
		}

		if err := store.IncrementUnreadForActive(ctx, conv.ID); err != nil {
			return err
		}

		// A new inbound message reopens a closed thread; lastActivityAt is
		// bumped either way.
		next := ApplyInboundTransition(conv.Status)
		statusChanged := next != conv.Status
		if err := store.UpdateConversationStatus(ctx, conv.ID, next, msg.CreatedAt); err != nil {
			return err
		}
		conv.Status = next
		conv.LastActivityAt = msg.CreatedAt

		stored = &storedEvent{
			accountID:     inbox.AccountID,
			message:       msg,
			conversation:  conv,
			statusChanged: statusChanged,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *IngestService) resolveInbox(ctx context.Context, channel string, event *models.UnifiedInboundEvent) (*models.Inbox, error) {
	store := s.db.Store()

	var inbox *models.Inbox
	var err error
	if event.InboxExternalID != nil {
		inbox, err = store.GetInboxByExternalID(ctx, channel, *event.InboxExternalID)
	} else {
		inbox, err = store.GetDefaultInbox(ctx, channel)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("inbox lookup", err)
	}
	if inbox == nil {
		identifier := "(default)"
		if event.InboxExternalID != nil {
			identifier = *event.InboxExternalID
		}
		return nil, apperrors.NewConfigurationError("inbox", identifier).WithContext("channel", channel)
	}
	return inbox, nil
}

func (s *IngestService) upsertContact(ctx context.Context, store *database.Store, inbox *models.Inbox, event *models.UnifiedInboundEvent, now time.Time) (*models.Contact, error) {
	contact, err := store.GetContactByPhone(ctx, inbox.ID, event.Phone)
	if err != nil {
		return nil, err
	}

	if contact == nil {
		contact = &models.Contact{
			ID:        uuid.NewString(),
			AccountID: inbox.AccountID,
			InboxID:   inbox.ID,
			Phone:     event.Phone,
			Name:      event.ContactName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.InsertContact(ctx, contact); err != nil {
			return nil, err
		}
		return contact, nil
	}

	if event.ContactName != nil && (contact.Name == nil || *contact.Name != *event.ContactName) {
		if err := store.UpdateContactName(ctx, contact.ID, *event.ContactName, now); err != nil {
			return nil, err
		}
		contact.Name = event.ContactName
	}
	return contact, nil
}

func (s *IngestService) resolveConversation(ctx context.Context, store *database.Store, inbox *models.Inbox, contact *models.Contact, now time.Time) (*models.Conversation, error) {
	conv, err := store.GetLatestConversation(ctx, inbox.ID, contact.ID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &models.Conversation{
		ID:             uuid.NewString(),
		InboxID:        inbox.ID,
		ContactID:      contact.ID,
		Status:         models.ConversationOpen,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := store.InsertConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *IngestService) broadcastStored(stored *storedEvent) {
	s.broadcaster.ToConversation(stored.conversation.ID, EventMessageNew, MessagePayload{
		ConversationID: stored.conversation.ID,
		Message:        stored.message,
	})
	s.broadcaster.ToAccount(stored.accountID, EventMessageNew, MessagePayload{
		ConversationID: stored.conversation.ID,
		Message:        stored.message,
	})

	if stored.statusChanged {
		update := ConversationPayload{
			ConversationID: stored.conversation.ID,
			Update: models.ConversationUpdate{
				Status:         stored.conversation.Status,
				LastActivityAt: stored.conversation.LastActivityAt,
			},
		}
		s.broadcaster.ToConversation(stored.conversation.ID, EventConversationUpdate, update)
		s.broadcaster.ToAccount(stored.accountID, EventConversationUpdate, update)
	}
}
