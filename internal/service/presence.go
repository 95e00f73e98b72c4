package service

import (
	"context"
	"time"

	"omnidesk/internal/database"
	apperrors "omnidesk/internal/errors"
	"omnidesk/internal/models"

	"github.com/sirupsen/logrus"
)

// PresenceService tracks who is online, what they are looking at, and
// whether they are typing. State is persisted so it survives across
// instances; only the live push of updates is process-scoped.
type PresenceService struct {
	db          *database.Database
	logger      *logrus.Logger
	broadcaster Broadcaster
	staleAfter  time.Duration
	clock       Clock
}

func NewPresenceService(db *database.Database, logger *logrus.Logger, broadcaster Broadcaster, staleAfter time.Duration) *PresenceService {
	return &PresenceService{
		db:          db,
		logger:      logger,
		broadcaster: broadcaster,
		staleAfter:  staleAfter,
		clock:       RealClock(),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *PresenceService) WithClock(clock Clock) *PresenceService {
	s.clock = clock
	return s
}

// SetOnline upserts the user's presence row on connect and announces it to
// the account room.
func (s *PresenceService) SetOnline(ctx context.Context, userAccountID, accountID, socketID string) error {
	now := s.clock.Now()
	if err := s.db.Store().UpsertPresenceOnline(ctx, userAccountID, accountID, socketID, now); err != nil {
		return apperrors.NewDatabaseError("presence upsert", err)
	}
	s.broadcastPresence(accountID, userAccountID, models.PresenceOnline, now)
	return nil
}

// SetStatus applies a user-driven status change. Offline is not a valid
// explicit target; it is reached only through disconnect or the staleness
// sweep.
func (s *PresenceService) SetStatus(ctx context.Context, userAccountID string, status models.PresenceStatus) error {
	if !status.IsValid() || status == models.PresenceOffline {
		return apperrors.NewValidationError("status", "must be one of online, away, busy")
	}

	presence, err := s.db.Store().GetPresence(ctx, userAccountID)
	if err != nil {
		return apperrors.NewDatabaseError("presence lookup", err)
	}
	if presence == nil {
		return apperrors.NewNotFoundError("presence", userAccountID)
	}

	now := s.clock.Now()
	if err := s.db.Store().UpdatePresenceStatus(ctx, userAccountID, status, now); err != nil {
		return apperrors.NewDatabaseError("presence status update", err)
	}
	s.broadcastPresence(presence.AccountID, userAccountID, status, now)
	return nil
}

// Heartbeat refreshes last_seen_at without changing status. Connected
// clients are expected to send one roughly every 30 seconds.
func (s *PresenceService) Heartbeat(ctx context.Context, userAccountID string) error {
	if err := s.db.Store().TouchPresence(ctx, userAccountID, s.clock.Now()); err != nil {
		return apperrors.NewDatabaseError("presence heartbeat", err)
	}
	return nil
}

// SetOffline resets the row on disconnect: socket, current conversation,
// and typing state are all cleared.
func (s *PresenceService) SetOffline(ctx context.Context, userAccountID string) error {
	presence, err := s.db.Store().GetPresence(ctx, userAccountID)
	if err != nil {
		return apperrors.NewDatabaseError("presence lookup", err)
	}
	if presence == nil {
		return nil
	}

	now := s.clock.Now()
	if err := s.db.Store().SetPresenceOffline(ctx, userAccountID, now); err != nil {
		return apperrors.NewDatabaseError("presence offline", err)
	}
	s.broadcastPresence(presence.AccountID, userAccountID, models.PresenceOffline, now)
	return nil
}

// SetTyping records the typing indicator and pushes it to the conversation
// room.
func (s *PresenceService) SetTyping(ctx context.Context, userAccountID, conversationID string, isTyping bool) error {
	var typingIn *string
	if isTyping {
		typingIn = &conversationID
	}
	if err := s.db.Store().SetTyping(ctx, userAccountID, typingIn); err != nil {
		return apperrors.NewDatabaseError("typing update", err)
	}

	s.broadcaster.ToConversation(conversationID, EventTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         userAccountID,
		IsTyping:       isTyping,
	})
	return nil
}

// SetCurrentConversation records which conversation the user is viewing.
func (s *PresenceService) SetCurrentConversation(ctx context.Context, userAccountID string, conversationID *string) error {
	if err := s.db.Store().SetCurrentConversation(ctx, userAccountID, conversationID); err != nil {
		return apperrors.NewDatabaseError("current conversation update", err)
	}
	return nil
}

// SweepStale force-transitions online rows that have missed heartbeats past
// the staleness threshold. This is the only recovery path for ungraceful
// disconnects where no disconnect event ever arrived.
func (s *PresenceService) SweepStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.staleAfter)

	stale, err := s.db.Store().ListStalePresence(ctx, cutoff)
	if err != nil {
		return 0, apperrors.NewDatabaseError("stale presence list", err)
	}

	swept := 0
	for _, p := range stale {
		if err := s.db.Store().SetPresenceOffline(ctx, p.UserAccountID, now); err != nil {
			s.logger.WithError(err).WithField("user_id", p.UserAccountID).Error("Failed to sweep stale presence")
			continue
		}
		s.broadcastPresence(p.AccountID, p.UserAccountID, models.PresenceOffline, now)
		swept++
	}

	if swept > 0 {
		s.logger.WithField("count", swept).Info("Swept stale presence rows offline")
	}
	return swept, nil
}

func (s *PresenceService) broadcastPresence(accountID, userAccountID string, status models.PresenceStatus, at time.Time) {
	s.broadcaster.ToAccount(accountID, EventPresenceUpdate, PresencePayload{
		UserID:     userAccountID,
		Status:     status,
		LastSeenAt: at.Format(time.RFC3339),
	})
}
