package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"omnidesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

// seedConversation creates the account/inbox/contact/conversation chain most
// tests need and returns the store plus the created IDs.
func seedConversation(t *testing.T, db *Database) (*Store, *models.Inbox, *models.Contact, *models.Conversation) {
	t.Helper()
	ctx := context.Background()
	store := db.Store()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.InsertAccount(ctx, "acct-1", "Acme Support"))

	inbox := &models.Inbox{
		ID:         "inbox-1",
		AccountID:  "acct-1",
		Channel:    "whatsapp",
		ExternalID: "phone-number-1",
		Name:       "Main Line",
		IsDefault:  true,
		CreatedAt:  now,
	}
	require.NoError(t, store.InsertInbox(ctx, inbox))

	contact := &models.Contact{
		ID:        "contact-1",
		AccountID: "acct-1",
		InboxID:   "inbox-1",
		Phone:     "15551234567",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertContact(ctx, contact))

	conv := &models.Conversation{
		ID:             "conv-1",
		InboxID:        "inbox-1",
		ContactID:      "contact-1",
		Status:         models.ConversationOpen,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	require.NoError(t, store.InsertConversation(ctx, conv))

	return store, inbox, contact, conv
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestInboxLookup(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, _ := seedConversation(t, db)
	ctx := context.Background()

	t.Run("by external id", func(t *testing.T) {
		inbox, err := store.GetInboxByExternalID(ctx, "whatsapp", "phone-number-1")
		require.NoError(t, err)
		require.NotNil(t, inbox)
		assert.Equal(t, "acct-1", inbox.AccountID)
		assert.True(t, inbox.IsDefault)
		assert.False(t, inbox.CreatedAt.IsZero())
	})

	t.Run("default inbox for channel", func(t *testing.T) {
		inbox, err := store.GetDefaultInbox(ctx, "whatsapp")
		require.NoError(t, err)
		require.NotNil(t, inbox)
		assert.Equal(t, "inbox-1", inbox.ID)
	})

	t.Run("unknown returns nil", func(t *testing.T) {
		inbox, err := store.GetInboxByExternalID(ctx, "whatsapp", "nope")
		require.NoError(t, err)
		assert.Nil(t, inbox)

		inbox, err = store.GetDefaultInbox(ctx, "messenger")
		require.NoError(t, err)
		assert.Nil(t, inbox)
	})
}

func TestContactOperations(t *testing.T) {
	db := setupTestDB(t)
	store, _, contact, _ := seedConversation(t, db)
	ctx := context.Background()

	got, err := store.GetContactByPhone(ctx, "inbox-1", contact.Phone)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Name)

	require.NoError(t, store.UpdateContactName(ctx, contact.ID, "Ada", time.Now().UTC()))

	got, err = store.GetContactByPhone(ctx, "inbox-1", contact.Phone)
	require.NoError(t, err)
	require.NotNil(t, got.Name)
	assert.Equal(t, "Ada", *got.Name)

	missing, err := store.GetContactByPhone(ctx, "inbox-1", "00000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetLatestConversation(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, first := seedConversation(t, db)
	ctx := context.Background()

	later := first.CreatedAt.Add(time.Hour)
	second := &models.Conversation{
		ID:             "conv-2",
		InboxID:        "inbox-1",
		ContactID:      "contact-1",
		Status:         models.ConversationOpen,
		LastActivityAt: later,
		CreatedAt:      later,
	}
	require.NoError(t, store.InsertConversation(ctx, second))

	got, err := store.GetLatestConversation(ctx, "inbox-1", "contact-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "conv-2", got.ID)
}

func TestGetConversationAccount(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, conv := seedConversation(t, db)
	ctx := context.Background()

	owner, err := store.GetConversationAccount(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", owner)

	owner, err = store.GetConversationAccount(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", owner)
}

func TestUpdateConversationStatus(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, conv := seedConversation(t, db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateConversationStatus(ctx, conv.ID, models.ConversationClosed, now))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, got.Status)
	assert.True(t, got.LastActivityAt.Equal(now))

	err = store.UpdateConversationStatus(ctx, "missing", models.ConversationOpen, now)
	assert.Error(t, err)
}

func TestMessageDedup(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, conv := seedConversation(t, db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	externalID := "wamid.abc"
	msg := &models.Message{
		ID:             "msg-1",
		ConversationID: conv.ID,
		ExternalID:     &externalID,
		Direction:      models.DirectionInbound,
		From:           "15551234567",
		To:             "phone-number-1",
		Timestamp:      now,
		CreatedAt:      now,
	}
	require.NoError(t, store.InsertMessage(ctx, msg))

	t.Run("lookup by external id", func(t *testing.T) {
		got, err := store.GetMessageByExternalID(ctx, conv.ID, externalID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "msg-1", got.ID)
	})

	t.Run("unique index rejects a second insert", func(t *testing.T) {
		dup := *msg
		dup.ID = "msg-dup"
		assert.Error(t, store.InsertMessage(ctx, &dup))
	})

	t.Run("nil external id rows do not collide", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			m := &models.Message{
				ID:             fmt.Sprintf("msg-nil-%d", i),
				ConversationID: conv.ID,
				Direction:      models.DirectionOutbound,
				Timestamp:      now,
				CreatedAt:      now,
			}
			require.NoError(t, store.InsertMessage(ctx, m))
		}
	})
}

func TestCountInboundAfter(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, conv := seedConversation(t, db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	insert := func(id string, direction models.MessageDirection, ts time.Time) {
		require.NoError(t, store.InsertMessage(ctx, &models.Message{
			ID: id, ConversationID: conv.ID, Direction: direction,
			Timestamp: ts, CreatedAt: ts,
		}))
	}

	insert("m1", models.DirectionInbound, base)
	insert("m2", models.DirectionInbound, base.Add(time.Minute))
	insert("m3", models.DirectionInbound, base.Add(2*time.Minute))
	insert("m4", models.DirectionOutbound, base.Add(3*time.Minute))

	count, err := store.CountInboundAfter(ctx, conv.ID, base)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountInboundAfter(ctx, conv.ID, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestParticipantReadState(t *testing.T) {
	db := setupTestDB(t)
	store, _, _, conv := seedConversation(t, db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.InsertParticipant(ctx, conv.ID, "user-1", now))
	require.NoError(t, store.InsertParticipant(ctx, conv.ID, "user-2", now))

	require.NoError(t, store.IncrementUnreadForActive(ctx, conv.ID))
	require.NoError(t, store.IncrementUnreadForActive(ctx, conv.ID))

	p, err := store.GetParticipant(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.UnreadCount)

	require.NoError(t, store.UpdateReadState(ctx, conv.ID, "user-1", "msg-1", now, 0))

	p, err = store.GetParticipant(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnreadCount)
	require.NotNil(t, p.LastReadMessageID)
	assert.Equal(t, "msg-1", *p.LastReadMessageID)

	// user-2's counter is untouched by user-1's read marker.
	p2, err := store.GetParticipant(ctx, conv.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 2, p2.UnreadCount)

	err = store.UpdateReadState(ctx, conv.ID, "ghost", "msg-1", now, 0)
	assert.Error(t, err)
}

func TestPresenceLifecycle(t *testing.T) {
	db := setupTestDB(t)
	store := db.Store()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.UpsertPresenceOnline(ctx, "user-1", "acct-1", "sock-1", now))

	p, err := store.GetPresence(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.PresenceOnline, p.Status)
	require.NotNil(t, p.SocketID)
	assert.Equal(t, "sock-1", *p.SocketID)

	t.Run("reconnect replaces socket", func(t *testing.T) {
		require.NoError(t, store.UpsertPresenceOnline(ctx, "user-1", "acct-1", "sock-2", now.Add(time.Minute)))
		p, err := store.GetPresence(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "sock-2", *p.SocketID)
	})

	t.Run("status and typing updates", func(t *testing.T) {
		require.NoError(t, store.UpdatePresenceStatus(ctx, "user-1", models.PresenceAway, now.Add(2*time.Minute)))
		convID := "conv-1"
		require.NoError(t, store.SetTyping(ctx, "user-1", &convID))
		require.NoError(t, store.SetCurrentConversation(ctx, "user-1", &convID))

		p, err := store.GetPresence(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.PresenceAway, p.Status)
		require.NotNil(t, p.TypingInConversationID)
		assert.Equal(t, "conv-1", *p.TypingInConversationID)
	})

	t.Run("offline clears volatile fields", func(t *testing.T) {
		require.NoError(t, store.SetPresenceOffline(ctx, "user-1", now.Add(3*time.Minute)))
		p, err := store.GetPresence(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, models.PresenceOffline, p.Status)
		assert.Nil(t, p.SocketID)
		assert.Nil(t, p.CurrentConversationID)
		assert.Nil(t, p.TypingInConversationID)
	})
}

func TestListStalePresence(t *testing.T) {
	db := setupTestDB(t)
	store := db.Store()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.UpsertPresenceOnline(ctx, "stale-user", "acct-1", "s1", now.Add(-10*time.Minute)))
	require.NoError(t, store.UpsertPresenceOnline(ctx, "fresh-user", "acct-1", "s2", now))
	require.NoError(t, store.UpsertPresenceOnline(ctx, "offline-user", "acct-1", "s3", now.Add(-10*time.Minute)))
	require.NoError(t, store.SetPresenceOffline(ctx, "offline-user", now.Add(-10*time.Minute)))

	stale, err := store.ListStalePresence(ctx, now.Add(-2*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale-user", stale[0].UserAccountID)
	assert.Equal(t, "acct-1", stale[0].AccountID)
}

func TestIdempotencyRecords(t *testing.T) {
	db := setupTestDB(t)
	store := db.Store()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec := &models.IdempotencyRecord{
		Key:          "key-1",
		AccountID:    "acct-1",
		Endpoint:     "/conversations/conv-1/messages",
		Method:       "POST",
		RequestBody:  `{"text":"hi"}`,
		StatusCode:   201,
		ResponseBody: `{"id":"msg-1"}`,
		ExpiresAt:    now.Add(24 * time.Hour),
		CreatedAt:    now,
	}
	require.NoError(t, store.InsertIdempotencyRecord(ctx, rec))

	got, err := store.GetIdempotencyRecord(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.StatusCode)
	assert.Equal(t, `{"id":"msg-1"}`, got.ResponseBody)

	t.Run("duplicate key rejected", func(t *testing.T) {
		assert.Error(t, store.InsertIdempotencyRecord(ctx, rec))
	})

	t.Run("expiry sweep deletes only expired", func(t *testing.T) {
		expired := *rec
		expired.Key = "key-expired"
		expired.ExpiresAt = now.Add(-time.Hour)
		require.NoError(t, store.InsertIdempotencyRecord(ctx, &expired))

		deleted, err := store.DeleteExpiredIdempotencyRecords(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		got, err := store.GetIdempotencyRecord(ctx, "key-1")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("explicit delete", func(t *testing.T) {
		require.NoError(t, store.DeleteIdempotencyRecord(ctx, "key-1"))
		got, err := store.GetIdempotencyRecord(ctx, "key-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestWithTxRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(store *Store) error {
		if err := store.InsertAccount(ctx, "acct-tx", "Doomed"); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	account, err := db.Store().GetAccount(ctx, "acct-tx")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestWithTxCommit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WithTx(ctx, func(store *Store) error {
		return store.InsertAccount(ctx, "acct-tx", "Kept")
	}))

	account, err := db.Store().GetAccount(ctx, "acct-tx")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "Kept", account.Name)
}
