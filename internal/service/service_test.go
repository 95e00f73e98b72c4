package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"omnidesk/internal/database"
	"omnidesk/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Shared fixtures for the service tests: a file-backed test database, a
// broadcaster that records every event, and a settable clock.

func newTestDB(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type recordedEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) ToConversation(conversationID, event string, payload interface{}) {
	b.record("conversation:"+conversationID, event, payload)
}

func (b *recordingBroadcaster) ToAccount(accountID, event string, payload interface{}) {
	b.record("account:"+accountID, event, payload)
}

func (b *recordingBroadcaster) record(room, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: room, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) all() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

func (b *recordingBroadcaster) count(room, event string) int {
	n := 0
	for _, e := range b.all() {
		if e.Room == room && e.Event == event {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seedTenant provisions an account with a default whatsapp inbox.
func seedTenant(t *testing.T, db *database.Database) *models.Inbox {
	t.Helper()
	ctx := context.Background()
	store := db.Store()

	require.NoError(t, store.InsertAccount(ctx, "acct-1", "Acme Support"))
	inbox := &models.Inbox{
		ID:         "inbox-1",
		AccountID:  "acct-1",
		Channel:    "whatsapp",
		ExternalID: "phone-number-1",
		Name:       "Main Line",
		IsDefault:  true,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.InsertInbox(ctx, inbox))
	return inbox
}

// seedThread adds a contact and one conversation under the tenant inbox.
func seedThread(t *testing.T, db *database.Database, status models.ConversationStatus, at time.Time) (*models.Contact, *models.Conversation) {
	t.Helper()
	ctx := context.Background()
	store := db.Store()

	contact := &models.Contact{
		ID:        "contact-1",
		AccountID: "acct-1",
		InboxID:   "inbox-1",
		Phone:     "15551234567",
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, store.InsertContact(ctx, contact))

	conv := &models.Conversation{
		ID:             "conv-1",
		InboxID:        "inbox-1",
		ContactID:      "contact-1",
		Status:         status,
		LastActivityAt: at,
		CreatedAt:      at,
	}
	require.NoError(t, store.InsertConversation(ctx, conv))
	return contact, conv
}

func strPtr(s string) *string { return &s }
