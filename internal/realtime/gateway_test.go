package realtime

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"omnidesk/internal/auth"
	"omnidesk/internal/database"
	"omnidesk/internal/models"
	"omnidesk/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGatewayFixture seeds two tenants where only acct-1 owns conv-1.
func newGatewayFixture(t *testing.T) (*Gateway, *Hub) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	store := db.Store()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.InsertAccount(ctx, "acct-1", "Acme Support"))
	require.NoError(t, store.InsertAccount(ctx, "acct-2", "Globex Support"))
	require.NoError(t, store.InsertInbox(ctx, &models.Inbox{
		ID:         "inbox-1",
		AccountID:  "acct-1",
		Channel:    "whatsapp",
		ExternalID: "phone-number-1",
		IsDefault:  true,
		CreatedAt:  now,
	}))
	require.NoError(t, store.InsertContact(ctx, &models.Contact{
		ID:        "contact-1",
		AccountID: "acct-1",
		InboxID:   "inbox-1",
		Phone:     "15551234567",
		CreatedAt: now,
		UpdatedAt: now,
	}))
	require.NoError(t, store.InsertConversation(ctx, &models.Conversation{
		ID:             "conv-1",
		InboxID:        "inbox-1",
		ContactID:      "contact-1",
		Status:         models.ConversationOpen,
		LastActivityAt: now,
		CreatedAt:      now,
	}))

	logger := testLogger()
	hub := NewHub(logger)
	presence := service.NewPresenceService(db, logger, hub, 2*time.Minute)
	receipts := service.NewReceiptService(db, logger, hub)
	verifier := auth.NewTokenVerifier("test-secret")

	gateway := NewGateway(hub, verifier, db, presence, receipts, logger, GatewayConfig{
		AuthGrace:      time.Second,
		WriteTimeout:   time.Second,
		SendBufferSize: 16,
		ReadLimitBytes: 32 * 1024,
	})
	return gateway, hub
}

func joinFrame(conversationID string) inboundFrame {
	return inboundFrame{
		Event: eventJoinConversation,
		Data:  json.RawMessage(`{"conversationId":"` + conversationID + `"}`),
	}
}

func TestGatewayJoinConversation(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-1", "user-1", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, joinFrame("conv-1"))

	frame := receiveFrame(t, client)
	assert.Equal(t, eventJoinedConversation, frame.Event)
	data := frame.Data.(map[string]interface{})
	assert.Equal(t, "conv-1", data["conversationId"])
	assert.Equal(t, 1, hub.ConversationRoomSize("conv-1"))
}

func TestGatewayJoinRejectsForeignTenant(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-2", "user-9", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, joinFrame("conv-1"))

	frame := receiveFrame(t, client)
	assert.Equal(t, "error", frame.Event)
	data := frame.Data.(map[string]interface{})
	assert.Equal(t, "conversation not found", data["message"])
	assert.Equal(t, 0, hub.ConversationRoomSize("conv-1"))
	assert.False(t, client.joined["conv-1"])
}

func TestGatewayJoinUnknownConversation(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-1", "user-1", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, joinFrame("missing"))

	frame := receiveFrame(t, client)
	assert.Equal(t, "error", frame.Event)
	assert.Equal(t, 0, hub.ConversationRoomSize("missing"))
}

func TestGatewayJoinRequiresConversationID(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-1", "user-1", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, inboundFrame{
		Event: eventJoinConversation,
		Data:  json.RawMessage(`{}`),
	})

	frame := receiveFrame(t, client)
	assert.Equal(t, "error", frame.Event)
}

func TestGatewayLeaveConversation(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-1", "user-1", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, joinFrame("conv-1"))
	receiveFrame(t, client)
	require.Equal(t, 1, hub.ConversationRoomSize("conv-1"))

	gateway.dispatch(context.Background(), client, inboundFrame{
		Event: eventLeaveConversation,
		Data:  json.RawMessage(`{"conversationId":"conv-1"}`),
	})

	assert.Equal(t, 0, hub.ConversationRoomSize("conv-1"))
}

func TestGatewayDispatchUnknownEvent(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-1", "user-1", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, inboundFrame{Event: "subscribe_all"})

	frame := receiveFrame(t, client)
	assert.Equal(t, "error", frame.Event)
	data := frame.Data.(map[string]interface{})
	assert.Contains(t, data["message"], "unknown event")
}

func TestGatewayRejectsSecondAuthenticate(t *testing.T) {
	gateway, hub := newGatewayFixture(t)
	client := testClient("acct-1", "user-1", "sock-1")
	hub.Register(client)

	gateway.dispatch(context.Background(), client, inboundFrame{Event: eventAuthenticate})

	frame := receiveFrame(t, client)
	assert.Equal(t, "error", frame.Event)
	data := frame.Data.(map[string]interface{})
	assert.Equal(t, "already authenticated", data["message"])
}
