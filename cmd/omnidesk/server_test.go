package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"omnidesk/internal/auth"
	"omnidesk/internal/channels"
	"omnidesk/internal/database"
	"omnidesk/internal/models"
	"omnidesk/internal/realtime"
	"omnidesk/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "webhook-secret"

const whatsappTestPayload = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "entry-1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"phone_number_id": "phone-number-1"},
				"contacts": [{"wa_id": "15551234567", "profile": {"name": "Ada Lovelace"}}],
				"messages": [{
					"id": "wamid.abc123",
					"from": "15551234567",
					"timestamp": "1700000000",
					"type": "text",
					"text": {"body": "hello there"}
				}]
			}
		}]
	}]
}`

// newTestServer wires a full server against a seeded tenant database.
func newTestServer(t *testing.T) (*Server, *auth.TokenVerifier) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	store := db.Store()
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.InsertAccount(ctx, "acct-1", "Acme Support"))
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
		Phone:     "15550009999",
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

	cfg := &models.Config{
		Channels: []models.ChannelConfig{{
			Name:          "whatsapp",
			VerifyToken:   "verify-token",
			WebhookSecret: testWebhookSecret,
		}},
		Idempotency: models.IdempotencyConfig{TTLHours: 24},
	}

	registry, err := channels.NewRegistry(cfg.Channels)
	require.NoError(t, err)

	verifier := auth.NewTokenVerifier("test-secret")
	hub := realtime.NewHub(logger)
	presence := service.NewPresenceService(db, logger, hub, 2*time.Minute)
	receipts := service.NewReceiptService(db, logger, hub)
	gateway := realtime.NewGateway(hub, verifier, db, presence, receipts, logger, realtime.GatewayConfig{
		AuthGrace:      time.Second,
		WriteTimeout:   time.Second,
		SendBufferSize: 16,
		ReadLimitBytes: 32 * 1024,
	})
	ingest := service.NewIngestService(db, logger, hub)
	conversations := service.NewConversationService(db, logger, hub)

	return NewServer(cfg, db, registry, verifier, ingest, conversations, gateway, logger), verifier
}

func signBody(body string) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerificationRoute(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("valid token echoes challenge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=challenge-42", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "challenge-42", rec.Body.String())
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=challenge-42", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unconfigured channel is not routed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhooks/messenger", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWebhookIngestRoute(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("signed payload is ingested", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(whatsappTestPayload))
		req.Header.Set("X-Hub-Signature-256", signBody(whatsappTestPayload))
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			OK      bool `json:"ok"`
			Stored  int  `json:"stored"`
			Skipped int  `json:"skipped"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, 1, resp.Stored)
		assert.Equal(t, 0, resp.Skipped)
	})

	t.Run("bad signature rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(whatsappTestPayload))
		req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		body := `{"entry": "not-an-array"}`
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", signBody(body))
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConversationStatusRoute(t *testing.T) {
	server, verifier := newTestServer(t)
	token, err := verifier.Sign("acct-1", "user-1", time.Hour)
	require.NoError(t, err)

	t.Run("requires authentication", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/conversations/conv-1/status", strings.NewReader(`{"status":"CLOSED"}`))
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("closes the conversation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/conversations/conv-1/status", strings.NewReader(`{"status":"CLOSED"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var conv models.Conversation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
		assert.Equal(t, models.ConversationClosed, conv.Status)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/conversations/conv-1/status", strings.NewReader(`{"status":"ARCHIVED"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSendMessageRoute(t *testing.T) {
	server, verifier := newTestServer(t)
	token, err := verifier.Sign("acct-1", "user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/conversations/conv-1/messages", strings.NewReader(`{"text":"on my way"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, models.DirectionOutbound, msg.Direction)
	require.NotNil(t, msg.Text)
	assert.Equal(t, "on my way", *msg.Text)
}
