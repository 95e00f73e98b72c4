package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"omnidesk/internal/auth"
	"omnidesk/internal/database"
	"omnidesk/internal/metrics"
	"omnidesk/internal/models"
	"omnidesk/internal/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client-to-server event names.
const (
	eventAuthenticate      = "authenticate"
	eventJoinConversation  = "join_conversation"
	eventLeaveConversation = "leave_conversation"
	eventTyping            = "typing"
	eventMarkRead          = "mark_read"
	eventUpdateStatus      = "presence:update_status"
	eventHeartbeat         = "heartbeat"
)

// Server-to-client event names for direct replies. Broadcast event names
// live in the service package next to their payloads.
const (
	eventAuthenticated      = "authenticated"
	eventJoinedConversation = "joined_conversation"
	eventMarkedRead         = "marked_read"
	eventHeartbeatAck       = "heartbeat:ack"
)

// GatewayConfig carries the websocket tunables.
type GatewayConfig struct {
	AuthGrace      time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
	ReadLimitBytes int64
}

// Gateway upgrades websocket connections and speaks the realtime protocol:
// an authenticate frame within the grace period, then room joins, typing,
// read receipts, presence updates, and heartbeats.
type Gateway struct {
	hub      *Hub
	verifier *auth.TokenVerifier
	db       *database.Database
	presence *service.PresenceService
	receipts *service.ReceiptService
	logger   *logrus.Logger
	cfg      GatewayConfig
}

func NewGateway(hub *Hub, verifier *auth.TokenVerifier, db *database.Database, presence *service.PresenceService, receipts *service.ReceiptService, logger *logrus.Logger, cfg GatewayConfig) *Gateway {
	return &Gateway{
		hub:      hub,
		verifier: verifier,
		db:       db,
		presence: presence,
		receipts: receipts,
		logger:   logger,
		cfg:      cfg,
	}
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type markReadPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type updateStatusPayload struct {
	Status string `json:"status"`
}

// HandleWebSocket upgrades the connection and runs the read loop until the
// client disconnects.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	conn.SetReadLimit(g.cfg.ReadLimitBytes)

	client := newClient(conn, uuid.NewString(), g.cfg.SendBufferSize, g.cfg.WriteTimeout, g.logger)
	ctx := r.Context()
	go client.writePump(ctx)

	claims, err := g.authenticate(ctx, conn, client)
	if err != nil {
		g.logger.WithError(err).Debug("Websocket authentication failed")
		client.close(websocket.StatusPolicyViolation, "authentication required")
		return
	}

	client.accountID = claims.AccountID
	client.userID = claims.UserID
	g.hub.Register(client)
	metrics.IncrementCounter("websocket_connections_total", nil, "Accepted websocket connections")

	if err := g.presence.SetOnline(ctx, claims.UserID, claims.AccountID, client.socketID); err != nil {
		g.logger.WithError(err).Error("Failed to set presence online")
	}

	client.sendFrame(eventAuthenticated, map[string]string{
		"userId":    claims.UserID,
		"accountId": claims.AccountID,
		"socketId":  client.socketID,
	})

	g.logger.WithFields(logrus.Fields{
		"socket_id":  client.socketID,
		"user_id":    claims.UserID,
		"account_id": claims.AccountID,
	}).Info("Websocket client authenticated")

	g.readLoop(ctx, conn, client)

	g.hub.Unregister(client)
	client.close(websocket.StatusNormalClosure, "")

	// The request context is gone once the read loop exits, so the
	// disconnect cleanup gets its own deadline.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.presence.SetOffline(cleanupCtx, claims.UserID); err != nil {
		g.logger.WithError(err).Error("Failed to set presence offline on disconnect")
	}
}

// authenticate waits for the first frame, which must be an authenticate
// event carrying a valid token, within the configured grace period.
func (g *Gateway) authenticate(ctx context.Context, conn *websocket.Conn, client *Client) (*auth.Claims, error) {
	authCtx, cancel := context.WithTimeout(ctx, g.cfg.AuthGrace)
	defer cancel()

	var frame inboundFrame
	if err := wsjson.Read(authCtx, conn, &frame); err != nil {
		return nil, errors.New("no authenticate frame before deadline")
	}
	if frame.Event != eventAuthenticate {
		client.sendError("first frame must be authenticate")
		return nil, errors.New("first frame was " + frame.Event)
	}

	var payload authenticatePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil || payload.Token == "" {
		client.sendError("authenticate requires a token")
		return nil, errors.New("malformed authenticate payload")
	}

	claims, err := g.verifier.Parse(payload.Token)
	if err != nil {
		client.sendError("invalid token")
		return nil, err
	}
	return claims, nil
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				g.logger.WithField("socket_id", client.socketID).Debug("Websocket closed by client")
			}
			return
		}
		g.dispatch(ctx, client, frame)
	}
}

func (g *Gateway) dispatch(ctx context.Context, client *Client, frame inboundFrame) {
	switch frame.Event {
	case eventJoinConversation:
		g.handleJoin(ctx, client, frame.Data)
	case eventLeaveConversation:
		g.handleLeave(ctx, client, frame.Data)
	case eventTyping:
		g.handleTyping(ctx, client, frame.Data)
	case eventMarkRead:
		g.handleMarkRead(ctx, client, frame.Data)
	case eventUpdateStatus:
		g.handleUpdateStatus(ctx, client, frame.Data)
	case eventHeartbeat:
		g.handleHeartbeat(ctx, client)
	case eventAuthenticate:
		client.sendError("already authenticated")
	default:
		client.sendError("unknown event: " + frame.Event)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, client *Client, data json.RawMessage) {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		client.sendError("join_conversation requires conversationId")
		return
	}

	owner, err := g.db.Store().GetConversationAccount(ctx, payload.ConversationID)
	if err != nil {
		g.logger.WithError(err).Error("Conversation lookup failed on join")
		client.sendError("internal error")
		return
	}
	if owner == "" || owner != client.accountID {
		client.sendError("conversation not found")
		return
	}

	g.hub.JoinConversation(payload.ConversationID, client)
	if err := g.presence.SetCurrentConversation(ctx, client.userID, &payload.ConversationID); err != nil {
		g.logger.WithError(err).Warn("Failed to record current conversation")
	}
	client.sendFrame(eventJoinedConversation, conversationPayload{ConversationID: payload.ConversationID})
}

func (g *Gateway) handleLeave(ctx context.Context, client *Client, data json.RawMessage) {
	var payload conversationPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		client.sendError("leave_conversation requires conversationId")
		return
	}

	g.hub.LeaveConversation(payload.ConversationID, client)
	if err := g.presence.SetCurrentConversation(ctx, client.userID, nil); err != nil {
		g.logger.WithError(err).Warn("Failed to clear current conversation")
	}
}

func (g *Gateway) handleTyping(ctx context.Context, client *Client, data json.RawMessage) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		client.sendError("typing requires conversationId")
		return
	}

	if err := g.presence.SetTyping(ctx, client.userID, payload.ConversationID, payload.IsTyping); err != nil {
		g.logger.WithError(err).Warn("Failed to record typing state")
	}
}

func (g *Gateway) handleMarkRead(ctx context.Context, client *Client, data json.RawMessage) {
	var payload markReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" || payload.MessageID == "" {
		client.sendError("mark_read requires conversationId and messageId")
		return
	}

	unread, err := g.receipts.MarkRead(ctx, client.accountID, client.userID, payload.ConversationID, payload.MessageID)
	if err != nil {
		client.sendError("mark_read failed: " + err.Error())
		return
	}

	client.sendFrame(eventMarkedRead, map[string]interface{}{
		"conversationId": payload.ConversationID,
		"messageId":      payload.MessageID,
		"unreadCount":    unread,
	})
}

func (g *Gateway) handleUpdateStatus(ctx context.Context, client *Client, data json.RawMessage) {
	var payload updateStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Status == "" {
		client.sendError("presence:update_status requires status")
		return
	}

	if err := g.presence.SetStatus(ctx, client.userID, models.PresenceStatus(payload.Status)); err != nil {
		client.sendError("status update failed: " + err.Error())
	}
}

func (g *Gateway) handleHeartbeat(ctx context.Context, client *Client) {
	if err := g.presence.Heartbeat(ctx, client.userID); err != nil {
		g.logger.WithError(err).Warn("Heartbeat persistence failed")
	}
	client.sendFrame(eventHeartbeatAck, map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
