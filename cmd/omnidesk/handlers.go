package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"omnidesk/internal/channels"
	"omnidesk/internal/constants"
	apperrors "omnidesk/internal/errors"
	"omnidesk/internal/middleware"
	"omnidesk/internal/models"

	"github.com/gorilla/mux"
)

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleWebhookVerification answers the provider's subscription handshake:
// echo hub.challenge when the verify token matches, reject otherwise.
func (s *Server) handleWebhookVerification(connector channels.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		mode := query.Get("hub.mode")
		token := query.Get("hub.verify_token")
		challenge := query.Get("hub.challenge")

		if !connector.VerifySubscription(mode, token) {
			s.logger.WithField("channel", connector.Channel()).Warn("Webhook verification rejected")
			http.Error(w, "verification failed", http.StatusForbidden)
			return
		}

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			s.logger.WithError(err).Warn("Failed to write challenge response")
		}
	}
}

// handleWebhook verifies, normalizes, and ingests one provider callback.
// Providers retry on non-2xx, so anything past signature and payload
// validation answers 200 even when individual events fail.
func (s *Server) handleWebhook(connector channels.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, constants.DefaultMaxWebhookBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		if err := connector.VerifySignature(r, body); err != nil {
			s.logger.WithError(err).WithField("channel", connector.Channel()).Warn("Webhook signature rejected")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		events, err := connector.Normalize(body)
		if err != nil {
			s.logger.WithError(err).WithField("channel", connector.Channel()).Warn("Webhook payload rejected")
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}

		result, err := s.ingest.Ingest(r.Context(), connector.Channel(), events)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"stored":  result.Stored,
			"skipped": result.Skipped,
		})
	}
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		var req setStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		conversationID := mux.Vars(r)["id"]
		conv, err := s.conversations.SetStatus(r.Context(), claims.AccountID, conversationID, models.ConversationStatus(req.Status))
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusOK, conv)
	}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		conversationID := mux.Vars(r)["id"]
		msg, err := s.conversations.SendMessage(r.Context(), claims.AccountID, claims.UserID, conversationID, req.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := apperrors.GetUserMessage(err)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		message = "internal error"
	}

	if status >= 500 {
		s.logger.WithError(err).Error("Request failed")
	} else {
		s.logger.WithError(err).Warn("Request rejected")
	}

	s.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  string(apperrors.GetCode(err)),
	})
}
