package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"omnidesk/internal/database"
	"omnidesk/internal/metrics"
	"omnidesk/internal/models"

	"github.com/sirupsen/logrus"
)

// IdempotencyHeader is the client-supplied key for mutating requests.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyMiddleware replays stored responses for repeated mutating
// requests carrying the same Idempotency-Key. Requests without a key pass
// through untouched. A key reused with a different account, endpoint, or
// method is a conflict.
//
// Every completed response is recorded, failures included, so a replay
// always returns the first outcome verbatim instead of re-executing the
// handler.
func IdempotencyMiddleware(db *database.Database, ttl time.Duration, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			store := db.Store()
			now := time.Now().UTC()

			record, err := store.GetIdempotencyRecord(ctx, key)
			if err != nil {
				logger.WithError(err).Error("Idempotency lookup failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			if record != nil && now.After(record.ExpiresAt) {
				if err := store.DeleteIdempotencyRecord(ctx, key); err != nil {
					logger.WithError(err).Warn("Failed to delete expired idempotency record")
				}
				record = nil
			}

			if record != nil {
				if record.AccountID != claims.AccountID || record.Endpoint != r.URL.Path || record.Method != r.Method {
					metrics.IncrementCounter("idempotency_conflicts_total", nil, "Idempotency key reuse conflicts")
					http.Error(w, "idempotency key already used for a different request", http.StatusConflict)
					return
				}

				metrics.IncrementCounter("idempotency_replays_total", nil, "Replayed idempotent responses")
				logger.WithFields(logrus.Fields{
					"key":      key,
					"endpoint": record.Endpoint,
				}).Info("Replaying stored idempotent response")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(record.StatusCode)
				if _, err := w.Write([]byte(record.ResponseBody)); err != nil {
					logger.WithError(err).Warn("Failed to write replayed response")
				}
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			err = store.InsertIdempotencyRecord(ctx, &models.IdempotencyRecord{
				Key:          key,
				AccountID:    claims.AccountID,
				Endpoint:     r.URL.Path,
				Method:       r.Method,
				RequestBody:  string(body),
				StatusCode:   recorder.statusCode,
				ResponseBody: recorder.body.String(),
				ExpiresAt:    now.Add(ttl),
				CreatedAt:    now,
			})
			if err != nil {
				// A concurrent request may have stored the key first; the
				// response already went out, so only log it.
				logger.WithError(err).WithField("key", key).Warn("Failed to store idempotency record")
			}
		})
	}
}

// responseRecorder tees the response so it can be stored for replay.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rr *responseRecorder) WriteHeader(statusCode int) {
	rr.statusCode = statusCode
	rr.ResponseWriter.WriteHeader(statusCode)
}

func (rr *responseRecorder) Write(data []byte) (int, error) {
	rr.body.Write(data)
	return rr.ResponseWriter.Write(data)
}
