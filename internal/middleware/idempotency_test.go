package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"omnidesk/internal/auth"
	"omnidesk/internal/database"
	"omnidesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func authedRequest(method, path, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	claims := &auth.Claims{AccountID: "acct-1", UserID: "user-1"}
	return req.WithContext(WithClaims(req.Context(), claims))
}

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
}

func TestIdempotencyPassThroughWithoutKey(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(countingHandler(&calls, http.StatusCreated, `{"id":"m1"}`))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(countingHandler(&calls, http.StatusCreated, `{"id":"m1"}`))

	first := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	req = authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	handler.ServeHTTP(second, req)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestIdempotencyConflictOnMismatch(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(countingHandler(&calls, http.StatusCreated, `{"id":"m1"}`))

	req := authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, 1, calls)

	t.Run("different endpoint", func(t *testing.T) {
		req := authedRequest(http.MethodPost, "/conversations/c2/messages", `{"text":"hi"}`)
		req.Header.Set(IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("different method", func(t *testing.T) {
		req := authedRequest(http.MethodPatch, "/conversations/c1/messages", `{"text":"hi"}`)
		req.Header.Set(IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("different account", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", strings.NewReader(`{"text":"hi"}`))
		req = req.WithContext(WithClaims(req.Context(), &auth.Claims{AccountID: "other-acct", UserID: "user-2"}))
		req.Header.Set(IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	assert.Equal(t, 1, calls)
}

func TestIdempotencyRequiresAuthentication(t *testing.T) {
	db := newTestDB(t)
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", nil)
	req.Header.Set(IdempotencyHeader, "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdempotencyReplaysFailureResponses(t *testing.T) {
	db := newTestDB(t)
	calls := 0
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprintf(w, `{"error":"attempt %d"}`, calls)
	}))

	first := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":""}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	handler.ServeHTTP(first, req)
	require.Equal(t, http.StatusUnprocessableEntity, first.Code)

	record, err := db.Store().GetIdempotencyRecord(context.Background(), "key-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, http.StatusUnprocessableEntity, record.StatusCode)

	second := httptest.NewRecorder()
	req = authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":""}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	handler.ServeHTTP(second, req)

	// The handler ran exactly once; the retry gets the stored outcome
	// byte for byte.
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestIdempotencyExpiredRecordIsReplaced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.Store().InsertIdempotencyRecord(ctx, &models.IdempotencyRecord{
		Key:          "key-1",
		AccountID:    "acct-1",
		Endpoint:     "/conversations/c1/messages",
		Method:       http.MethodPost,
		StatusCode:   http.StatusCreated,
		ResponseBody: `{"id":"stale"}`,
		ExpiresAt:    now.Add(-time.Hour),
		CreatedAt:    now.Add(-25 * time.Hour),
	}))

	calls := 0
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(countingHandler(&calls, http.StatusCreated, `{"id":"fresh"}`))

	req := authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 1, calls)
	assert.Equal(t, `{"id":"fresh"}`, rec.Body.String())

	record, err := db.Store().GetIdempotencyRecord(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, `{"id":"fresh"}`, record.ResponseBody)
	assert.True(t, record.ExpiresAt.After(now))
}

func TestIdempotencyHandlerSeesOriginalBody(t *testing.T) {
	db := newTestDB(t)
	var got string
	handler := IdempotencyMiddleware(db, time.Hour, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	req := authedRequest(http.MethodPost, "/conversations/c1/messages", `{"text":"hello"}`)
	req.Header.Set(IdempotencyHeader, "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, `{"text":"hello"}`, got)
}
