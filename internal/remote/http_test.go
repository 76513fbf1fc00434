package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/models"
)

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c := NewHTTPClient(ts.URL+"/", StaticToken("tok"))
	c.backoff = time.Millisecond
	return c
}

func TestHTTPUpsert(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/collections/workoutRecords/docs/1_abc", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ownerId":"u1","body":{"name":"Squat"}}`, string(body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))

	d := models.Document{OwnerID: "u1", Body: json.RawMessage(`{"name":"Squat"}`)}
	require.NoError(t, c.Upsert(context.Background(), "workoutRecords", "1_abc", d))
}

// TestHTTPClientErrorsAreNotRetried verifies 4xx responses map to sentinel
// errors after a single attempt.
func TestHTTPClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"not your document"}`))
	}))

	err := c.Delete(context.Background(), "c", "a")
	assert.ErrorIs(t, err, ErrPermission)
	assert.Contains(t, err.Error(), "not your document")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := c.Delete(context.Background(), "c", "a")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPTransportFailure(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", nil)
	c.backoff = time.Millisecond
	err := c.Delete(context.Background(), "c", "a")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Error(t, c.Ping(context.Background()))
}

func TestHTTPQueryByOwner(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections/personalRecords/docs", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "u1", q.Get("owner"))
		assert.Equal(t, "createdAt", q.Get("orderBy"))
		assert.Equal(t, "desc", q.Get("dir"))
		_ = json.NewEncoder(w).Encode([]models.Document{
			{ID: "u1_Squat", OwnerID: "u1", Body: json.RawMessage(`{"oneRM":117}`)},
		})
	}))

	docs, err := c.QueryByOwner(context.Background(), "personalRecords", "u1", "createdAt", Desc)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1_Squat", docs[0].ID)
}

func TestHTTPPing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	assert.NoError(t, c.Ping(context.Background()))
}

func TestHTTPSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections/workoutRecords/subscribe", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("owner"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(StreamMessage{Type: "snapshot", Documents: []models.Document{{ID: "a", OwnerID: "u1"}}})
		_ = conn.WriteJSON(StreamMessage{Type: "error", Error: "ignored"})
		_ = conn.WriteJSON(StreamMessage{Type: "snapshot", Documents: []models.Document{{ID: "a"}, {ID: "b"}}})
		_, _, _ = conn.ReadMessage()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Subscribe(ctx, "workoutRecords", "u1")
	require.NoError(t, err)

	assert.Len(t, <-ch, 1)
	assert.Len(t, <-ch, 2)

	cancel()
	for range ch {
	}
}

func TestStatusErrorMapping(t *testing.T) {
	assert.ErrorIs(t, statusError("x", 401, nil), ErrPermission)
	assert.ErrorIs(t, statusError("x", 412, nil), ErrPermission)
	assert.ErrorIs(t, statusError("x", 404, nil), ErrNotFound)
	assert.ErrorIs(t, statusError("x", 400, nil), ErrInvalid)
	assert.ErrorIs(t, statusError("x", 503, nil), ErrUnavailable)
}
