package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(storage.NewMemory(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func request(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func signIn(t *testing.T, baseURL, method string) SignInResponse {
	t.Helper()
	resp := request(t, http.MethodPost, baseURL+"/api/v1/auth/signin", "", map[string]string{"method": method})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out SignInResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	_, ts := testServer(t)
	resp := request(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnonymousSignInAndSession(t *testing.T) {
	_, ts := testServer(t)

	in := signIn(t, ts.URL, MethodAnonymous)
	assert.NotEmpty(t, in.Token)
	assert.True(t, in.Session.Anonymous)
	assert.NotEmpty(t, in.Session.UID)

	resp := request(t, http.MethodGet, ts.URL+"/api/v1/auth/session", in.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess models.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, in.Session.UID, sess.UID)
	assert.Empty(t, sess.Token)

	resp = request(t, http.MethodPost, ts.URL+"/api/v1/auth/signout", in.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = request(t, http.MethodGet, ts.URL+"/api/v1/auth/session", in.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTailscaleSignInWithoutListener(t *testing.T) {
	_, ts := testServer(t)

	resp := request(t, http.MethodPost, ts.URL+"/api/v1/auth/signin", "", map[string]string{"method": MethodTailscale})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "configuration-not-found")
}

type fakeWhoIs struct {
	resp *apitype.WhoIsResponse
	err  error
}

func (f fakeWhoIs) WhoIs(context.Context, string) (*apitype.WhoIsResponse, error) {
	return f.resp, f.err
}

func TestTailscaleSignIn(t *testing.T) {
	srv, ts := testServer(t)
	srv.SetWhoIs(fakeWhoIs{resp: &apitype.WhoIsResponse{
		UserProfile: &tailcfg.UserProfile{LoginName: "alice@example.com", DisplayName: "Alice"},
	}})

	first := signIn(t, ts.URL, MethodTailscale)
	second := signIn(t, ts.URL, MethodTailscale)
	assert.False(t, first.Session.Anonymous)
	assert.Equal(t, "Alice", first.Session.DisplayName)
	assert.Equal(t, first.Session.UID, second.Session.UID)
	assert.NotEqual(t, first.Token, second.Token)
}

func TestTailscaleSignInRejected(t *testing.T) {
	srv, ts := testServer(t)
	srv.SetWhoIs(fakeWhoIs{err: errors.New("no peer")})

	resp := request(t, http.MethodPost, ts.URL+"/api/v1/auth/signin", "", map[string]string{"method": MethodTailscale})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDocumentsRequireAuth(t *testing.T) {
	_, ts := testServer(t)
	resp := request(t, http.MethodGet, ts.URL+"/api/v1/collections/workoutRecords/docs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = request(t, http.MethodGet, ts.URL+"/api/v1/collections/workoutRecords/docs", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocumentLifecycle(t *testing.T) {
	_, ts := testServer(t)
	alice := signIn(t, ts.URL, MethodAnonymous)
	bob := signIn(t, ts.URL, MethodAnonymous)
	docURL := ts.URL + "/api/v1/collections/workoutRecords/docs/set-1"

	resp := request(t, http.MethodPut, docURL, alice.Token, map[string]any{
		"ownerId": alice.Session.UID,
		"body":    map[string]any{"name": "Bench Press", "weight": 80},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created models.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, alice.Session.UID, created.OwnerID)
	assert.False(t, created.CreatedAt.IsZero())

	// Bob cannot claim Alice's document or write as Alice.
	resp = request(t, http.MethodPut, docURL, bob.Token, map[string]any{"body": map[string]any{}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = request(t, http.MethodPut, docURL, bob.Token, map[string]any{"ownerId": alice.Session.UID, "body": map[string]any{}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = request(t, http.MethodGet, ts.URL+"/api/v1/collections/workoutRecords/docs?owner="+alice.Session.UID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = request(t, http.MethodGet, ts.URL+"/api/v1/collections/workoutRecords/docs?owner="+alice.Session.UID+"&orderBy=weight&dir=asc", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var docs []models.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "set-1", docs[0].ID)

	resp = request(t, http.MethodGet, ts.URL+"/api/v1/collections/workoutRecords/docs?dir=sideways", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = request(t, http.MethodDelete, docURL, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = request(t, http.MethodDelete, docURL, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = request(t, http.MethodDelete, docURL, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocumentIDWithSlash(t *testing.T) {
	_, ts := testServer(t)
	alice := signIn(t, ts.URL, MethodAnonymous)
	id := models.PersonalRecordDocID(alice.Session.UID, "Pull-up/Chin-up")
	docURL := ts.URL + "/api/v1/collections/personalRecords/docs/" + url.PathEscape(id)

	resp := request(t, http.MethodPut, docURL, alice.Token, map[string]any{"body": map[string]any{"oneRM": 90}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created models.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, id, created.ID)

	resp = request(t, http.MethodGet, ts.URL+"/api/v1/collections/personalRecords/docs", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var docs []models.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)

	resp = request(t, http.MethodDelete, docURL, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUpsertRejectsMissingBody(t *testing.T) {
	_, ts := testServer(t)
	alice := signIn(t, ts.URL, MethodAnonymous)

	resp := request(t, http.MethodPut, ts.URL+"/api/v1/collections/workoutRecords/docs/x", alice.Token, map[string]any{"ownerId": alice.Session.UID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidCollectionName(t *testing.T) {
	_, ts := testServer(t)
	alice := signIn(t, ts.URL, MethodAnonymous)

	resp := request(t, http.MethodGet, ts.URL+"/api/v1/collections/9bad/docs", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOwnerStats(t *testing.T) {
	_, ts := testServer(t)
	alice := signIn(t, ts.URL, MethodAnonymous)

	for _, id := range []string{"a", "b"} {
		resp := request(t, http.MethodPut, ts.URL+"/api/v1/collections/workoutRecords/docs/"+id, alice.Token, map[string]any{"body": map[string]any{}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := request(t, http.MethodGet, ts.URL+"/api/v1/stats", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats []storage.CollectionStat
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Len(t, stats, 1)
	assert.EqualValues(t, 2, stats[0].Count)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := testServer(t)
	signIn(t, ts.URL, MethodAnonymous)

	resp := request(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `liftlog_server_sign_ins{method="anonymous"} 1`)
}
