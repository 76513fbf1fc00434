package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/localstore"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	st, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLocalAnonymousSignIn(t *testing.T) {
	st := openStore(t)
	p, err := New(st, nil, discard())
	require.NoError(t, err)
	assert.Nil(t, p.CurrentSession())

	var seen []*models.Session
	cancel := p.OnSessionChanged(func(s *models.Session) { seen = append(seen, s) })
	defer cancel()
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	s, err := p.SignIn(context.Background(), MethodAnonymous)
	require.NoError(t, err)
	assert.True(t, s.Anonymous)
	assert.NotEmpty(t, s.UID)
	require.Len(t, seen, 2)
	assert.Equal(t, s.UID, seen[1].UID)

	// The session survives a restart.
	again, err := New(st, nil, discard())
	require.NoError(t, err)
	require.NotNil(t, again.CurrentSession())
	assert.Equal(t, s.UID, again.CurrentSession().UID)

	require.NoError(t, p.SignOut(context.Background()))
	assert.Nil(t, p.CurrentSession())
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
}

func TestLocalTailscaleNotConfigured(t *testing.T) {
	p, err := New(openStore(t), nil, discard())
	require.NoError(t, err)

	_, err = p.SignIn(context.Background(), MethodTailscale)
	require.Error(t, err)
	assert.Equal(t, CodeConfigurationNotFound, CodeOf(err))
	assert.Contains(t, Message(err), "not set up")
	assert.Nil(t, p.CurrentSession())
}

func TestServerSignInFlow(t *testing.T) {
	srv := server.New(storage.NewMemory(), nil, discard())
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	st := openStore(t)
	client := remote.NewHTTPClient(ts.URL, nil)
	p, err := New(st, client, discard())
	require.NoError(t, err)

	s, err := p.SignIn(context.Background(), MethodAnonymous)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Token())
	assert.Equal(t, "anonymous", s.Method)
	require.NoError(t, p.Verify(context.Background()))
	assert.NotNil(t, p.CurrentSession())

	_, err = p.SignIn(context.Background(), MethodTailscale)
	assert.Equal(t, CodeConfigurationNotFound, CodeOf(err))
	assert.Equal(t, s.UID, p.CurrentSession().UID, "failed sign-in keeps the previous session")

	token := p.Token()
	require.NoError(t, p.SignOut(context.Background()))
	assert.Empty(t, p.Token())

	_, err = client.Session(context.Background(), token)
	assert.ErrorIs(t, err, remote.ErrPermission)
}

func TestVerifyDropsRevokedSession(t *testing.T) {
	srv := server.New(storage.NewMemory(), nil, discard())
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	client := remote.NewHTTPClient(ts.URL, nil)
	p, err := New(openStore(t), client, discard())
	require.NoError(t, err)
	_, err = p.SignIn(context.Background(), MethodAnonymous)
	require.NoError(t, err)

	require.NoError(t, client.SignOut(context.Background(), p.Token()))
	require.NoError(t, p.Verify(context.Background()))
	assert.Nil(t, p.CurrentSession())
}

func TestReloadPicksUpOtherProcess(t *testing.T) {
	st := openStore(t)
	p, err := New(st, nil, discard())
	require.NoError(t, err)

	var changes int
	cancel := p.OnSessionChanged(func(*models.Session) { changes++ })
	defer cancel()

	require.NoError(t, st.Set(models.KeySession, models.Session{UID: "other", Anonymous: true}))
	require.NoError(t, p.Reload())
	require.NoError(t, p.Reload())
	assert.Equal(t, 2, changes)
	assert.Equal(t, "other", p.CurrentSession().UID)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{context.Canceled, CodeCancelled},
		{fmt.Errorf("dial: %w", context.DeadlineExceeded), CodeNetwork},
		{fmt.Errorf("%w: connection refused", remote.ErrUnavailable), CodeNetwork},
		{fmt.Errorf("%w: configuration-not-found: tailscale", remote.ErrPermission), CodeConfigurationNotFound},
		{fmt.Errorf("%w: forbidden", remote.ErrPermission), CodeRejected},
		{errors.New("boom"), CodeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(Classify(tt.err)), tt.err.Error())
	}
	assert.NoError(t, Classify(nil))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("tailscale")
	require.NoError(t, err)
	assert.Equal(t, MethodTailscale, m)

	_, err = ParseMethod("google")
	assert.Equal(t, CodeConfigurationNotFound, CodeOf(err))
}
