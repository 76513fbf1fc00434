// Package identity tracks the signed-in session of the client and signs in
// against liftlog-server, or locally when no server is configured.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
)

// Method is a sign-in method.
type Method string

const (
	MethodAnonymous Method = "anonymous"
	MethodTailscale Method = "tailscale"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodAnonymous, MethodTailscale:
		return m, nil
	}
	return "", &Error{Code: CodeConfigurationNotFound, Err: fmt.Errorf("unknown sign-in method %q", s)}
}

// Authenticator issues and revokes sessions.
type Authenticator interface {
	SignIn(ctx context.Context, method string) (token string, s models.Session, err error)
	SignOut(ctx context.Context, token string) error
}

// SessionChecker is implemented by authenticators that can confirm a
// cached token is still valid.
type SessionChecker interface {
	Session(ctx context.Context, token string) (models.Session, error)
}

var (
	_ Authenticator  = (*remote.HTTPClient)(nil)
	_ SessionChecker = (*remote.HTTPClient)(nil)
	_ Authenticator  = LocalAuth{}
)

// LocalAuth signs in without a server. Only anonymous sessions exist.
type LocalAuth struct{}

func (LocalAuth) SignIn(_ context.Context, method string) (string, models.Session, error) {
	if Method(method) != MethodAnonymous {
		return "", models.Session{}, &Error{
			Code: CodeConfigurationNotFound,
			Err:  fmt.Errorf("%s sign-in needs client.remote_url", method),
		}
	}
	return "", models.Session{UID: "local-" + uuid.NewString(), Anonymous: true}, nil
}

func (LocalAuth) SignOut(context.Context, string) error { return nil }

// Cache persists the session between runs. *localstore.Store satisfies it.
type Cache interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Remove(key string) error
}

// Provider holds the current session.
type Provider struct {
	cache   Cache
	auth    Authenticator
	log     *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	current   *models.Session
	listeners map[int]func(*models.Session)
	next      int
}

// New loads the cached session, if any.
func New(cache Cache, auth Authenticator, log *slog.Logger) (*Provider, error) {
	if auth == nil {
		auth = LocalAuth{}
	}
	p := &Provider{
		cache:     cache,
		auth:      auth,
		log:       log,
		timeout:   15 * time.Second,
		listeners: make(map[int]func(*models.Session)),
	}
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	p.current = s
	return p, nil
}

func (p *Provider) load() (*models.Session, error) {
	var s models.Session
	ok, err := p.cache.Get(models.KeySession, &s)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !ok || s.UID == "" {
		return nil, nil
	}
	return &s, nil
}

// CurrentSession returns a copy of the session, or nil when signed out.
func (p *Provider) CurrentSession() *models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	s := *p.current
	return &s
}

// Token implements remote.TokenSource.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.Token
}

// OnSessionChanged calls fn with the current session now and after every
// change until cancel is called.
func (p *Provider) OnSessionChanged(fn func(*models.Session)) (cancel func()) {
	p.mu.Lock()
	id := p.next
	p.next++
	p.listeners[id] = fn
	p.mu.Unlock()

	fn(p.CurrentSession())
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) set(s *models.Session) {
	p.mu.Lock()
	p.current = s
	fns := make([]func(*models.Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(p.CurrentSession())
	}
}

// SignIn starts a new session with method, replacing any current one.
func (p *Provider) SignIn(ctx context.Context, method Method) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token, s, err := p.auth.SignIn(ctx, string(method))
	if err != nil {
		err = Classify(err)
		p.log.Warn("sign-in failed", "method", method, "error", err)
		return nil, err
	}
	s.Token = token
	if s.Method == "" {
		s.Method = string(method)
	}
	if err := p.cache.Set(models.KeySession, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	p.set(&s)
	p.log.Info("signed in", "user", s.UID, "method", s.Method, "anonymous", s.Anonymous)
	return p.CurrentSession(), nil
}

// SignOut ends the session. The local session is always cleared; a failed
// server revocation is still reported.
func (p *Provider) SignOut(ctx context.Context) error {
	cur := p.CurrentSession()
	if cur == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	revokeErr := p.auth.SignOut(ctx, cur.Token)

	if err := p.cache.Remove(models.KeySession); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	p.set(nil)

	if revokeErr != nil {
		revokeErr = Classify(revokeErr)
		p.log.Warn("sign-out revocation failed", "user", cur.UID, "error", revokeErr)
		return revokeErr
	}
	p.log.Info("signed out", "user", cur.UID)
	return nil
}

// Verify asks the server whether the cached session is still valid and
// drops it when the server refuses it. Network failures keep the session.
func (p *Provider) Verify(ctx context.Context) error {
	checker, ok := p.auth.(SessionChecker)
	cur := p.CurrentSession()
	if !ok || cur == nil || cur.Token == "" {
		return nil
	}

	_, err := checker.Session(ctx, cur.Token)
	if err == nil {
		return nil
	}
	if !errors.Is(err, remote.ErrPermission) {
		return Classify(err)
	}
	p.log.Info("cached session rejected, signing out", "user", cur.UID)
	if err := p.cache.Remove(models.KeySession); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	p.set(nil)
	return nil
}

// Reload re-reads the cached session, picking up sign-ins made by another
// process, and notifies listeners when it changed.
func (p *Provider) Reload() error {
	s, err := p.load()
	if err != nil {
		return err
	}
	cur := p.CurrentSession()
	if sameSession(cur, s) {
		return nil
	}
	p.set(s)
	return nil
}

func sameSession(a, b *models.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
