// Package reconcile owns workout history, personal records and user-added
// exercises across the local store and an optional remote document store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
)

// DefaultSyncBatchLimit caps the workout records one sync pass attempts.
const DefaultSyncBatchLimit = 200

// ErrNotSyncing is returned by operations that need an active session and
// a configured remote.
var ErrNotSyncing = errors.New("no active session with a remote store")

// LocalStore is the durable key/value store. *localstore.Store satisfies it.
type LocalStore interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Remove(key string) error
}

// SessionSource reports the signed-in session. *identity.Provider satisfies it.
type SessionSource interface {
	CurrentSession() *models.Session
}

// Connectivity reports whether the remote store is reachable.
// *remote.Probe satisfies it.
type Connectivity interface {
	Online() bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// Options tune a Manager. The zero value is usable.
type Options struct {
	// SyncBatchLimit caps the records attempted by one PushLocalToRemote.
	SyncBatchLimit int
	// AsyncMirror runs remote mirrors of writes in the background.
	AsyncMirror bool
	// MirrorTimeout bounds each mirror of a write.
	MirrorTimeout time.Duration
	// SyncAnonymous mirrors anonymous sessions too.
	SyncAnonymous bool
	Connectivity  Connectivity
	Logger        *slog.Logger
	Now           func() time.Time
}

// Manager is the reconciliation core. It is safe for concurrent use.
type Manager struct {
	store    LocalStore
	remote   remote.Store
	sessions SessionSource
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	// mu serializes read-modify-write cycles on local datasets. Remote calls
	// never run under it.
	mu sync.Mutex
	wg sync.WaitGroup
}

// New creates a Manager. rem and sessions may be nil for a local-only build.
func New(store LocalStore, rem remote.Store, sessions SessionSource, opts Options) *Manager {
	if opts.SyncBatchLimit <= 0 {
		opts.SyncBatchLimit = DefaultSyncBatchLimit
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = 10 * time.Second
	}
	if opts.Connectivity == nil {
		opts.Connectivity = alwaysOnline{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:    store,
		remote:   rem,
		sessions: sessions,
		opts:     opts,
		log:      opts.Logger,
		now:      opts.Now,
	}
}

// Close waits for background mirrors and live views to finish.
func (m *Manager) Close() {
	m.wg.Wait()
}

// owner returns the remote owner id when a session is active.
func (m *Manager) owner() (string, bool) {
	if m.remote == nil || m.sessions == nil {
		return "", false
	}
	s := m.sessions.CurrentSession()
	if s == nil || s.UID == "" {
		return "", false
	}
	if s.Anonymous && !m.opts.SyncAnonymous {
		return "", false
	}
	return s.UID, true
}

// reachable returns the owner when a session is active and the remote is online.
func (m *Manager) reachable() (string, bool) {
	owner, ok := m.owner()
	if !ok || !m.opts.Connectivity.Online() {
		return "", false
	}
	return owner, true
}

// mirror runs fn against the remote, inline or in the background.
func (m *Manager) mirror(ctx context.Context, fn func(ctx context.Context)) {
	if !m.opts.AsyncMirror {
		ctx, cancel := context.WithTimeout(ctx, m.opts.MirrorTimeout)
		defer cancel()
		fn(ctx)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.MirrorTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (m *Manager) loadHistory() ([]models.WorkoutSet, error) {
	var h []models.WorkoutSet
	if _, err := m.store.Get(models.KeyWorkoutHistory, &h); err != nil {
		return nil, fmt.Errorf("loading workout history: %w", err)
	}
	return h, nil
}

func (m *Manager) saveHistory(h []models.WorkoutSet) error {
	if h == nil {
		h = []models.WorkoutSet{}
	}
	if err := m.store.Set(models.KeyWorkoutHistory, h); err != nil {
		return fmt.Errorf("saving workout history: %w", err)
	}
	return nil
}

func (m *Manager) loadPersonalRecords() (map[string]models.PersonalRecord, error) {
	prs := map[string]models.PersonalRecord{}
	if _, err := m.store.Get(models.KeyPersonalRecords, &prs); err != nil {
		return nil, fmt.Errorf("loading personal records: %w", err)
	}
	if prs == nil {
		prs = map[string]models.PersonalRecord{}
	}
	return prs, nil
}

func (m *Manager) savePersonalRecords(prs map[string]models.PersonalRecord) error {
	if err := m.store.Set(models.KeyPersonalRecords, prs); err != nil {
		return fmt.Errorf("saving personal records: %w", err)
	}
	return nil
}
