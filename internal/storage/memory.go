package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftlog/internal/models"
)

type docKey struct{ collection, id string }

type memSession struct {
	userID string
	method string
}

// Memory is an in-process backend with the same semantics as DB. It backs
// development servers and handler tests.
type Memory struct {
	mu       sync.RWMutex
	docs     map[docKey]models.Document
	users    map[string]User   // by id
	logins   map[string]string // login -> id
	sessions map[string]memSession
	now      func() time.Time
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[docKey]models.Document),
		users:    make(map[string]User),
		logins:   make(map[string]string),
		sessions: make(map[string]memSession),
		now:      time.Now,
	}
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() {}

func (m *Memory) UpsertDocument(_ context.Context, collection, id, ownerID string, body json.RawMessage) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := docKey{collection, id}
	now := m.now().UTC()
	d := models.Document{
		ID:        id,
		OwnerID:   ownerID,
		Body:      append(json.RawMessage(nil), body...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := m.docs[k]; ok {
		if prev.OwnerID != ownerID {
			return models.Document{}, ErrNotOwner
		}
		d.CreatedAt = prev.CreatedAt
	}
	m.docs[k] = d
	return d, nil
}

func (m *Memory) QueryDocuments(_ context.Context, collection, ownerID, orderBy, dir string) ([]models.Document, error) {
	field, desc, err := normalizeQuery(orderBy, dir)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	docs := []models.Document{}
	for k, d := range m.docs {
		if k.collection == collection && d.OwnerID == ownerID {
			docs = append(docs, d)
		}
	}
	m.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	models.SortDocuments(docs, field, desc)
	return docs, nil
}

func (m *Memory) DeleteDocument(_ context.Context, collection, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := docKey{collection, id}
	d, ok := m.docs[k]
	if !ok {
		return ErrNotFound
	}
	if d.OwnerID != ownerID {
		return ErrNotOwner
	}
	delete(m.docs, k)
	return nil
}

func (m *Memory) EnsureUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.Login == "" {
		u.ID = uuid.NewString()
		u.Login = "anonymous:" + u.ID
		u.Anonymous = true
	}
	if id, ok := m.logins[u.Login]; ok {
		prev := m.users[id]
		if u.DisplayName != "" {
			prev.DisplayName = u.DisplayName
		}
		if u.AvatarURL != "" {
			prev.AvatarURL = u.AvatarURL
		}
		m.users[id] = prev
		return prev, nil
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.users[u.ID] = u
	m.logins[u.Login] = u.ID
	return u, nil
}

func (m *Memory) CreateSession(_ context.Context, userID, method string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := newToken()
	m.sessions[hashToken(token)] = memSession{userID: userID, method: method}
	return token, nil
}

func (m *Memory) LookupSession(_ context.Context, token string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[hashToken(token)]
	if !ok {
		return models.Session{}, ErrInvalidSession
	}
	u, ok := m.users[s.userID]
	if !ok {
		return models.Session{}, ErrInvalidSession
	}
	return models.Session{
		UID:         u.ID,
		Anonymous:   u.Anonymous,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Method:      s.method,
		Token:       token,
	}, nil
}

func (m *Memory) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, hashToken(token))
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetOwnerStats(_ context.Context, ownerID string) ([]CollectionStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCollection := map[string]*CollectionStat{}
	for k, d := range m.docs {
		if d.OwnerID != ownerID {
			continue
		}
		s, ok := byCollection[k.collection]
		if !ok {
			s = &CollectionStat{Collection: k.collection}
			byCollection[k.collection] = s
		}
		s.Count++
		if s.Earliest == nil || d.CreatedAt.Before(*s.Earliest) {
			t := d.CreatedAt
			s.Earliest = &t
		}
		if s.Latest == nil || d.UpdatedAt.After(*s.Latest) {
			t := d.UpdatedAt
			s.Latest = &t
		}
	}

	result := make([]CollectionStat, 0, len(byCollection))
	for _, s := range byCollection {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Collection < result[j].Collection })
	return result, nil
}
