package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Memory is an in-process Store for tests and offline demos.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]map[string]models.Document
	subs  map[*memorySub]struct{}
	now   func() time.Time
	count int
}

type memorySub struct {
	collection string
	owner      string
	ch         chan []models.Document
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]models.Document),
		subs: make(map[*memorySub]struct{}),
		now:  time.Now,
	}
}

// Upsert implements Store.
func (m *Memory) Upsert(ctx context.Context, collection, id string, doc models.Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if collection == "" || id == "" || doc.OwnerID == "" {
		return fmt.Errorf("%w: collection, id and owner are required", ErrInvalid)
	}

	m.mu.Lock()
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]models.Document)
		m.docs[collection] = coll
	}
	now := m.now().UTC()
	doc.ID = id
	doc.CreatedAt, doc.UpdatedAt = now, now
	if prev, ok := coll[id]; ok {
		if prev.OwnerID != doc.OwnerID {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s/%s belongs to another owner", ErrPermission, collection, id)
		}
		doc.CreatedAt = prev.CreatedAt
	}
	coll[id] = doc
	m.count++
	m.mu.Unlock()

	m.publish(collection, doc.OwnerID)
	return nil
}

// QueryByOwner implements Store.
func (m *Memory) QueryByOwner(ctx context.Context, collection, ownerID, orderBy string, dir Direction) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	docs := m.snapshot(collection, ownerID)
	m.mu.Unlock()

	SortDocuments(docs, orderBy, dir)
	return docs, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.mu.Lock()
	doc, ok := m.docs[collection][id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	delete(m.docs[collection], id)
	m.mu.Unlock()

	m.publish(collection, doc.OwnerID)
	return nil
}

// Subscribe implements Store. Slow readers only ever see the latest snapshot.
func (m *Memory) Subscribe(ctx context.Context, collection, ownerID string) (<-chan []models.Document, error) {
	sub := &memorySub{collection: collection, owner: ownerID, ch: make(chan []models.Document, 1)}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	sub.ch <- sorted(m.snapshot(collection, ownerID))
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, sub)
		close(sub.ch)
		m.mu.Unlock()
	}()
	return sub.ch, nil
}

// Ping implements Pinger.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Writes returns how many upserts succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Len returns the number of documents in collection.
func (m *Memory) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

func (m *Memory) publish(collection, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		if sub.collection != collection || sub.owner != ownerID {
			continue
		}
		snap := sorted(m.snapshot(collection, ownerID))
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}

// snapshot must be called with m.mu held. Documents come back in id order
// so later stable sorts are deterministic.
func (m *Memory) snapshot(collection, ownerID string) []models.Document {
	docs := make([]models.Document, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		if d.OwnerID == ownerID {
			docs = append(docs, d)
		}
	}
	SortDocuments(docs, "id", Asc)
	return docs
}

func sorted(docs []models.Document) []models.Document {
	SortDocuments(docs, "createdAt", Desc)
	return docs
}
