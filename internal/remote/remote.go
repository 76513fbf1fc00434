// Package remote defines the document store the client mirrors to, and its
// implementations: the liftlog-server HTTP API, an S3 bucket, and memory.
package remote

import (
	"context"
	"errors"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

var (
	// ErrUnavailable wraps transport failures: the store could not be reached.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrPermission wraps auth, ownership and configuration rejections.
	ErrPermission = errors.New("remote permission denied")
	// ErrNotFound is returned when deleting or reading an unknown document.
	ErrNotFound = errors.New("document not found")
	// ErrInvalid is returned for malformed requests.
	ErrInvalid = errors.New("invalid request")
)

// Direction orders query results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts asc or desc, defaulting to desc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "desc":
		return Desc, nil
	case "asc":
		return Asc, nil
	}
	return "", errors.New("direction must be asc or desc")
}

// Store is the document store contract.
type Store interface {
	// Upsert creates or replaces the document id in collection. The store
	// keeps CreatedAt across replacements.
	Upsert(ctx context.Context, collection, id string, doc models.Document) error
	// QueryByOwner returns every document of ownerID in collection, sorted
	// by orderBy: createdAt, updatedAt, or a top-level body field.
	QueryByOwner(ctx context.Context, collection, ownerID, orderBy string, dir Direction) ([]models.Document, error)
	Delete(ctx context.Context, collection, id string) error
	// Subscribe streams full snapshots of ownerID's documents, starting with
	// the current state. The channel closes when ctx is done.
	Subscribe(ctx context.Context, collection, ownerID string) (<-chan []models.Document, error)
}

// Pinger is implemented by stores that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SortDocuments orders docs in place by orderBy; see models.SortDocuments.
func SortDocuments(docs []models.Document, orderBy string, dir Direction) {
	models.SortDocuments(docs, orderBy, dir == Desc)
}
