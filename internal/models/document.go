package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Document is a record in the remote document store. Body is passed through
// verbatim; CreatedAt and UpdatedAt are assigned by the store.
type Document struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewDocument encodes body into a document owned by ownerID.
func NewDocument(id, ownerID string, body any) (Document, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, OwnerID: ownerID, Body: raw}, nil
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Body, v)
}

// Field returns the top-level body field name, or nil when the body is not
// an object or lacks it.
func (d Document) Field(name string) any {
	var m map[string]any
	if err := json.Unmarshal(d.Body, &m); err != nil {
		return nil
	}
	return m[name]
}

// SortDocuments orders docs in place by orderBy. Body fields holding
// RFC 3339 timestamps compare as times, numbers as numbers, anything else
// as strings. The sort is stable.
func SortDocuments(docs []Document, orderBy string, descending bool) {
	less := func(i, j int) bool {
		return compareField(docs[i], docs[j], orderBy) < 0
	}
	if descending {
		less = func(i, j int) bool {
			return compareField(docs[i], docs[j], orderBy) > 0
		}
	}
	sort.SliceStable(docs, less)
}

func compareField(a, b Document, field string) int {
	switch field {
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "", "id":
		return strings.Compare(a.ID, b.ID)
	}
	return compareValues(a.Field(field), b.Field(field))
}

func compareValues(x, y any) int {
	switch xv := x.(type) {
	case float64:
		if yv, ok := y.(float64); ok {
			switch {
			case xv < yv:
				return -1
			case xv > yv:
				return 1
			}
			return 0
		}
	case string:
		if yv, ok := y.(string); ok {
			xt, errX := time.Parse(time.RFC3339Nano, xv)
			yt, errY := time.Parse(time.RFC3339Nano, yv)
			if errX == nil && errY == nil {
				return xt.Compare(yt)
			}
			return strings.Compare(xv, yv)
		}
	case nil:
		if y == nil {
			return 0
		}
		return -1
	}
	if y == nil {
		return 1
	}
	return 0
}
