package storage

import (
	"context"
	"fmt"
	"time"
)

// CollectionStat summarizes one collection of an owner's documents.
type CollectionStat struct {
	Collection string     `json:"collection"`
	Count      int64      `json:"count"`
	Earliest   *time.Time `json:"earliest"`
	Latest     *time.Time `json:"latest"`
}

// GetOwnerStats returns per-collection document counts for ownerID.
func (db *DB) GetOwnerStats(ctx context.Context, ownerID string) ([]CollectionStat, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT collection, COUNT(*), MIN(created_at), MAX(updated_at)
		 FROM documents
		 WHERE owner_id = $1
		 GROUP BY collection
		 ORDER BY collection`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying owner stats: %w", err)
	}
	defer rows.Close()

	result := []CollectionStat{}
	for rows.Next() {
		var s CollectionStat
		if err := rows.Scan(&s.Collection, &s.Count, &s.Earliest, &s.Latest); err != nil {
			return nil, fmt.Errorf("scanning owner stat: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
