package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/claude/liftlog/internal/models"
)

// UpsertDocument creates or replaces a document. created_at survives
// replacement. Replacing a document of another owner returns ErrNotOwner.
func (db *DB) UpsertDocument(ctx context.Context, collection, id, ownerID string, body json.RawMessage) (models.Document, error) {
	var d models.Document
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO documents (collection, id, owner_id, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE
			SET body = EXCLUDED.body, updated_at = NOW()
			WHERE documents.owner_id = EXCLUDED.owner_id
		RETURNING id, owner_id, body, created_at, updated_at
	`, collection, id, ownerID, []byte(body)).Scan(&d.ID, &d.OwnerID, &d.Body, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotOwner
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("upserting %s/%s: %w", collection, id, err)
	}
	return d, nil
}

// QueryDocuments returns the documents of ownerID in collection.
func (db *DB) QueryDocuments(ctx context.Context, collection, ownerID, orderBy, dir string) ([]models.Document, error) {
	order, field, err := orderClause(orderBy, dir)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, owner_id, body, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND owner_id = $2
		ORDER BY ` + order
	args := []any{collection, ownerID}
	if field != "" {
		args = append(args, field)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Body, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document owned by ownerID.
func (db *DB) DeleteDocument(ctx context.Context, collection, id, ownerID string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2 AND owner_id = $3`,
		collection, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking %s/%s: %w", collection, id, err)
	}
	if exists {
		return ErrNotOwner
	}
	return ErrNotFound
}
