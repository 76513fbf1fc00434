package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/liftlog/internal/models"
)

// Only token hashes are persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() string {
	return uuid.NewString() + uuid.NewString()[:8]
}

// CreateSession issues a bearer token for userID.
func (db *DB) CreateSession(ctx context.Context, userID, method string) (string, error) {
	token := newToken()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, method) VALUES ($1, $2, $3)`,
		hashToken(token), userID, method)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// LookupSession resolves a bearer token to its session.
func (db *DB) LookupSession(ctx context.Context, token string) (models.Session, error) {
	s := models.Session{Token: token}
	err := db.Pool.QueryRow(ctx, `
		SELECT u.id, u.anonymous, u.display_name, u.avatar_url, s.method
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`, hashToken(token)).Scan(&s.UID, &s.Anonymous, &s.DisplayName, &s.AvatarURL, &s.Method)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Session{}, ErrInvalidSession
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("looking up session: %w", err)
	}
	return s, nil
}

// DeleteSession revokes a token. Unknown tokens are ignored.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hashToken(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
