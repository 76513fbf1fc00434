package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// User is an account known to the server.
type User struct {
	ID          string
	Login       string
	DisplayName string
	AvatarURL   string
	Anonymous   bool
}

// EnsureUser finds or creates a user. A user without a login is anonymous
// and always gets a fresh id. Known logins update last_seen and profile.
func (db *DB) EnsureUser(ctx context.Context, u User) (User, error) {
	if u.Login == "" {
		u.ID = uuid.NewString()
		u.Login = "anonymous:" + u.ID
		u.Anonymous = true
	} else if u.ID == "" {
		u.ID = uuid.NewString()
	}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, login, display_name, avatar_url, anonymous)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(),
			    display_name = COALESCE(NULLIF($3, ''), users.display_name),
			    avatar_url = COALESCE(NULLIF($4, ''), users.avatar_url)
		RETURNING id, display_name, avatar_url, anonymous
	`, u.ID, u.Login, u.DisplayName, u.AvatarURL, u.Anonymous).Scan(&u.ID, &u.DisplayName, &u.AvatarURL, &u.Anonymous)
	if err != nil {
		return User{}, fmt.Errorf("ensuring user %s: %w", u.Login, err)
	}
	return u, nil
}
