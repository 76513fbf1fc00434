package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/claude/liftlog/internal/models"
)

// SignIn asks the server for a new session using method.
func (c *HTTPClient) SignIn(ctx context.Context, method string) (string, models.Session, error) {
	data, err := json.Marshal(map[string]string{"method": method})
	if err != nil {
		return "", models.Session{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	body, err := c.doToken(ctx, "", http.MethodPost, "/api/v1/auth/signin", nil, data)
	if err != nil {
		return "", models.Session{}, err
	}
	var resp struct {
		Token   string         `json:"token"`
		Session models.Session `json:"session"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", models.Session{}, fmt.Errorf("%w: decoding sign-in response: %v", ErrUnavailable, err)
	}
	return resp.Token, resp.Session, nil
}

// SignOut revokes token on the server.
func (c *HTTPClient) SignOut(ctx context.Context, token string) error {
	_, err := c.doToken(ctx, token, http.MethodPost, "/api/v1/auth/signout", nil, nil)
	return err
}

// Session returns the server's view of token's session.
func (c *HTTPClient) Session(ctx context.Context, token string) (models.Session, error) {
	body, err := c.doToken(ctx, token, http.MethodGet, "/api/v1/auth/session", nil, nil)
	if err != nil {
		return models.Session{}, err
	}
	var s models.Session
	if err := json.Unmarshal(body, &s); err != nil {
		return models.Session{}, fmt.Errorf("%w: decoding session: %v", ErrUnavailable, err)
	}
	return s, nil
}
