package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/claude/liftlog/internal/models"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// StreamMessage is one websocket frame of a subscription.
type StreamMessage struct {
	Type      string            `json:"type"`
	Documents []models.Document `json:"documents,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// HTTPClient implements Store against the liftlog-server REST API.
type HTTPClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	dialer     *websocket.Dialer
	attempts   int
	backoff    time.Duration
}

var (
	_ Store  = (*HTTPClient)(nil)
	_ Pinger = (*HTTPClient)(nil)
)

// NewHTTPClient creates a client for the server at baseURL.
func NewHTTPClient(baseURL string, tokens TokenSource) *HTTPClient {
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer:     websocket.DefaultDialer,
		attempts:   3,
		backoff:    time.Second,
	}
}

// Upsert implements Store.
func (c *HTTPClient) Upsert(ctx context.Context, collection, id string, doc models.Document) error {
	data, err := json.Marshal(struct {
		OwnerID string          `json:"ownerId"`
		Body    json.RawMessage `json:"body"`
	}{doc.OwnerID, doc.Body})
	if err != nil {
		return fmt.Errorf("%w: encoding document: %v", ErrInvalid, err)
	}
	_, err = c.do(ctx, http.MethodPut, docPath(collection, id), nil, data)
	return err
}

// QueryByOwner implements Store.
func (c *HTTPClient) QueryByOwner(ctx context.Context, collection, ownerID, orderBy string, dir Direction) ([]models.Document, error) {
	params := url.Values{"owner": {ownerID}}
	if orderBy != "" {
		params.Set("orderBy", orderBy)
	}
	if dir != "" {
		params.Set("dir", string(dir))
	}
	body, err := c.do(ctx, http.MethodGet, collectionPath(collection)+"/docs", params, nil)
	if err != nil {
		return nil, err
	}
	var docs []models.Document
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, fmt.Errorf("%w: decoding documents: %v", ErrUnavailable, err)
	}
	return docs, nil
}

// Delete implements Store.
func (c *HTTPClient) Delete(ctx context.Context, collection, id string) error {
	_, err := c.do(ctx, http.MethodDelete, docPath(collection, id), nil, nil)
	return err
}

// Ping checks the server health endpoint once, without retries.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthz returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Subscribe implements Store over a websocket.
func (c *HTTPClient) Subscribe(ctx context.Context, collection, ownerID string) (<-chan []models.Document, error) {
	u, err := url.Parse(c.baseURL + collectionPath(collection) + "/subscribe")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"owner": {ownerID}}.Encode()

	header := http.Header{}
	if tok := c.tokens.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, statusError("subscribe", resp.StatusCode, nil)
		}
		return nil, fmt.Errorf("%w: subscribe: %v", ErrUnavailable, err)
	}

	out := make(chan []models.Document, 1)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var msg StreamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "snapshot" {
				continue
			}
			select {
			case out <- msg.Documents:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	return c.doToken(ctx, c.tokens.Token(), method, path, params, body)
}

// doToken sends a request, retrying transport failures and 5xx responses
// with exponential backoff. Client errors are returned immediately.
func (c *HTTPClient) doToken(ctx context.Context, token, method, path string, params url.Values, body []byte) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << (attempt - 1)):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: create request: %v", ErrInvalid, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		lastErr = statusError(method+" "+path, resp.StatusCode, data)
		if !errors.Is(lastErr, ErrUnavailable) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

func statusError(op string, status int, body []byte) error {
	var sentinel error
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusPreconditionFailed:
		sentinel = ErrPermission
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status >= 400 && status < 500:
		sentinel = ErrInvalid
	default:
		sentinel = ErrUnavailable
	}
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return fmt.Errorf("%w: %s returned %d: %s", sentinel, op, status, msg)
}

func collectionPath(collection string) string {
	return "/api/v1/collections/" + url.PathEscape(collection)
}

func docPath(collection, id string) string {
	return collectionPath(collection) + "/docs/" + url.PathEscape(id)
}
