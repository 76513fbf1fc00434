package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/claude/liftlog/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// StreamMessage is one websocket frame sent to subscribers.
type StreamMessage struct {
	Type      string            `json:"type"`
	Documents []models.Document `json:"documents,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type subscriber struct {
	collection string
	owner      string
	ch         chan []models.Document
	done       chan struct{}
}

// offer replaces any undelivered snapshot with docs.
func (s *subscriber) offer(docs []models.Document) {
	select {
	case s.ch <- docs:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- docs:
	default:
	}
}

// hub fans document snapshots out to websocket subscribers. pubMu orders
// snapshot queries so a subscriber never receives an older state after a
// newer one.
type hub struct {
	backend Backend
	gauge   prometheus.Gauge
	log     *slog.Logger

	pubMu  sync.Mutex
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newHub(backend Backend, gauge prometheus.Gauge, log *slog.Logger) *hub {
	return &hub{
		backend: backend,
		gauge:   gauge,
		log:     log,
		subs:    make(map[*subscriber]struct{}),
	}
}

// subscribe registers a subscriber and returns it with the current snapshot.
func (h *hub) subscribe(ctx context.Context, collection, owner string) (*subscriber, []models.Document, error) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	docs, err := h.backend.QueryDocuments(ctx, collection, owner, "", "")
	if err != nil {
		return nil, nil, err
	}
	sub := &subscriber{
		collection: collection,
		owner:      owner,
		ch:         make(chan []models.Document, 1),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.done)
		return sub, docs, nil
	}
	h.subs[sub] = struct{}{}
	h.gauge.Inc()
	return sub, docs, nil
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		h.gauge.Dec()
	}
}

// publish sends the current snapshot of (collection, owner) to its subscribers.
func (h *hub) publish(ctx context.Context, collection, owner string) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	var targets []*subscriber
	for sub := range h.subs {
		if sub.collection == collection && sub.owner == owner {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	docs, err := h.backend.QueryDocuments(ctx, collection, owner, "", "")
	if err != nil {
		h.log.Warn("snapshot query failed", "collection", collection, "owner", owner, "error", err)
		return
	}
	for _, sub := range targets {
		sub.offer(docs)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		close(sub.done)
		delete(h.subs, sub)
		h.gauge.Dec()
	}
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	collection := chi.URLParam(r, "collection")

	sub, docs, err := s.hub.subscribe(r.Context(), collection, owner)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer s.hub.unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Incoming frames are ignored; the read loop only detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(docs []models.Document) error {
		if docs == nil {
			docs = []models.Document{}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(StreamMessage{Type: "snapshot", Documents: docs})
	}

	if err := send(docs); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case docs := <-sub.ch:
			if err := send(docs); err != nil {
				s.log.Debug("subscriber write failed", "collection", collection, "error", err)
				return
			}
		}
	}
}
