package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/client/tailscale/apitype"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Backend is the persistence the server runs on: Postgres in production,
// storage.Memory for development and tests.
type Backend interface {
	Ping(ctx context.Context) error
	UpsertDocument(ctx context.Context, collection, id, ownerID string, body json.RawMessage) (models.Document, error)
	QueryDocuments(ctx context.Context, collection, ownerID, orderBy, dir string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, collection, id, ownerID string) error
	EnsureUser(ctx context.Context, u storage.User) (storage.User, error)
	CreateSession(ctx context.Context, userID, method string) (string, error)
	LookupSession(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	GetOwnerStats(ctx context.Context, ownerID string) ([]storage.CollectionStat, error)
}

var (
	_ Backend = (*storage.DB)(nil)
	_ Backend = (*storage.Memory)(nil)
)

// WhoIser resolves a tailnet peer address to its identity. It is satisfied
// by the tsnet local client.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	backend  Backend
	whois    WhoIser
	metrics  *metrics.Manager
	gatherer prometheus.Gatherer
	hub      *hub
	log      *slog.Logger
	router   chi.Router
}

// New creates a new Server with all routes configured. A nil registry gets
// a fresh one with the runtime collectors.
func New(backend Backend, reg *prometheus.Registry, log *slog.Logger) *Server {
	if reg == nil {
		reg = metrics.SetupPrometheus()
	}
	m := metrics.NewManager("liftlog", "server", reg)
	s := &Server{
		backend:  backend,
		metrics:  m,
		gatherer: reg,
		hub:      newHub(backend, m.GaugeSubscribers, log),
		log:      log,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetWhoIs enables the tailscale sign-in method.
func (s *Server) SetWhoIs(w WhoIser) {
	s.whois = w
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects every snapshot subscriber.
func (s *Server) Close() {
	s.hub.close()
}

func (s *Server) routes() {
	s.router.Use(PanicRecovery(s.metrics, s.log))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Post("/api/v1/auth/signin", s.handleSignIn)

	s.router.Group(func(r chi.Router) {
		r.Use(BearerAuth(s.backend))
		r.Post("/api/v1/auth/signout", s.handleSignOut)
		r.Get("/api/v1/auth/session", s.handleSession)
		r.Get("/api/v1/stats", s.handleStats)

		r.Route("/api/v1/collections/{collection}", func(r chi.Router) {
			r.Use(validCollection)
			r.Get("/docs", s.handleQueryDocuments)
			r.Put("/docs/{id}", s.handleUpsertDocument)
			r.Delete("/docs/{id}", s.handleDeleteDocument)
			r.Get("/subscribe", s.handleSubscribe)
		})
	})
}
