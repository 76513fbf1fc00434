package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownerParam returns the owner a request targets: the owner query parameter,
// defaulting to the caller. Other owners are refused.
func ownerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess, _ := sessionFromContext(r)
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = sess.UID
	}
	if owner != sess.UID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot access another owner's documents"})
		return "", false
	}
	return owner, true
}

func (s *Server) handleQueryDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	collection := chi.URLParam(r, "collection")
	q := r.URL.Query()

	docs, err := s.backend.QueryDocuments(r.Context(), collection, owner, q.Get("orderBy"), q.Get("dir"))
	if errors.Is(err, storage.ErrInvalidQuery) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("query documents", "collection", collection, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

type upsertRequest struct {
	OwnerID string          `json:"ownerId"`
	Body    json.RawMessage `json:"body"`
}

// docID returns the decoded {id} parameter. chi matches on the raw path when
// the request escapes reserved characters, leaving the parameter escaped.
func docID(r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id, id != ""
	}
	id, err := url.PathUnescape(id)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (s *Server) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r)
	collection := chi.URLParam(r, "collection")
	id, ok := docID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}

	var req upsertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if len(req.Body) == 0 || !json.Valid(req.Body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = sess.UID
	}
	if req.OwnerID != sess.UID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "ownerId must match the signed-in user"})
		return
	}

	doc, err := s.backend.UpsertDocument(r.Context(), collection, id, req.OwnerID, req.Body)
	if errors.Is(err, storage.ErrNotOwner) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("upsert document", "collection", collection, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.CounterDocumentWrites.WithLabelValues(collection, "upsert").Inc()
	s.hub.publish(r.Context(), collection, req.OwnerID)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r)
	collection := chi.URLParam(r, "collection")
	id, ok := docID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}

	err := s.backend.DeleteDocument(r.Context(), collection, id, sess.UID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	case errors.Is(err, storage.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.log.Error("delete document", "collection", collection, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.CounterDocumentWrites.WithLabelValues(collection, "delete").Inc()
	s.hub.publish(r.Context(), collection, sess.UID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r)
	stats, err := s.backend.GetOwnerStats(r.Context(), sess.UID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
