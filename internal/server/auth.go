package server

import (
	"encoding/json"
	"net/http"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Sign-in methods.
const (
	MethodAnonymous = "anonymous"
	MethodTailscale = "tailscale"
)

type signInRequest struct {
	Method string `json:"method"`
}

// SignInResponse carries the issued bearer token.
type SignInResponse struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	var user storage.User
	switch req.Method {
	case MethodAnonymous:
	case MethodTailscale:
		if s.whois == nil {
			writeJSON(w, http.StatusPreconditionFailed, map[string]string{"error": "configuration-not-found: tailscale sign-in is not enabled"})
			return
		}
		who, err := s.whois.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil || who == nil || who.UserProfile == nil {
			s.log.Warn("tailscale whois failed", "remote", r.RemoteAddr, "error", err)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "rejected: request did not come from a tailnet peer"})
			return
		}
		user = storage.User{
			Login:       who.UserProfile.LoginName,
			DisplayName: who.UserProfile.DisplayName,
			AvatarURL:   who.UserProfile.ProfilePicURL,
		}
	default:
		writeJSON(w, http.StatusPreconditionFailed, map[string]string{"error": "configuration-not-found: unknown sign-in method " + req.Method})
		return
	}

	user, err := s.backend.EnsureUser(r.Context(), user)
	if err != nil {
		s.log.Error("ensure user", "method", req.Method, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	token, err := s.backend.CreateSession(r.Context(), user.ID, req.Method)
	if err != nil {
		s.log.Error("create session", "user", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.CounterSignIns.WithLabelValues(req.Method).Inc()
	s.log.Info("signed in", "user", user.ID, "method", req.Method)
	writeJSON(w, http.StatusOK, SignInResponse{
		Token: token,
		Session: models.Session{
			UID:         user.ID,
			Anonymous:   user.Anonymous,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
			Method:      req.Method,
		},
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteSession(r.Context(), bearerToken(r)); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r)
	sess.Token = ""
	writeJSON(w, http.StatusOK, sess)
}
