package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/craftauth/yggdrasil/internal/http/response"
	"github.com/craftauth/yggdrasil/internal/observability"
	"github.com/craftauth/yggdrasil/internal/service"
)

// SessionHandler serves the sessionserver endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	profiles *service.ProfileService
}

func NewSessionHandler(sessions *service.SessionService, profiles *service.ProfileService) *SessionHandler {
	return &SessionHandler{sessions: sessions, profiles: profiles}
}

type joinRequest struct {
	AccessToken     string `json:"accessToken"`
	SelectedProfile string `json:"selectedProfile"`
	ServerID        string `json:"serverId"`
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.sessions.Join(r.Context(), req.AccessToken, req.SelectedProfile, req.ServerID, clientIP(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "session_join", "server_id", req.ServerID)
	response.NoContent(w)
}

// HasJoined never answers an error body. A failed check looks exactly
// like a missing one: 204 with nothing to act on.
func (h *SessionHandler) HasJoined(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	serverID := r.URL.Query().Get("serverId")
	ip := r.URL.Query().Get("ip")

	doc, err := h.sessions.HasJoined(r.Context(), username, serverID, ip)
	if err != nil {
		if !errors.Is(err, service.ErrJoinNotFound) {
			slog.ErrorContext(r.Context(), "hasJoined check failed", "error", err, "server_id", serverID)
		}
		response.NoContent(w)
		return
	}
	response.JSON(w, r, http.StatusOK, doc)
}

func (h *SessionHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	unsigned := r.URL.Query().Get("unsigned") != "false"

	doc, err := h.profiles.Lookup(r.Context(), id, unsigned)
	if err != nil {
		if errors.Is(err, service.ErrProfileMissing) {
			response.NoContent(w)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, doc)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
