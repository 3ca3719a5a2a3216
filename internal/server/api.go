package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/services"
	"github.com/desertthunder/joip/internal/shared"
)

// maxBodyBytes caps request bodies accepted by the API.
const maxBodyBytes = 1 << 20

// SessionStore is the persistence the API needs.
type SessionStore interface {
	Create(s *models.Session) error
	List() ([]*models.Session, error)
	Get(id string) (*models.Session, error)
	Update(id string, patch models.SessionPatch) (*models.Session, error)
	Delete(id string) (bool, error)
	SetFavorite(id string, favorite bool) (bool, error)
}

// MediaResolver turns a session into a playable media list.
type MediaResolver interface {
	ResolveSession(ctx context.Context, session *models.Session, limit int) ([]string, error)
}

// MediaResolverFunc adapts a function to [MediaResolver].
type MediaResolverFunc func(ctx context.Context, session *models.Session, limit int) ([]string, error)

func (f MediaResolverFunc) ResolveSession(ctx context.Context, session *models.Session, limit int) ([]string, error) {
	return f(ctx, session, limit)
}

// APIHandler serves the JSON API over sessions, media and channels.
type APIHandler struct {
	sessions     SessionStore
	media        MediaResolver
	channels     services.ChannelValidator
	logger       *log.Logger
	shareBase    string
	defaultLimit int
}

// APIOpts configures an [APIHandler].
type APIOpts struct {
	Sessions     SessionStore
	Media        MediaResolver
	Channels     services.ChannelValidator
	Logger       *log.Logger
	ShareBase    string // Base URL used to build share links, e.g. http://localhost:3000
	DefaultLimit int    // Per-channel listing size when ?limit is absent
}

// NewAPIHandler creates an [APIHandler].
func NewAPIHandler(opts APIOpts) *APIHandler {
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	return &APIHandler{
		sessions:     opts.Sessions,
		media:        opts.Media,
		channels:     opts.Channels,
		logger:       opts.Logger,
		shareBase:    opts.ShareBase,
		defaultLimit: opts.DefaultLimit,
	}
}

// Register adds the API routes to router.
func (h *APIHandler) Register(router *BasicRouter) {
	router.HandleFunc(http.MethodGet, "/health", h.health)

	router.HandleFunc(http.MethodGet, "/api/sessions", h.listSessions)
	router.HandleFunc(http.MethodPost, "/api/sessions", h.createSession)
	router.HandleFunc(http.MethodGet, "/api/sessions/{id}", h.getSession)
	router.HandleFunc(http.MethodPatch, "/api/sessions/{id}", h.updateSession)
	router.HandleFunc(http.MethodDelete, "/api/sessions/{id}", h.deleteSession)
	router.HandleFunc(http.MethodPut, "/api/sessions/{id}/favorite", h.setFavorite)
	router.HandleFunc(http.MethodGet, "/api/sessions/{id}/media", h.sessionMedia)
	router.HandleFunc(http.MethodGet, "/api/channels/{name}", h.validateChannel)

	router.HandleFunc(http.MethodGet, "/shared/{id}", h.sharedSession)
}

// sessionResponse adds the share link to a session.
type sessionResponse struct {
	*models.Session
	ShareURL string `json:"share_url,omitempty"`
}

func (h *APIHandler) present(s *models.Session) sessionResponse {
	return sessionResponse{Session: s, ShareURL: s.ShareURL(h.shareBase)}
}

func (h *APIHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List()
	if err != nil {
		h.fail(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, h.present(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var session models.Session
	if err := decodeBody(r, &session); err != nil {
		h.fail(w, err)
		return
	}
	if session.CaptionPrompt == "" {
		session.CaptionPrompt = models.DefaultCaptionPrompt
	}

	if err := h.sessions.Create(&session); err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("session created", "id", session.ID, "title", session.Title)
	writeJSON(w, http.StatusCreated, h.present(&session))
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(session))
}

func (h *APIHandler) updateSession(w http.ResponseWriter, r *http.Request) {
	var patch models.SessionPatch
	if err := decodeBody(r, &patch); err != nil {
		h.fail(w, err)
		return
	}

	session, err := h.sessions.Update(r.PathValue("id"), patch)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(session))
}

func (h *APIHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := h.sessions.Delete(id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		h.fail(w, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) setFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsFavorite *bool `json:"is_favorite"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, err)
		return
	}
	if body.IsFavorite == nil {
		h.fail(w, fmt.Errorf("%w: is_favorite is required", shared.ErrInvalidInput))
		return
	}

	id := r.PathValue("id")
	ok, err := h.sessions.SetFavorite(id, *body.IsFavorite)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		h.fail(w, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_favorite": *body.IsFavorite})
}

func (h *APIHandler) sessionMedia(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			h.fail(w, fmt.Errorf("%w: limit must be between 1 and 100", shared.ErrInvalidInput))
			return
		}
		limit = n
	}

	session, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	media, err := h.media.ResolveSession(r.Context(), session, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"count":      len(media),
		"media":      media,
	})
}

func (h *APIHandler) validateChannel(w http.ResponseWriter, r *http.Request) {
	name := models.NormalizeChannel(r.PathValue("name"))
	if name == "" {
		h.fail(w, fmt.Errorf("%w: channel name is required", shared.ErrInvalidInput))
		return
	}

	valid, err := h.channels.ValidateChannel(r.Context(), name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel": name, "valid": valid})
}

// sharedSession serves a public session without an API key; private sessions look missing.
func (h *APIHandler) sharedSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := h.sessions.Get(id)
	if err == nil && !session.IsPublic {
		err = fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(session))
}

// fail maps err onto a status code and writes a JSON error body.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, shared.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrNoMedia):
		return http.StatusNotFound, "no_media"
	case errors.Is(err, shared.ErrNoToken), services.IsAuthError(err):
		return http.StatusServiceUnavailable, "auth_unavailable"
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
