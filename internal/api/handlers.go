package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fallcrate/milestone-web/internal/achievements"
	"github.com/fallcrate/milestone-web/internal/auth"
	"github.com/fallcrate/milestone-web/internal/logger"
	"github.com/fallcrate/milestone-web/internal/models"
)

// Handler exposes the widget API. Every request resolves the caller's
// owner id (attached by the auth middleware) to a live achievement
// session through the manager.
type Handler struct {
	manager *achievements.Manager
}

func NewHandler(manager *achievements.Manager) *Handler {
	return &Handler{manager: manager}
}

func RegisterRoutes(r *mux.Router, manager *achievements.Manager) *Handler {
	h := NewHandler(manager)

	r.HandleFunc("/achievements", h.ListAchievements).Methods("GET")
	r.HandleFunc("/achievements/selection", h.Select).Methods("PUT")
	r.HandleFunc("/achievements/selection", h.Deselect).Methods("DELETE")
	r.HandleFunc("/achievements/{id}/unlock", h.Unlock).Methods("POST")
	r.HandleFunc("/achievements/{id}/lock", h.Lock).Methods("POST")
	r.HandleFunc("/achievements/{id}/toggle", h.Toggle).Methods("POST")
	r.HandleFunc("/achievements/{id}/acknowledge", h.Acknowledge).Methods("POST")
	r.HandleFunc("/preferences", h.GetPreferences).Methods("GET")
	r.HandleFunc("/preferences", h.SavePreferences).Methods("PUT")
	r.HandleFunc("/merge", h.Merge).Methods("POST")

	return h
}

// session resolves the caller's achievement session, writing the error
// response itself when that fails.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *achievements.Session {
	ownerID := auth.OwnerFromContext(r.Context())
	if ownerID == "" {
		http.Error(w, "Missing identity", http.StatusUnauthorized)
		return nil
	}

	session, err := h.manager.Session(ownerID)
	if err != nil {
		logger.New().WithError(err).Error("failed to open achievement session")
		http.Error(w, "Storage unavailable", http.StatusBadGateway)
		return nil
	}
	return session
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps core errors onto HTTP statuses: unknown ids are 404,
// unreachable squares 409, storage failures 502.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, achievements.ErrNotFound):
		http.Error(w, "Achievement not found", http.StatusNotFound)
	case errors.Is(err, achievements.ErrNotSelectable):
		http.Error(w, "Achievement is not selectable", http.StatusConflict)
	default:
		http.Error(w, "Storage operation failed: "+err.Error(), http.StatusBadGateway)
	}
}

// GET /api/v1/achievements - the combined grid for the caller
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	response := map[string]any{
		"achievements": session.Achievements(),
	}
	if selected, ok := session.Selected(); ok {
		response["selected"] = selected.ID
	}
	writeJSON(w, response)
}

// PUT /api/v1/achievements/selection - select a square (deselecting the
// previous one, which acknowledges it if it was newly unlocked)
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := session.Select(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/achievements/selection - clear the selection
func (h *Handler) Deselect(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	if err := session.Deselect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*achievements.Session).Unlock)
}

func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*achievements.Session).Lock)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*achievements.Session).Toggle)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*achievements.Session).Acknowledge)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(*achievements.Session, context.Context, string) (models.Achievement, error)) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	id := mux.Vars(r)["id"]
	result, err := op(session, r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

// GET /api/v1/preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}
	writeJSON(w, session.Preferences())
}

// PUT /api/v1/preferences
func (h *Handler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	prefs := session.Preferences()
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := session.SavePreferences(r.Context(), prefs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, prefs)
}

// POST /api/v1/merge - external identity-link trigger
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var event models.MergeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.manager.LinkIdentity(r.Context(), event); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
