package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/fallcrate/milestone-web/internal/achievements"
	"github.com/fallcrate/milestone-web/internal/logger"
	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/services"
)

const sessionName = "milestone-session"

type contextKey string

const ownerKey contextKey = "ownerID"

// Handler owns identity for the widget: anonymous visitors get a cookie
// owner id on first request; signing in swaps the cookie to the account's
// owner id and fires exactly one merge of the anonymous records.
type Handler struct {
	store       *sessions.CookieStore
	userService *services.UserService
	manager     *achievements.Manager
}

func NewHandler(sessionSecret string, userService *services.UserService, manager *achievements.Manager) *Handler {
	return &Handler{
		store:       sessions.NewCookieStore([]byte(sessionSecret)),
		userService: userService,
		manager:     manager,
	}
}

// OwnerFromContext returns the owner id the middleware attached.
func OwnerFromContext(ctx context.Context) string {
	ownerID, _ := ctx.Value(ownerKey).(string)
	return ownerID
}

// WithOwner attaches an owner id to a context the way the middleware does.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// Middleware ensures every request carries an owner id, minting an
// anonymous one on first contact.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := h.store.Get(r, sessionName)

		ownerID, ok := session.Values["owner_id"].(string)
		if !ok || ownerID == "" {
			ownerID = uuid.NewString()
			session.Values["owner_id"] = ownerID
			if err := session.Save(r, w); err != nil {
				logger.New().WithError(err).Warn("failed to save session cookie")
			}
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), ownerID)))
	})
}

// POST /register - create an account and link the anonymous records to it
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.CreateUser(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.linkAndSwitch(w, r, user)
}

// POST /login - authenticate and link the anonymous records to the account
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.AuthenticateUser(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	h.linkAndSwitch(w, r, user)
}

// POST /logout - drop the account identity and start a fresh anonymous one
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	previousOwner := OwnerFromContext(r.Context())
	h.manager.Close(r.Context(), previousOwner)

	session, _ := h.store.Get(r, sessionName)
	session.Values["owner_id"] = uuid.NewString()
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// linkAndSwitch merges the current anonymous owner into the account owner
// and rewrites the session cookie. The merge fires once per linking; a
// failure is surfaced so the client can retry, merge being idempotent.
func (h *Handler) linkAndSwitch(w http.ResponseWriter, r *http.Request, user *models.User) {
	anonymousOwner := OwnerFromContext(r.Context())

	if anonymousOwner != "" && anonymousOwner != user.OwnerID {
		event := models.MergeEvent{SourceOwnerID: anonymousOwner, TargetOwnerID: user.OwnerID}
		if err := h.manager.LinkIdentity(r.Context(), event); err != nil {
			logger.New().WithError(err).Error("account merge failed")
			http.Error(w, "Failed to merge achievements", http.StatusBadGateway)
			return
		}
	}

	session, _ := h.store.Get(r, sessionName)
	session.Values["owner_id"] = user.OwnerID
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
