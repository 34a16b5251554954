package handlers

import (
	"errors"
	"net/http"

	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/elasticdoctor/webapp/internal/tier"
	"github.com/elasticdoctor/webapp/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler serves account lookups and tier changes.
type UserHandler struct {
	userService *services.UserService
	sessions    *auth.SessionManager
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, sessions *auth.SessionManager, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, sessions: sessions, logger: logger}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Post("/check", handler.Check)
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(handler.sessions))
		r.Get("/me", handler.Me)
		r.Put("/tier", handler.ChangeTier)
	})
}

func (h *UserHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err, "Failed to check user")
		return
	}

	exists, user, err := h.userService.CheckEmail(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to check user")
		return
	}
	writeJSON(w, http.StatusOK, CheckUserResponse{Exists: exists, User: user})
}

// Me returns the stored user, the limits of their tier and which tier-gated
// features they may use.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to load user")
		return
	}

	user, err := h.userService.GetByID(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeServiceError(w, h.logger, err, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		Success:     true,
		User:        user,
		Limits:      tier.Config(user.PricingTier),
		Permissions: tierPermissions(user.PricingTier),
	})
}

// tierPermissions reports, for every known tier, whether features gated on
// it are available to userTier.
func tierPermissions(userTier string) map[string]bool {
	names := tier.Names()
	permissions := make(map[string]bool, len(names))
	for _, required := range names {
		permissions[required] = tier.HasPermission(userTier, required)
	}
	return permissions
}

// ChangeTier updates the pricing tier and re-issues the session cookie.
func (h *UserHandler) ChangeTier(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update tier")
		return
	}

	var req ChangeTierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err, "Failed to update tier")
		return
	}

	user, err := h.userService.ChangeTier(r.Context(), session.UserID, req.PricingTier)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update tier")
		return
	}

	if _, err := h.sessions.Issue(w, user); err != nil {
		h.logger.Warn("failed to reissue session after tier change", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

type CheckUserRequest struct {
	Email string `json:"email" validate:"required"`
}

type CheckUserResponse struct {
	Exists bool        `json:"exists"`
	User   *types.User `json:"user"`
}

type ChangeTierRequest struct {
	PricingTier string `json:"pricing_tier" validate:"required"`
}

type MeResponse struct {
	Success     bool            `json:"success"`
	User        types.User      `json:"user"`
	Limits      tier.Policy     `json:"limits"`
	Permissions map[string]bool `json:"permissions"`
}
