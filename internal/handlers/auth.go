package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/elasticdoctor/webapp/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

const (
	credentialRequestsPerMinute = 20

	dashboardPath  = "/dashboard"
	selectPlanPath = "/auth/select-plan"
)

// AuthHandler provides session, sign-in and registration endpoints.
type AuthHandler struct {
	userService *services.UserService
	sessions    *auth.SessionManager
	google      *auth.GoogleProvider
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler. google may be nil when Google
// sign-in is not configured.
func NewAuthHandler(
	userService *services.UserService,
	sessions *auth.SessionManager,
	google *auth.GoogleProvider,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
		google:      google,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Get("/refresh-session", handler.RefreshSession)
	r.Post("/refresh-session", handler.RefreshSession)
	r.Get("/signout", handler.SignOut)
	r.Post("/signout", handler.SignOut)
	r.Get("/session", handler.Session)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(credentialRequestsPerMinute, time.Minute))

		r.Get("/google/login", handler.GoogleLogin)
		r.Get("/google/callback", handler.GoogleCallback)
		r.Post("/register-google", handler.RegisterGoogle)
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
	})
}

// RefreshSession never signs the user out. When a valid session is present
// its cookie is re-issued with the stored tier.
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if session := h.sessions.Current(r); session != nil {
		user, err := h.userService.GetByID(r.Context(), session.UserID)
		if err != nil {
			h.logger.Warn("session refresh lookup failed", zap.Int64("user_id", session.UserID), zap.Error(err))
		} else if _, err := h.sessions.Issue(w, user); err != nil {
			h.logger.Warn("session refresh reissue failed", zap.Int64("user_id", session.UserID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Success:   true,
		Message:   "Session refresh triggered",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SignOut expires every application cookie and redirects home.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookies(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Session returns the verified session, or an empty object.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	session := h.sessions.Current(r)
	if session == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		User:    session,
		Expires: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}
	redirect, err := h.google.Begin(w)
	if err != nil {
		h.logger.Error("failed to start google sign-in", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

// GoogleCallback signs in a known user. Unknown users are sent to plan
// selection, which posts to register-google.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	profile, err := h.google.Complete(r)
	switch {
	case errors.Is(err, auth.ErrStateMissing):
		writeError(w, http.StatusBadRequest, "Missing OAuth state")
		return
	case errors.Is(err, auth.ErrStateMismatch):
		writeError(w, http.StatusUnauthorized, "OAuth state mismatch")
		return
	case err != nil:
		h.logger.Error("google sign-in failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to complete sign-in")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: auth.StateCookie, Path: "/", MaxAge: -1, Expires: time.Unix(0, 0)})

	user, err := h.userService.ResolveOAuthUser(r.Context(), profile)
	if errors.Is(err, store.ErrNotFound) {
		q := url.Values{}
		q.Set("email", profile.Email)
		http.Redirect(w, r, selectPlanPath+"?"+q.Encode(), http.StatusFound)
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to complete sign-in")
		return
	}

	if _, err := h.sessions.Issue(w, user); err != nil {
		h.logger.Error("failed to issue session", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to complete sign-in")
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusFound)
}

// RegisterGoogle creates the account for a Google profile and selected plan.
func (h *AuthHandler) RegisterGoogle(w http.ResponseWriter, r *http.Request) {
	var req RegisterGoogleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err, "Registration failed")
		return
	}

	user, err := h.userService.RegisterOAuth(r.Context(), services.GoogleProfile{
		ID:      req.GoogleData.ID,
		Email:   req.GoogleData.Email,
		Name:    req.GoogleData.Name,
		Picture: req.GoogleData.Picture,
	}, req.SelectedPlan)
	if err != nil {
		writeServiceError(w, h.logger, err, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{Success: true, User: user})
}

// Register creates a user from explicit fields.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err, "Registration failed")
		return
	}

	user, err := h.userService.RegisterDirect(r.Context(), services.DirectRegistration{
		GoogleID:          req.GoogleID,
		Email:             req.Email,
		Name:              req.Name,
		GivenName:         req.GivenName,
		FamilyName:        req.FamilyName,
		ProfilePictureURL: req.ProfilePictureURL,
		PricingTier:       req.PricingTier,
		Password:          req.Password,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{Success: true, User: user})
}

// Login verifies a password and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, err, "Failed to authenticate")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to authenticate")
		return
	}

	if _, err := h.sessions.Issue(w, user); err != nil {
		h.logger.Error("failed to issue session", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to authenticate")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

type RefreshResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type SessionResponse struct {
	User    *auth.Session `json:"user"`
	Expires string        `json:"expires"`
}

type GoogleData struct {
	ID      string `json:"id" validate:"required"`
	Email   string `json:"email" validate:"required"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type RegisterGoogleRequest struct {
	GoogleData   GoogleData `json:"googleData"`
	SelectedPlan string     `json:"selectedPlan"`
}

type RegisterRequest struct {
	GoogleID          string `json:"googleId"`
	Email             string `json:"email" validate:"required"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	PricingTier       string `json:"pricing_tier"`
	Password          string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	Success bool       `json:"success"`
	User    types.User `json:"user"`
}
