// Package auth issues and verifies session cookies and drives Google sign-in.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elasticdoctor/webapp/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("authentication required")

const (
	SessionCookie        = "elasticdoctor.session-token"
	SecureSessionCookie  = "__Secure-elasticdoctor.session-token"
	CSRFCookie           = "elasticdoctor.csrf-token"
	HostCSRFCookie       = "__Host-elasticdoctor.csrf-token"
	CallbackCookie       = "elasticdoctor.callback-url"
	SecureCallbackCookie = "__Secure-elasticdoctor.callback-url"
	StateCookie          = "elasticdoctor.oauth-state"
)

// CookieNames lists every cookie the application may have set. Sign-out
// expires all of them.
var CookieNames = []string{
	SessionCookie,
	SecureSessionCookie,
	CSRFCookie,
	HostCSRFCookie,
	CallbackCookie,
	SecureCallbackCookie,
	StateCookie,
}

// Session is the verified content of a session token.
type Session struct {
	ID            string    `json:"-"`
	UserID        int64     `json:"id"`
	Email         string    `json:"email"`
	PricingTier   string    `json:"pricing_tier"`
	EmailVerified bool      `json:"email_verified"`
	ExpiresAt     time.Time `json:"-"`
}

type sessionClaims struct {
	Email         string `json:"email"`
	PricingTier   string `json:"pricing_tier"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// SessionManager signs session tokens with HS256 and stores them in cookies.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager builds a manager. secure selects the __Secure- cookie
// name and the Secure attribute.
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}, nil
}

// CookieName is the session cookie name used for new sessions.
func (m *SessionManager) CookieName() string {
	if m.secure {
		return SecureSessionCookie
	}
	return SessionCookie
}

// Issue signs a token for the user and sets it as the session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, user types.User) (Session, error) {
	now := m.now()
	session := Session{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		Email:         user.Email,
		PricingTier:   user.PricingTier,
		EmailVerified: user.EmailVerified,
		ExpiresAt:     now.Add(m.ttl),
	}
	claims := sessionClaims{
		Email:         session.Email,
		PricingTier:   session.PricingTier,
		EmailVerified: session.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// Current returns the session carried by the request, or nil when there is
// none or it does not verify.
func (m *SessionManager) Current(r *http.Request) *Session {
	for _, token := range requestTokens(r) {
		if session, err := m.parse(token); err == nil {
			return session
		}
	}
	return nil
}

// Require returns the request session or ErrUnauthenticated.
func (m *SessionManager) Require(r *http.Request) (*Session, error) {
	session := m.Current(r)
	if session == nil {
		return nil, ErrUnauthenticated
	}
	return session, nil
}

// ClearCookies expires every application cookie. Prefixed names are only
// accepted by browsers with the Secure attribute.
func (m *SessionManager) ClearCookies(w http.ResponseWriter) {
	for _, name := range CookieNames {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure || strings.HasPrefix(name, "__Secure-") || strings.HasPrefix(name, "__Host-"),
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (m *SessionManager) parse(tokenString string) (*Session, error) {
	claims := sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID < 1 {
		return nil, errors.New("invalid subject")
	}

	session := &Session{
		ID:            claims.ID,
		UserID:        userID,
		Email:         claims.Email,
		PricingTier:   claims.PricingTier,
		EmailVerified: claims.EmailVerified,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func requestTokens(r *http.Request) []string {
	var tokens []string
	for _, name := range []string{SecureSessionCookie, SessionCookie} {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			tokens = append(tokens, cookie.Value)
		}
	}
	if token, err := bearerToken(r); err == nil {
		tokens = append(tokens, token)
	}
	return tokens
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession stores a verified session in the context.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	return session, ok && session != nil
}
