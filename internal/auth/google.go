package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/elasticdoctor/webapp/config"
	"github.com/elasticdoctor/webapp/internal/services"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const stateCookieTTL = 10 * time.Minute

// OAuth2Config is the subset of *oauth2.Config used by the sign-in flow.
type OAuth2Config interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(context.Context, *oauth2.Token) oauth2.TokenSource
}

var _ OAuth2Config = (*oauth2.Config)(nil)

// ProfileFetcher loads the signed-in user's profile with an access token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, src oauth2.TokenSource) (services.GoogleProfile, error)
}

// NewGoogleConfig builds the OAuth client for Google sign-in.
func NewGoogleConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"openid",
			googleoauth2.UserinfoEmailScope,
			googleoauth2.UserinfoProfileScope,
		},
	}
}

// GoogleUserinfo fetches profiles from the Google userinfo endpoint.
type GoogleUserinfo struct{}

func (GoogleUserinfo) FetchProfile(ctx context.Context, src oauth2.TokenSource) (services.GoogleProfile, error) {
	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return services.GoogleProfile{}, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return services.GoogleProfile{}, err
	}
	profile := services.GoogleProfile{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}
	if info.VerifiedEmail != nil {
		profile.VerifiedEmail = *info.VerifiedEmail
	}
	return profile, nil
}

// GoogleProvider runs the authorization code flow.
type GoogleProvider struct {
	config   OAuth2Config
	profiles ProfileFetcher
	secure   bool
}

func NewGoogleProvider(cfg OAuth2Config, profiles ProfileFetcher, secure bool) *GoogleProvider {
	return &GoogleProvider{config: cfg, profiles: profiles, secure: secure}
}

// Begin stores a fresh state in a cookie and returns the consent URL.
func (p *GoogleProvider) Begin(w http.ResponseWriter) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

var (
	// ErrStateMissing means the state cookie or query parameter is absent.
	ErrStateMissing = errors.New("oauth state is missing")
	// ErrStateMismatch means the callback state does not match the cookie.
	ErrStateMismatch = errors.New("oauth state does not match")
)

// Complete checks the callback state, exchanges the code and returns the
// Google profile.
func (p *GoogleProvider) Complete(r *http.Request) (services.GoogleProfile, error) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(StateCookie)
	if err != nil || cookie.Value == "" || state == "" {
		return services.GoogleProfile{}, ErrStateMissing
	}
	if cookie.Value != state {
		return services.GoogleProfile{}, ErrStateMismatch
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		return services.GoogleProfile{}, errors.New("authorization code is missing")
	}

	ctx := r.Context()
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return services.GoogleProfile{}, err
	}
	return p.profiles.FetchProfile(ctx, p.config.TokenSource(ctx, token))
}

func newState() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
