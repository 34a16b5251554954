package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/elasticdoctor/webapp/config"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeOAuth2Config struct {
	exchangedCode string
	exchangeErr   error
}

func (f *fakeOAuth2Config) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth2Config) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.exchangedCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access"}, nil
}

func (f *fakeOAuth2Config) TokenSource(_ context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.StaticTokenSource(token)
}

type fakeProfiles struct {
	profile services.GoogleProfile
}

func (f fakeProfiles) FetchProfile(_ context.Context, src oauth2.TokenSource) (services.GoogleProfile, error) {
	token, err := src.Token()
	if err != nil {
		return services.GoogleProfile{}, err
	}
	if token.AccessToken != "access" {
		return services.GoogleProfile{}, errors.New("unexpected token")
	}
	return f.profile, nil
}

func TestGoogleProviderFlow(t *testing.T) {
	cfg := &fakeOAuth2Config{}
	provider := NewGoogleProvider(cfg, fakeProfiles{profile: services.GoogleProfile{ID: "g-1", Email: "ann@example.com"}}, false)

	rec := httptest.NewRecorder()
	redirect, err := provider.Begin(rec)
	require.NoError(t, err)

	stateCookie := rec.Result().Cookies()[0]
	require.Equal(t, StateCookie, stateCookie.Name)
	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	require.Equal(t, stateCookie.Value, parsed.Query().Get("state"))

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state="+url.QueryEscape(stateCookie.Value), nil)
	req.AddCookie(stateCookie)
	profile, err := provider.Complete(req)
	require.NoError(t, err)
	require.Equal(t, "g-1", profile.ID)
	require.Equal(t, "abc", cfg.exchangedCode)
}

func TestGoogleProviderState(t *testing.T) {
	provider := NewGoogleProvider(&fakeOAuth2Config{}, fakeProfiles{}, false)

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil)
	_, err := provider.Complete(req)
	require.ErrorIs(t, err, ErrStateMissing)

	req = httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: StateCookie, Value: "s2"})
	_, err = provider.Complete(req)
	require.ErrorIs(t, err, ErrStateMismatch)
}

func TestGoogleProviderExchangeError(t *testing.T) {
	provider := NewGoogleProvider(&fakeOAuth2Config{exchangeErr: errors.New("bad code")}, fakeProfiles{}, false)

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: StateCookie, Value: "s1"})
	_, err := provider.Complete(req)
	require.Error(t, err)
}

func TestNewGoogleConfigScopes(t *testing.T) {
	cfg := NewGoogleConfig(testGoogleConfig())
	require.Contains(t, cfg.Scopes, "openid")
	require.Equal(t, "client-id", cfg.ClientID)
	require.Contains(t, cfg.AuthCodeURL("xyz"), "accounts.google.com")
}

func testGoogleConfig() config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
	}
}
