package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/elasticdoctor/webapp/internal/gateway"
	"github.com/elasticdoctor/webapp/internal/secrets"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/internal/store/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type fakeOAuth2Config struct{}

func (fakeOAuth2Config) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (fakeOAuth2Config) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: code}, nil
}

func (fakeOAuth2Config) TokenSource(_ context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.StaticTokenSource(token)
}

type fakeProfiles struct {
	profile services.GoogleProfile
}

func (f *fakeProfiles) FetchProfile(context.Context, oauth2.TokenSource) (services.GoogleProfile, error) {
	return f.profile, nil
}

type fakeGateway struct {
	resp  gateway.Response
	err   error
	email string
	days  int
}

func (g *fakeGateway) UsageStats(_ context.Context, email string, days int) (gateway.Response, error) {
	g.email = email
	g.days = days
	return g.resp, g.err
}

type testApp struct {
	router   *chi.Mux
	users    *memstore.UserRepository
	clusters *memstore.ClusterRepository
	sessions *auth.SessionManager
	profiles *fakeProfiles
	gateway  *fakeGateway
	userSvc  *services.UserService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	sealer, err := secrets.NewSealer(key)
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager("test-secret", time.Hour, false)
	require.NoError(t, err)

	app := &testApp{
		users:    memstore.NewUserRepository(),
		clusters: memstore.NewClusterRepository(sealer),
		sessions: sessions,
		profiles: &fakeProfiles{},
		gateway:  &fakeGateway{},
	}
	logger := zap.NewNop()
	app.userSvc = services.NewUserService(app.users, nil, nil, logger)
	clusterSvc := services.NewClusterService(app.clusters, app.users, nil, nil, nil, logger)
	google := auth.NewGoogleProvider(fakeOAuth2Config{}, app.profiles, false)

	r := chi.NewRouter()
	r.Use(Recoverer(logger))
	r.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(app.userSvc, sessions, google, logger))
	})
	r.Route("/api/user", func(r chi.Router) {
		UserRouter(r, NewUserHandler(app.userSvc, sessions, logger))
	})
	r.Route("/api/clusters", func(r chi.Router) {
		ClusterRouter(r, NewClusterHandler(clusterSvc, logger), sessions)
	})
	r.Route("/api/usage", func(r chi.Router) {
		UsageRouter(r, NewUsageHandler(services.NewUsageService(app.gateway), logger))
	})
	app.router = r
	return app
}

func (a *testApp) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// signIn registers a password user and returns their session cookie.
func (a *testApp) signIn(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Email:    email,
		Name:     "Test User",
		Password: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return findCookie(t, rec, auth.SessionCookie)
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	require.FailNow(t, "cookie not set", name)
	return nil
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
