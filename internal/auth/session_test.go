package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elasticdoctor/webapp/types"
	"github.com/stretchr/testify/require"
)

func testUser() types.User {
	return types.User{ID: 42, Email: "ann@example.com", PricingTier: "professional", EmailVerified: true}
}

func TestNewSessionManagerRequiresSecret(t *testing.T) {
	_, err := NewSessionManager(" ", time.Hour, false)
	require.Error(t, err)
}

func TestIssueAndCurrent(t *testing.T) {
	m, err := NewSessionManager("test-secret", time.Hour, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	issued, err := m.Issue(rec, testUser())
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.False(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	session := m.Current(req)
	require.NotNil(t, session)
	require.Equal(t, int64(42), session.UserID)
	require.Equal(t, "professional", session.PricingTier)
	require.Equal(t, issued.ID, session.ID)

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer "+cookies[0].Value)
	require.NotNil(t, m.Current(bearer))
}

func TestSecureCookieName(t *testing.T) {
	m, err := NewSessionManager("test-secret", time.Hour, true)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	_, err = m.Issue(rec, testUser())
	require.NoError(t, err)

	cookie := rec.Result().Cookies()[0]
	require.Equal(t, SecureSessionCookie, cookie.Name)
	require.True(t, cookie.Secure)
}

func TestCurrentRejectsInvalidTokens(t *testing.T) {
	m, err := NewSessionManager("test-secret", time.Hour, false)
	require.NoError(t, err)
	other, err := NewSessionManager("other-secret", time.Hour, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	_, err = other.Issue(rec, testUser())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	require.Nil(t, m.Current(req))

	_, err = m.Require(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCurrentRejectsExpiredTokens(t *testing.T) {
	m, err := NewSessionManager("test-secret", time.Hour, false)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	rec := httptest.NewRecorder()
	_, err = m.Issue(rec, testUser())
	require.NoError(t, err)

	m.now = time.Now
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	require.Nil(t, m.Current(req))
}

func TestClearCookies(t *testing.T) {
	m, err := NewSessionManager("test-secret", time.Hour, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.ClearCookies(rec)

	cleared := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cleared[c.Name] = c
	}
	require.Len(t, cleared, len(CookieNames))
	for _, name := range CookieNames {
		c, ok := cleared[name]
		require.True(t, ok, name)
		require.Empty(t, c.Value)
		require.Less(t, c.MaxAge, 0)
	}
	require.True(t, cleared[SecureSessionCookie].Secure)
	require.True(t, cleared[HostCSRFCookie].Secure)
	require.False(t, cleared[SessionCookie].Secure)
}
