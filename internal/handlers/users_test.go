package handlers

import (
	"net/http"
	"testing"

	"github.com/elasticdoctor/webapp/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestCheckUser(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/user/check", CheckUserRequest{Email: "ann@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decodeBody[CheckUserResponse](t, rec).Exists)

	app.signIn(t, "ann@example.com")

	rec = app.do(t, http.MethodPost, "/api/user/check", CheckUserRequest{Email: "ANN@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[CheckUserResponse](t, rec)
	require.True(t, body.Exists)
	require.NotNil(t, body.User)
	require.Equal(t, "ann@example.com", body.User.Email)
	require.NotContains(t, rec.Body.String(), "password")
}

func TestMeReturnsLimits(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/user/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := app.signIn(t, "ann@example.com")
	rec = app.do(t, http.MethodGet, "/api/user/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[MeResponse](t, rec)
	require.Equal(t, "developer", body.User.PricingTier)
	require.Equal(t, 2, body.Limits.ActiveClusterLimit)
	require.Equal(t, map[string]bool{
		"developer":    true,
		"professional": false,
		"enterprise":   false,
	}, body.Permissions)
}

func TestChangeTierReissuesSession(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, "ann@example.com")

	rec := app.do(t, http.MethodPut, "/api/user/tier", ChangeTierRequest{PricingTier: "gold"}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPut, "/api/user/tier", ChangeTierRequest{PricingTier: "enterprise"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "enterprise", decodeBody[UserResponse](t, rec).User.PricingTier)

	reissued := findCookie(t, rec, auth.SessionCookie)
	rec = app.do(t, http.MethodGet, "/api/user/me", nil, reissued)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[MeResponse](t, rec)
	require.Equal(t, 100, me.Limits.ActiveClusterLimit)
	require.True(t, me.Permissions["enterprise"])
	require.False(t, me.Permissions["professional"])
}
