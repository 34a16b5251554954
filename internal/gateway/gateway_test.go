package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUsageStatsRelaysResponse(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"diagnoses":3}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	resp, err := client.UsageStats(context.Background(), "ann@example.com", 7)
	require.NoError(t, err)
	require.Equal(t, "/usage/stats", got.URL.Path)
	require.Equal(t, "ann@example.com", got.URL.Query().Get("user_email"))
	require.Equal(t, "7", got.URL.Query().Get("days"))
	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, "application/json", resp.ContentType)
	require.JSONEq(t, `{"diagnoses":3}`, string(resp.Body))
}

func TestUsageStatsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(srv.URL, time.Second, nil)
	_, err := client.UsageStats(context.Background(), "ann@example.com", 30)
	require.Error(t, err)
}
