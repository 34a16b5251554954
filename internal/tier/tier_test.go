package tier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	require.Equal(t, 2, Config(Developer).ActiveClusterLimit)
	require.Equal(t, 10, Config(Professional).ActiveClusterLimit)
	require.Equal(t, 100, Config(Enterprise).ActiveClusterLimit)
	require.Equal(t, Professional, Config("  Professional ").Name)
}

func TestConfigFallsBackToLowestTier(t *testing.T) {
	for _, name := range []string{"", "platinum", "ENTERPRISE-ish"} {
		require.Equal(t, Config(Developer), Config(name), name)
	}
}

func TestHasPermission(t *testing.T) {
	cases := []struct {
		user, required string
		want           bool
	}{
		{Developer, Developer, true},
		{Professional, Developer, true},
		{Enterprise, Developer, true},
		{Professional, Professional, true},
		{Developer, Professional, false},
		{Enterprise, Professional, false},
		{Enterprise, Enterprise, true},
		{Professional, Enterprise, false},
		{"unknown", Developer, false},
		{Developer, "unknown", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HasPermission(tc.user, tc.required), "%s requires %s", tc.user, tc.required)
	}
}

func TestValid(t *testing.T) {
	for _, name := range Names() {
		require.True(t, Valid(name))
	}
	require.False(t, Valid("free"))
}
