package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-workforce-client/token"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRevokedTokenCache(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = time.Now })

	c := token.NewInMemoryRevokedTokenCache()
	c.Add("short", now.Add(time.Minute))
	c.Add("long", now.Add(time.Hour))
	c.Add("", now.Add(time.Hour))

	require.True(t, c.IsRevoked("short"))
	require.True(t, c.IsRevoked("long"))
	require.False(t, c.IsRevoked("other"))
	require.False(t, c.IsRevoked(""))

	require.Zero(t, c.Cleanup())

	now = now.Add(10 * time.Minute)
	require.Equal(t, 1, c.Cleanup())
	require.False(t, c.IsRevoked("short"))
	require.True(t, c.IsRevoked("long"))
}
