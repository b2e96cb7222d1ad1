package jwt_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-workforce-client/internal/errors"
	"github.com/jrsteele09/go-workforce-client/token"
	"github.com/jrsteele09/go-workforce-client/token/jwt"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestIssuer_IssueAndVerify(t *testing.T) {
	iss := jwt.NewIssuer("workforce-dev", secret, 15*time.Minute)
	sub := jwt.Subject{UserID: "acme-admin", TenantID: "acme", Roles: []string{"tenant_admin"}}

	raw, issued, err := iss.Issue(sub, jwt.AudienceTenant)
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := iss.Verify(raw, jwt.AudienceTenant)
	require.NoError(t, err)
	require.Equal(t, "acme-admin", claims.Subject)
	require.Equal(t, "acme", claims.Tenant)
	require.Equal(t, []string{"tenant_admin"}, claims.Roles)
	require.Equal(t, issued.ID, claims.ID)

	t.Run("each token gets its own id", func(t *testing.T) {
		_, again, err := iss.Issue(sub, jwt.AudienceTenant)
		require.NoError(t, err)
		require.NotEqual(t, issued.ID, again.ID)
	})

	t.Run("wrong audience", func(t *testing.T) {
		_, err := iss.Verify(raw, jwt.AudienceAdmin)
		require.ErrorIs(t, err, errors.ErrInvalidToken)
		require.ErrorIs(t, err, jwt.ErrWrongAudience)
	})

	t.Run("other secret", func(t *testing.T) {
		other := jwt.NewIssuer("workforce-dev", []byte("another-secret-another-secret-xx"), time.Minute)
		_, err := other.Verify(raw, "")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("empty and malformed", func(t *testing.T) {
		_, err := iss.Verify("  ", "")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
		_, err = iss.Verify("not.a.jwt", "")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestIssuer_Expiry(t *testing.T) {
	issuedAt := time.Now()
	jwt.NowTimeFunc = func() time.Time { return issuedAt }
	t.Cleanup(func() { jwt.NowTimeFunc = time.Now })

	iss := jwt.NewIssuer("workforce-dev", secret, time.Minute)
	raw, _, err := iss.Issue(jwt.Subject{UserID: "u1"}, jwt.AudienceAdmin)
	require.NoError(t, err)

	_, err = iss.Verify(raw, jwt.AudienceAdmin)
	require.NoError(t, err)

	jwt.NowTimeFunc = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = iss.Verify(raw, jwt.AudienceAdmin)
	require.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestIssuer_Revocation(t *testing.T) {
	revoked := token.NewInMemoryRevokedTokenCache()
	iss := jwt.NewIssuer("workforce-dev", secret, time.Minute, jwt.WithRevokedChecker(revoked))

	raw, claims, err := iss.Issue(jwt.Subject{UserID: "u1"}, jwt.AudienceTenant)
	require.NoError(t, err)
	_, err = iss.Verify(raw, jwt.AudienceTenant)
	require.NoError(t, err)

	revoked.Add(claims.ID, claims.ExpiresAt.Time)
	_, err = iss.Verify(raw, jwt.AudienceTenant)
	require.ErrorIs(t, err, errors.ErrInvalidToken)
	require.Contains(t, err.Error(), "revoked")
}
