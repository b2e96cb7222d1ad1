package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-workforce-client/auth"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateLogin(t *testing.T) {
	v := auth.NewValidator(false)

	t.Run("valid credentials", func(t *testing.T) {
		err := v.ValidateLogin(oauthmodel.LoginRequest{Email: "jane@example.com", Password: "secret"})
		require.NoError(t, err)
	})

	t.Run("missing email", func(t *testing.T) {
		err := v.ValidateLogin(oauthmodel.LoginRequest{Password: "secret"})
		require.ErrorIs(t, err, auth.ErrInvalidCredential)
		require.Contains(t, err.Error(), "email is required")
	})

	t.Run("missing password", func(t *testing.T) {
		err := v.ValidateLogin(oauthmodel.LoginRequest{Email: "jane@example.com"})
		require.ErrorIs(t, err, auth.ErrInvalidCredential)
		require.Contains(t, err.Error(), "password is required")
	})

	t.Run("malformed email", func(t *testing.T) {
		err := v.ValidateLogin(oauthmodel.LoginRequest{Email: "jane", Password: "secret"})
		require.ErrorIs(t, err, auth.ErrInvalidCredential)
		require.Contains(t, err.Error(), "invalid email format")
	})
}

func TestValidator_ValidateTokenPair(t *testing.T) {
	t.Run("opaque tokens accepted by default", func(t *testing.T) {
		v := auth.NewValidator(false)
		require.NoError(t, v.ValidateTokenPair(&oauthmodel.TokenPair{AccessToken: "a1", RefreshToken: "r1"}))
	})

	t.Run("missing refresh token", func(t *testing.T) {
		v := auth.NewValidator(false)
		err := v.ValidateTokenPair(&oauthmodel.TokenPair{AccessToken: "a1"})
		require.ErrorIs(t, err, auth.ErrInvalidTokenPair)
	})

	t.Run("missing access token", func(t *testing.T) {
		v := auth.NewValidator(false)
		err := v.ValidateTokenPair(&oauthmodel.TokenPair{RefreshToken: "r1"})
		require.ErrorIs(t, err, auth.ErrInvalidTokenPair)
	})

	t.Run("whitespace rejected", func(t *testing.T) {
		v := auth.NewValidator(false)
		err := v.ValidateTokenPair(&oauthmodel.TokenPair{AccessToken: "a 1", RefreshToken: "r1"})
		require.ErrorIs(t, err, auth.ErrInvalidTokenPair)
	})

	t.Run("jwt shape required", func(t *testing.T) {
		v := auth.NewValidator(true)
		err := v.ValidateTokenPair(&oauthmodel.TokenPair{AccessToken: "opaque", RefreshToken: "r1"})
		require.ErrorIs(t, err, auth.ErrInvalidTokenPair)
		require.Contains(t, err.Error(), "must be a valid JWT")

		require.NoError(t, v.ValidateTokenPair(&oauthmodel.TokenPair{AccessToken: "h.p.s", RefreshToken: "r1"}))
	})
}

func TestValidator_ValidateAccessToken(t *testing.T) {
	v := auth.NewValidator(true)

	t.Run("empty", func(t *testing.T) {
		require.Error(t, v.ValidateAccessToken("  "))
	})

	t.Run("empty segment", func(t *testing.T) {
		err := v.ValidateAccessToken("header..signature")
		require.Error(t, err)
		require.Contains(t, err.Error(), "part 2 is empty")
	})
}
