package oauthmodel

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTokenPair   = errors.New("invalid token pair")
	ErrRefreshTokenReused = errors.New("refresh token already used")
)
