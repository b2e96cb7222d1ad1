package auth

import (
	"errors"

	"github.com/jrsteele09/go-workforce-client/apierror"
	wferrors "github.com/jrsteele09/go-workforce-client/internal/errors"
)

var (
	// ErrSessionExpired matches the APIError returned to a caller whose
	// request could not be recovered by a refresh.
	ErrSessionExpired = apierror.ErrAuthExpired

	ErrNotAuthenticated  = wferrors.ErrNotAuthenticated
	ErrNoRefreshToken    = wferrors.ErrNoRefreshToken
	ErrInvalidTokenPair  = wferrors.ErrInvalidToken
	ErrInvalidCredential = errors.New("invalid login request")
	ErrNoTransport       = errors.New("session manager is not installed on a transport")
)
