package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
)

// Validator checks what the session manager sends and receives.
type Validator struct {
	requireJWT bool
	structs    *validator.Validate
}

// NewValidator creates a Validator. With requireJWT set, access tokens must
// have the three-part JWT shape.
func NewValidator(requireJWT bool) *Validator {
	return &Validator{
		requireJWT: requireJWT,
		structs:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateLogin validates login credentials before they are sent.
func (v *Validator) ValidateLogin(req oauthmodel.LoginRequest) error {
	if err := v.structs.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			fe := verrs[0]
			switch fe.Tag() {
			case "required":
				return fmt.Errorf("%w: %s is required", ErrInvalidCredential, strings.ToLower(fe.Field()))
			case "email":
				return fmt.Errorf("%w: invalid email format", ErrInvalidCredential)
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return nil
}

// ValidateTokenPair checks a login or refresh payload. A pair missing either
// token is a failed refresh.
func (v *Validator) ValidateTokenPair(pair *oauthmodel.TokenPair) error {
	if !pair.Valid() {
		return fmt.Errorf("%w: access and refresh tokens are required", ErrInvalidTokenPair)
	}
	if strings.ContainsAny(pair.AccessToken, " \t\r\n") || strings.ContainsAny(pair.RefreshToken, " \t\r\n") {
		return fmt.Errorf("%w: tokens must not contain whitespace", ErrInvalidTokenPair)
	}
	if v.requireJWT {
		if err := v.ValidateAccessToken(pair.AccessToken); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTokenPair, err)
		}
	}
	return nil
}

// ValidateAccessToken validates access token format and presence
func (v *Validator) ValidateAccessToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("access token is required")
	}

	// Basic format check - should be a JWT (3 parts separated by dots)
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("invalid token format: must be a valid JWT")
	}

	// Each part should have content
	for i, part := range parts {
		if len(part) == 0 {
			return fmt.Errorf("invalid token format: part %d is empty", i+1)
		}
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
