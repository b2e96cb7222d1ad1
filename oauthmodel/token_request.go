package oauthmodel

// LoginRequest is the body of POST /auth/login and POST /admin/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// TenantID selects the tenant for users that belong to several.
	// Ignored by the administrative audience.
	TenantID string `json:"tenantId,omitempty"`
}

// RefreshRequest is the body of the refresh endpoints.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest is the body of the logout endpoints. The refresh token is
// sent so the server can revoke it.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}
