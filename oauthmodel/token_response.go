package oauthmodel

import "strings"

// TokenPair is the data member of a successful login or refresh response.
// Both tokens are rotated on every refresh.
type TokenPair struct {
	// AccessToken is the bearer token attached to API requests.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Authorization: Bearer <accessToken>
	// Lifespan: Short-lived (minutes); a 401 signals it has expired
	AccessToken string `json:"accessToken"`

	// RefreshToken is an opaque token exchanged for a new pair.
	// Example: "9f86d081884c7d659a2feaa0c55ad015"
	// Usage: POST {refreshToken} to the refresh endpoint
	// Security: Single use; the server invalidates it when it rotates the pair
	RefreshToken string `json:"refreshToken"`

	// ExpiresIn is the access token lifetime in seconds, when the server sends it.
	ExpiresIn int `json:"expiresIn,omitempty"`

	// User is the authenticated principal, returned on login only.
	User *Principal `json:"user,omitempty"`
}

// Valid reports whether both tokens are present.
func (p *TokenPair) Valid() bool {
	return p != nil && strings.TrimSpace(p.AccessToken) != "" && strings.TrimSpace(p.RefreshToken) != ""
}

// Principal identifies who a session belongs to.
type Principal struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	TenantID string   `json:"tenantId,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}
