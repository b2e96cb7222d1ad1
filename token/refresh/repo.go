package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record behind an opaque refresh
// token. The client only ever sees Token.
type StoredRefreshToken struct {
	Token    string    // Random token string sent to the client
	UserID   string    // Subject the token was issued to
	TenantID string    // Tenant of the subject, empty for system accounts
	Audience string    // Audience the token may refresh
	Family   string    // Rotation chain the token belongs to
	Iat      time.Time // Issued at
}

// Repo stores refresh token records keyed by token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	DeleteFamily(family string) (int, error)
	List(offset, limit int) ([]*StoredRefreshToken, error)
}
