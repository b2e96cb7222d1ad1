package users

import "time"

// Repo stores users for the development server.
type Repo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	// List returns one page of tenantID's users ordered by ID, and the
	// total count. An empty tenantID lists every user.
	List(tenantID string, params ListParams) ([]*User, int, error)
	SetLastLogin(id string, at time.Time) error
}
