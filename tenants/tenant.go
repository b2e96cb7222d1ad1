// Package tenants holds the tenant model, its cache keys and the remote
// operations of the tenants resource.
package tenants

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusTrial     Status = "trial"
)

// Tenant is one customer organisation of the HR platform. Every user,
// goal and review belongs to exactly one tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`   // URL-safe identifier (e.g., "acme-corp")
	Domain    string    `json:"domain"` // Email domain users sign in with (e.g., "acme.com")
	Plan      string    `json:"plan"`   // Billing plan name (e.g., "growth")
	Status    Status    `json:"status"`
	Seats     int       `json:"seats"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the writable part of a Tenant.
type Input struct {
	Name   string `json:"name" validate:"required"`
	Slug   string `json:"slug" validate:"required,lowercase"`
	Domain string `json:"domain" validate:"omitempty,fqdn"`
	Plan   string `json:"plan"`
	Status Status `json:"status" validate:"omitempty,oneof=active suspended trial"`
	Seats  int    `json:"seats" validate:"gte=0"`
}

// Apply copies in onto t.
func (t *Tenant) Apply(in Input) {
	t.Name = in.Name
	t.Slug = in.Slug
	t.Domain = in.Domain
	t.Plan = in.Plan
	if in.Status != "" {
		t.Status = in.Status
	}
	t.Seats = in.Seats
}

// ListParams filters a tenant listing.
type ListParams struct {
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Status Status `json:"status,omitempty"`
	Search string `json:"search,omitempty"`
}
