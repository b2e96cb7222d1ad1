package devserver

import (
	"fmt"

	"github.com/jrsteele09/go-workforce-client/tenants"
	"github.com/jrsteele09/go-workforce-client/users"
)

// SeedTenants are created when the server starts with seeding on. Each gets
// the directory returned by users.Seed.
var SeedTenants = []tenants.Tenant{
	{ID: "acme", Name: "Acme Corp", Slug: "acme", Domain: "acme.test", Plan: "growth", Status: tenants.StatusActive, Seats: 50},
	{ID: "globex", Name: "Globex", Slug: "globex", Domain: "globex.test", Plan: "starter", Status: tenants.StatusTrial, Seats: 10},
}

// InitialiseData creates the seed tenants, their users and the system
// administrator. Records that already exist are left alone.
func (s *Server) InitialiseData() error {
	now := NowTimeFunc().UTC()
	for _, t := range SeedTenants {
		if _, err := s.tenants.Get(t.ID); err == nil {
			continue
		}
		t.CreatedAt, t.UpdatedAt = now, now
		if err := s.tenants.Upsert(&t); err != nil {
			return fmt.Errorf("[Server InitialiseData] failed to create tenant %s: %w", t.ID, err)
		}
		directory, err := users.Seed(t.ID, t.Domain, DefaultPassword)
		if err != nil {
			return fmt.Errorf("[Server InitialiseData] failed to seed users for %s: %w", t.ID, err)
		}
		for _, u := range directory {
			if err := s.users.Upsert(u); err != nil {
				return fmt.Errorf("[Server InitialiseData] failed to create user %s: %w", u.ID, err)
			}
		}
	}

	if _, err := s.users.GetByEmail(SystemAdminEmail); err != nil {
		root, err := users.SeedSystemAdmin(SystemAdminEmail, DefaultPassword)
		if err != nil {
			return fmt.Errorf("[Server InitialiseData] failed to create system admin: %w", err)
		}
		if err := s.users.Upsert(root); err != nil {
			return fmt.Errorf("[Server InitialiseData] failed to store system admin: %w", err)
		}
	}

	s.logger.Info().
		Int("tenants", len(SeedTenants)).
		Str("admin", SystemAdminEmail).
		Str("password", DefaultPassword).
		Msg("development data seeded")
	return nil
}
