package users

import "time"

// Seed returns a small directory for tenantID: a tenant admin, a manager
// and two employees reporting to the manager, all with password as their
// password. It is used to populate development servers.
func Seed(tenantID, domain, password string) ([]*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := func(id, first, last, title, dept, manager string, roles ...RoleType) *User {
		return &User{
			ID:           id,
			TenantID:     tenantID,
			Email:        first + "." + last + "@" + domain,
			PasswordHash: hash,
			FirstName:    first,
			LastName:     last,
			JobTitle:     title,
			Department:   dept,
			ManagerID:    manager,
			Roles:        roles,
			Status:       StatusActive,
			CreatedAt:    now,
		}
	}
	return []*User{
		user(tenantID+"-admin", "ada", "admin", "People Operations Lead", "people", "", RoleTenantAdmin, RoleEmployee),
		user(tenantID+"-mgr", "maria", "manager", "Engineering Manager", "engineering", "", RoleManager, RoleEmployee),
		user(tenantID+"-e1", "eli", "engineer", "Software Engineer", "engineering", tenantID+"-mgr", RoleEmployee),
		user(tenantID+"-e2", "erin", "engineer", "Software Engineer", "engineering", tenantID+"-mgr", RoleEmployee),
	}, nil
}

// SeedSystemAdmin returns an administrative audience account.
func SeedSystemAdmin(email, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           "system-admin",
		Email:        email,
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Admin",
		Roles:        []RoleType{RoleSuperAdmin},
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
