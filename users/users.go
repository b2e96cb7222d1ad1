// Package users holds the user model, its cache keys and the remote
// operations of the users resource.
package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user role either at system or tenant level
type RoleType string

const (
	// System-level roles, held by administrative audience accounts
	RoleSuperAdmin    RoleType = "super_admin"    // Can manage all tenants and system configuration
	RoleSystemAuditor RoleType = "system_auditor" // Can view all tenant data for auditing

	// Tenant-level roles
	RoleTenantAdmin RoleType = "tenant_admin" // Can manage users and settings within a tenant
	RoleManager     RoleType = "manager"      // Runs reviews and goals for direct reports
	RoleEmployee    RoleType = "employee"     // Regular user within a tenant
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInvited  Status = "invited"
	StatusDisabled Status = "disabled"
)

type User struct {
	ID           string     `json:"id"`                  // Unique identifier for the user
	TenantID     string     `json:"tenantId,omitempty"`  // Owning tenant, empty for system accounts
	Email        string     `json:"email"`               // Login email address
	PasswordHash string     `json:"-"`                   // Hashed version of the user's password - never serialize
	FirstName    string     `json:"firstName,omitempty"` // First name of the user
	LastName     string     `json:"lastName,omitempty"`  // Last name of the user
	JobTitle     string     `json:"jobTitle,omitempty"`  // Job title shown in the directory
	Department   string     `json:"department,omitempty"`
	ManagerID    string     `json:"managerId,omitempty"` // Direct manager, used by review cycles
	Roles        []RoleType `json:"roles"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    time.Time  `json:"lastLogin,omitempty"` // Last time the user logged in
}

// Input is the writable part of a User.
type Input struct {
	Email      string     `json:"email" validate:"required,email"`
	FirstName  string     `json:"firstName" validate:"required"`
	LastName   string     `json:"lastName"`
	JobTitle   string     `json:"jobTitle"`
	Department string     `json:"department"`
	ManagerID  string     `json:"managerId"`
	Roles      []RoleType `json:"roles" validate:"dive,oneof=tenant_admin manager employee"`
	Password   string     `json:"password,omitempty"`
}

// Apply copies in onto u. The password is handled by the caller.
func (u *User) Apply(in Input) {
	u.Email = strings.ToLower(in.Email)
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.JobTitle = in.JobTitle
	u.Department = in.Department
	u.ManagerID = in.ManagerID
	if len(in.Roles) > 0 {
		u.Roles = in.Roles
	}
}

// ListParams filters a user listing within the caller's tenant.
type ListParams struct {
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Department string `json:"department,omitempty"`
	Search     string `json:"search,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin returns true if the user has super admin privileges
func (u *User) IsSuperAdmin() bool {
	return u.HasRole(RoleSuperAdmin)
}

// IsSystemAccount reports whether u signs in to the administrative audience.
func (u *User) IsSystemAccount() bool {
	return u.HasRole(RoleSuperAdmin) || u.HasRole(RoleSystemAuditor)
}

// CanManageTenant reports whether u may change tenantID's users.
func (u *User) CanManageTenant(tenantID string) bool {
	if u.IsSuperAdmin() {
		return true
	}
	return u.TenantID == tenantID && u.HasRole(RoleTenantAdmin)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
