package users

import "github.com/ngo-fms/fms/internal/rbac"

// SeedAccount is a bootstrap account that keeps the system reachable before any
// registry entries exist.
type SeedAccount struct {
	FullName string
	Email    string
	Password string
	Role     rbac.Role
}

// SeedAccounts returns the fixed bootstrap set, one account per role.
func SeedAccounts() []SeedAccount {
	return []SeedAccount{
		{FullName: "Super Admin", Email: "superadmin@gmail.com", Password: "password123", Role: rbac.RoleSuperAdmin},
		{FullName: "Admin User", Email: "admin@gmail.com", Password: "password123", Role: rbac.RoleAdmin},
		{FullName: "Volunteer User", Email: "volunteer@gmail.com", Password: "password123", Role: rbac.RoleVolunteer},
	}
}
