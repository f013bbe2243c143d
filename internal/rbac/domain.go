package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRole is returned when parsing a value outside the role set.
	ErrUnknownRole = errors.New("rbac: unknown role")
	// ErrUnknownPermission is returned when parsing a value outside the permission set.
	ErrUnknownPermission = errors.New("rbac: unknown permission")
)

// Role represents a coarse-grained identity classification.
type Role string

// Known roles.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleVolunteer  Role = "volunteer"
)

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleVolunteer}
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleVolunteer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so persisted snapshots cannot
// smuggle in an unknown role.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Permission represents an atomic capability.
type Permission string

// Known permissions.
const (
	PermManageUsers     Permission = "manage_users"
	PermDeleteInvoices  Permission = "delete_invoices"
	PermViewAllInvoices Permission = "view_all_invoices"
	PermViewAllReports  Permission = "view_all_reports"
	PermViewAllFunds    Permission = "view_all_funds"
	PermPromoteUsers    Permission = "promote_users"
	PermDemoteUsers     Permission = "demote_users"
	PermDeleteUsers     Permission = "delete_users"
	PermApproveInvoices Permission = "approve_invoices"
	PermEditInvoices    Permission = "edit_invoices"
	PermEditReports     Permission = "edit_reports"
	PermEditFunds       Permission = "edit_funds"
	PermCreateInvoices  Permission = "create_invoices"
	PermCreateReports   Permission = "create_reports"
	PermViewOwnReports  Permission = "view_own_reports"
)

var allPermissions = []Permission{
	PermManageUsers,
	PermDeleteInvoices,
	PermViewAllInvoices,
	PermViewAllReports,
	PermViewAllFunds,
	PermPromoteUsers,
	PermDemoteUsers,
	PermDeleteUsers,
	PermApproveInvoices,
	PermEditInvoices,
	PermEditReports,
	PermEditFunds,
	PermCreateInvoices,
	PermCreateReports,
	PermViewOwnReports,
}

// Permissions lists every known permission.
func Permissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission converts raw input into a Permission.
func ParsePermission(raw string) (Permission, error) {
	for _, p := range allPermissions {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
}

func (p Permission) String() string { return string(p) }

// Principal describes the actor whose access is being evaluated.
type Principal interface {
	IsAuthenticated() bool
	// CurrentRole returns the role and true only for authenticated principals.
	CurrentRole() (Role, bool)
}

// HasPermission reports whether the principal holds perm. Unauthenticated
// principals hold nothing.
func HasPermission(p Principal, perm Permission) bool {
	if p == nil || !p.IsAuthenticated() {
		return false
	}
	role, ok := p.CurrentRole()
	if !ok {
		return false
	}
	return RoleHas(role, perm)
}

// HasRole reports whether the principal is authenticated with exactly role.
func HasRole(p Principal, role Role) bool {
	if p == nil || !p.IsAuthenticated() {
		return false
	}
	current, ok := p.CurrentRole()
	return ok && current == role
}
