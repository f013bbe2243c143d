package rbac

import "fmt"

// rolePermissions is the static grant table. Nothing writes to it after init.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleSuperAdmin: setOf(
		PermManageUsers,
		PermDeleteInvoices,
		PermViewAllInvoices,
		PermViewAllReports,
		PermViewAllFunds,
		PermPromoteUsers,
		PermDemoteUsers,
		PermDeleteUsers,
	),
	RoleAdmin: setOf(
		PermApproveInvoices,
		PermViewAllInvoices,
		PermViewAllReports,
		PermViewAllFunds,
		PermEditInvoices,
		PermEditReports,
		PermEditFunds,
	),
	RoleVolunteer: setOf(
		PermCreateInvoices,
		PermViewAllInvoices,
		PermCreateReports,
		PermViewOwnReports,
	),
}

func init() {
	for _, role := range Roles() {
		if len(rolePermissions[role]) == 0 {
			panic(fmt.Sprintf("rbac: role %q has no permissions", role))
		}
	}
	if len(rolePermissions) != len(Roles()) {
		panic("rbac: permission table has entries for unknown roles")
	}
}

// PermissionsOf returns the permissions granted to role, in declaration order.
// The slice is a copy. Passing a role that did not come from ParseRole or the
// Role constants is a programming error.
func PermissionsOf(role Role) []Permission {
	set, ok := rolePermissions[role]
	if !ok {
		panic(fmt.Sprintf("rbac: permissions requested for unknown role %q", string(role)))
	}
	out := make([]Permission, 0, len(set))
	for _, p := range allPermissions {
		if _, ok := set[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// RoleHas is the membership test against the grant table.
func RoleHas(role Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

func setOf(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
