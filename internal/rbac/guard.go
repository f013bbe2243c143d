package rbac

import "fmt"

// RequirementKind tells which check a destination carries.
type RequirementKind int

const (
	// RequireNothing admits any authenticated session.
	RequireNothing RequirementKind = iota
	// RequireRoleKind admits exactly one role.
	RequireRoleKind
	// RequirePermissionKind admits any role holding a permission.
	RequirePermissionKind
)

// Requirement is the declarative guard attached to a destination. The zero value
// only requires authentication.
type Requirement struct {
	kind       RequirementKind
	role       Role
	permission Permission
}

// Authenticated returns the requirement satisfied by any logged in session.
func Authenticated() Requirement {
	return Requirement{kind: RequireNothing}
}

// RequireRole builds an exact role requirement.
func RequireRole(role Role) Requirement {
	if !role.Valid() {
		panic(fmt.Sprintf("rbac: requirement on unknown role %q", string(role)))
	}
	return Requirement{kind: RequireRoleKind, role: role}
}

// RequirePermission builds a permission membership requirement.
func RequirePermission(perm Permission) Requirement {
	if _, err := ParsePermission(string(perm)); err != nil {
		panic(err.Error())
	}
	return Requirement{kind: RequirePermissionKind, permission: perm}
}

// Declaration mirrors the wire shape {requiredRole?, requiredPermission?}.
type Declaration struct {
	RequiredRole       string `json:"requiredRole,omitempty"`
	RequiredPermission string `json:"requiredPermission,omitempty"`
}

// ParseRequirement validates a declaration. Declaring both fields is rejected.
func ParseRequirement(d Declaration) (Requirement, error) {
	switch {
	case d.RequiredRole != "" && d.RequiredPermission != "":
		return Requirement{}, fmt.Errorf("rbac: destination declares both role %q and permission %q", d.RequiredRole, d.RequiredPermission)
	case d.RequiredRole != "":
		role, err := ParseRole(d.RequiredRole)
		if err != nil {
			return Requirement{}, err
		}
		return Requirement{kind: RequireRoleKind, role: role}, nil
	case d.RequiredPermission != "":
		perm, err := ParsePermission(d.RequiredPermission)
		if err != nil {
			return Requirement{}, err
		}
		return Requirement{kind: RequirePermissionKind, permission: perm}, nil
	default:
		return Authenticated(), nil
	}
}

// Kind returns the requirement kind.
func (r Requirement) Kind() RequirementKind { return r.kind }

// Declaration converts the requirement back into its wire shape.
func (r Requirement) Declaration() Declaration {
	switch r.kind {
	case RequireRoleKind:
		return Declaration{RequiredRole: string(r.role)}
	case RequirePermissionKind:
		return Declaration{RequiredPermission: string(r.permission)}
	default:
		return Declaration{}
	}
}

// Outcome is the result of a guard decision.
type Outcome int

const (
	// Allow lets the navigation proceed.
	Allow Outcome = iota
	// RedirectLogin sends an unauthenticated session to the login screen.
	RedirectLogin
	// RedirectForbidden sends an authenticated but unauthorized session away.
	RedirectForbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectForbidden:
		return "redirect_forbidden"
	default:
		return "unknown"
	}
}

// Decision is what the guard returns. From is set for RedirectLogin and holds the
// destination to resume after login.
type Decision struct {
	Outcome Outcome
	From    string
}

// Decide evaluates a navigation attempt. Authentication is always checked before
// authorization.
func Decide(p Principal, req Requirement, destination string) Decision {
	if p == nil || !p.IsAuthenticated() {
		return Decision{Outcome: RedirectLogin, From: destination}
	}
	switch req.kind {
	case RequireRoleKind:
		if !HasRole(p, req.role) {
			return Decision{Outcome: RedirectForbidden}
		}
	case RequirePermissionKind:
		if !HasPermission(p, req.permission) {
			return Decision{Outcome: RedirectForbidden}
		}
	}
	return Decision{Outcome: Allow}
}
