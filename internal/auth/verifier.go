package auth

import (
	"context"
	"fmt"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
	"github.com/ngo-fms/fms/internal/users"
)

// Registry is the read side of the user registry the verifier searches.
type Registry interface {
	List(ctx context.Context, filter users.ListFilter) ([]users.User, error)
}

// StatusPolicy decides whether a registry entry in a given status may sign in.
type StatusPolicy interface {
	Admits(status users.Status) bool
}

// StatusPolicyFunc adapts a function to StatusPolicy.
type StatusPolicyFunc func(users.Status) bool

// Admits implements StatusPolicy.
func (f StatusPolicyFunc) Admits(status users.Status) bool { return f(status) }

var (
	// RequireApproved admits approved entries only.
	RequireApproved StatusPolicy = StatusPolicyFunc(func(s users.Status) bool { return s == users.StatusApproved })
	// AdmitAnyStatus ignores the approval flow.
	AdmitAnyStatus StatusPolicy = StatusPolicyFunc(func(users.Status) bool { return true })
)

// Verifier establishes who is signing in. Seed accounts are checked before the
// registry, and the role the user picked must be the role the account holds.
type Verifier struct {
	seeds    []users.SeedAccount
	registry Registry
	matcher  CredentialMatcher
	policy   StatusPolicy
}

// NewVerifier constructs a Verifier. A nil policy admits approved entries only.
func NewVerifier(seeds []users.SeedAccount, registry Registry, matcher CredentialMatcher, policy StatusPolicy) *Verifier {
	if policy == nil {
		policy = RequireApproved
	}
	if matcher == nil {
		matcher = BcryptMatcher{}
	}
	return &Verifier{seeds: seeds, registry: registry, matcher: matcher, policy: policy}
}

// Verify returns the role to start a session with. Any mismatch yields
// shared.ErrInvalidCredentials without saying which check failed. Registry
// failures are returned as they are.
func (v *Verifier) Verify(ctx context.Context, email, password string, claimed rbac.Role) (rbac.Role, error) {
	email = users.NormalizeEmail(email)
	if email == "" || password == "" || !claimed.Valid() {
		return "", shared.ErrInvalidCredentials
	}

	for _, seed := range v.seeds {
		if seed.Email == email && constantTimeEqual(seed.Password, password) {
			return checkRole(seed.Role, claimed)
		}
	}

	if v.registry == nil {
		return "", shared.ErrInvalidCredentials
	}
	entries, err := v.registry.List(ctx, users.ListFilter{})
	if err != nil {
		return "", fmt.Errorf("auth: verify: %w", err)
	}
	for _, entry := range entries {
		if users.NormalizeEmail(entry.Email) != email || !v.matcher.Matches(entry.Password, password) {
			continue
		}
		if !v.policy.Admits(entry.Status) {
			return "", shared.ErrInvalidCredentials
		}
		return checkRole(entry.Role, claimed)
	}
	return "", shared.ErrInvalidCredentials
}

func checkRole(held, claimed rbac.Role) (rbac.Role, error) {
	if held != claimed {
		return "", shared.ErrInvalidCredentials
	}
	return held, nil
}
