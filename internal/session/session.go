// Package session owns the current principal of a browser session: its in-memory
// state, its durable snapshot and the login/logout lifecycle.
package session

import (
	"github.com/ngo-fms/fms/internal/rbac"
)

// Persisted snapshot keys.
const (
	KeyAuthenticated = "isAuthenticated"
	KeyRole          = "userRole"
	KeyEmail         = "userEmail"

	authenticatedTrue = "true"
)

// Keys lists every persisted session key.
func Keys() []string {
	return []string{KeyAuthenticated, KeyRole, KeyEmail}
}

// Session is the runtime record of who is using the system. Role and Email are
// set iff Authenticated is true.
type Session struct {
	Authenticated bool      `json:"isAuthenticated"`
	Role          rbac.Role `json:"role,omitempty"`
	Email         string    `json:"email,omitempty"`
}

// Anonymous is the empty session.
func Anonymous() Session {
	return Session{}
}

// IsAuthenticated implements rbac.Principal.
func (s Session) IsAuthenticated() bool {
	return s.Authenticated
}

// CurrentRole implements rbac.Principal.
func (s Session) CurrentRole() (rbac.Role, bool) {
	if !s.Authenticated || !s.Role.Valid() {
		return "", false
	}
	return s.Role, true
}

// Snapshot is the persisted key/value form of a session. Absent keys are
// missing from the map.
type Snapshot map[string]string

// snapshotOf renders a session as the values to persist.
func snapshotOf(s Session) Snapshot {
	if !s.Authenticated {
		return Snapshot{}
	}
	return Snapshot{
		KeyAuthenticated: authenticatedTrue,
		KeyRole:          string(s.Role),
		KeyEmail:         s.Email,
	}
}

// fromSnapshot reads a persisted snapshot. ok is false when the snapshot claims an
// authenticated session but a required field is missing or invalid.
func fromSnapshot(snap Snapshot) (sess Session, ok bool) {
	if snap[KeyAuthenticated] != authenticatedTrue {
		return Anonymous(), true
	}
	role, err := rbac.ParseRole(snap[KeyRole])
	if err != nil {
		return Anonymous(), false
	}
	email := snap[KeyEmail]
	if email == "" {
		return Anonymous(), false
	}
	return Session{Authenticated: true, Role: role, Email: email}, true
}
