package users

import (
	"fmt"
	"time"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
)

// Status tracks where a registry entry is in the approval flow.
type Status string

// Known statuses.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(raw), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", shared.ErrValidation, raw)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// User is a registry entry. Email is the unique key. Password holds whatever token
// the configured credential scheme produced and is only ever compared, never shown.
type User struct {
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Role      rbac.Role `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// SignupInput carries a self-registration request.
type SignupInput struct {
	FullName        string `json:"fullName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ListFilter narrows List results. Zero fields match everything.
type ListFilter struct {
	Role   rbac.Role
	Status Status
}

func (f ListFilter) match(u User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	return true
}
