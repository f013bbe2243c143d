package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. It never says which part of the
	// submitted credentials was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate indicates a registry entry with the same email already exists.
	ErrDuplicate = errors.New("email already registered")
	// ErrImmutableAccount indicates an attempt to change or remove a super admin entry.
	ErrImmutableAccount = errors.New("account cannot be modified")
	// ErrPersistence wraps failures of the durable store.
	ErrPersistence = errors.New("persistence failure")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
)

// CredentialRejectedMessage is the only message shown for a failed login.
const CredentialRejectedMessage = "Invalid email or password for the selected role"

// UserSafeMessage maps domain errors onto messages that can be shown to end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return CredentialRejectedMessage
	case errors.Is(err, ErrDuplicate):
		return "Email already registered"
	case errors.Is(err, ErrNotFound):
		return "User not found"
	case errors.Is(err, ErrImmutableAccount):
		return "Super admin accounts cannot be changed or deleted"
	case errors.Is(err, ErrValidation):
		return err.Error()
	default:
		return "Something went wrong, please try again"
	}
}
