package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credential schemes accepted by NewMatcher.
const (
	SchemeBcrypt = "bcrypt"
	SchemePlain  = "plain"
)

// CredentialMatcher produces and compares stored credential tokens. It is the only
// place that knows how a password is stored.
type CredentialMatcher interface {
	Hash(password string) (string, error)
	Matches(stored, submitted string) bool
}

// BcryptMatcher stores bcrypt hashes.
type BcryptMatcher struct {
	Cost int
}

// Hash implements CredentialMatcher.
func (m BcryptMatcher) Hash(password string) (string, error) {
	cost := m.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches implements CredentialMatcher.
func (BcryptMatcher) Matches(stored, submitted string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(submitted)) == nil
}

// PlainMatcher compares plaintext tokens. Only for registries written before
// hashing was introduced.
type PlainMatcher struct{}

// Hash implements CredentialMatcher.
func (PlainMatcher) Hash(password string) (string, error) {
	return password, nil
}

// Matches implements CredentialMatcher.
func (PlainMatcher) Matches(stored, submitted string) bool {
	return constantTimeEqual(stored, submitted)
}

// ErrUnknownScheme reports an unsupported credential scheme.
var ErrUnknownScheme = errors.New("auth: unknown credential scheme")

// NewMatcher returns the matcher for scheme.
func NewMatcher(scheme string) (CredentialMatcher, error) {
	switch scheme {
	case "", SchemeBcrypt:
		return BcryptMatcher{}, nil
	case SchemePlain:
		return PlainMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
