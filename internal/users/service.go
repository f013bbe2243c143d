package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
)

// PasswordHasher turns a submitted password into the token stored on an entry.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Service handles registry business logic. Every mutation is a read-modify-write of
// the whole snapshot and is serialized within the process.
type Service struct {
	mu        sync.Mutex
	repo      RepositoryPort
	hasher    PasswordHasher
	validator *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// List returns registry entries matching filter in registry order.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(all))
	for _, u := range all {
		if filter.match(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Get returns the first entry with email.
func (s *Service) Get(ctx context.Context, email string) (User, error) {
	all, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	if i := indexOf(all, email); i >= 0 {
		return all[i], nil
	}
	return User{}, shared.ErrNotFound
}

// Signup registers a pending volunteer. A taken email is rejected before the
// registry is touched.
func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	in.FullName = normalize(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	if err := s.validator.Struct(in); err != nil {
		return User{}, validationError(err)
	}
	if len(in.Password) > MaxPasswordBytes {
		return User{}, errPasswordTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	if indexOf(all, in.Email) >= 0 {
		return User{}, shared.ErrDuplicate
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{
		FullName:  in.FullName,
		Email:     in.Email,
		Password:  hashed,
		Role:      rbac.RoleVolunteer,
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.save(ctx, append(all, user)); err != nil {
		return User{}, err
	}
	s.logger.InfoContext(ctx, "user signed up", slog.String("email", user.Email))
	return user, nil
}

// Bootstrap makes sure every seed account has an approved registry entry. Seeds
// already present keep their current state; missing ones are appended.
func (s *Service) Bootstrap(ctx context.Context, seeds []SeedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	added := 0
	for _, seed := range seeds {
		if indexOf(all, seed.Email) >= 0 {
			continue
		}
		hashed, err := s.hasher.Hash(seed.Password)
		if err != nil {
			return fmt.Errorf("users: hash seed password: %w", err)
		}
		all = append(all, User{
			FullName:  seed.FullName,
			Email:     seed.Email,
			Password:  hashed,
			Role:      seed.Role,
			Status:    StatusApproved,
			CreatedAt: now,
		})
		added++
	}
	if added == 0 {
		return nil
	}
	if err := s.save(ctx, all); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "registry bootstrapped", slog.Int("accounts", added))
	return nil
}

// Approve marks the entry approved.
func (s *Service) Approve(ctx context.Context, email string) (User, error) {
	return s.setStatus(ctx, email, StatusApproved)
}

// Reject marks the entry rejected.
func (s *Service) Reject(ctx context.Context, email string) (User, error) {
	return s.setStatus(ctx, email, StatusRejected)
}

// ChangeRole overwrites the role of an entry. Super admin entries are immutable.
func (s *Service) ChangeRole(ctx context.Context, email string, role rbac.Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("%w: %w", shared.ErrValidation, rbac.ErrUnknownRole)
	}
	return s.mutate(ctx, email, func(all []User, i int) ([]User, error) {
		if all[i].Role == rbac.RoleSuperAdmin {
			return nil, shared.ErrImmutableAccount
		}
		if all[i].Role == role {
			return nil, nil
		}
		all[i].Role = role
		return all, nil
	})
}

// Delete removes an entry. Super admin entries cannot be deleted.
func (s *Service) Delete(ctx context.Context, email string) (User, error) {
	return s.mutate(ctx, email, func(all []User, i int) ([]User, error) {
		if all[i].Role == rbac.RoleSuperAdmin {
			return nil, shared.ErrImmutableAccount
		}
		return append(all[:i:i], all[i+1:]...), nil
	})
}

func (s *Service) setStatus(ctx context.Context, email string, status Status) (User, error) {
	return s.mutate(ctx, email, func(all []User, i int) ([]User, error) {
		if all[i].Status == status {
			return nil, nil
		}
		all[i].Status = status
		return all, nil
	})
}

// mutate applies fn to the entry with email. fn returns the next snapshot, or nil
// for a no-op. The returned user is the entry as it was targeted after fn ran.
func (s *Service) mutate(ctx context.Context, email string, fn func(all []User, i int) ([]User, error)) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	i := indexOf(all, email)
	if i < 0 {
		return User{}, shared.ErrNotFound
	}
	target := all[i]
	next, err := fn(all, i)
	if err != nil {
		return User{}, err
	}
	if next == nil {
		return target, nil
	}
	if j := indexOf(next, email); j >= 0 {
		target = next[j]
	}
	if err := s.save(ctx, next); err != nil {
		return User{}, err
	}
	return target, nil
}

func (s *Service) load(ctx context.Context) ([]User, error) {
	all, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: load registry: %w: %w", shared.ErrPersistence, err)
	}
	return all, nil
}

func (s *Service) save(ctx context.Context, all []User) error {
	if err := s.repo.Save(ctx, all); err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("users: save registry: %w: %w", shared.ErrPersistence, err)
	}
	return nil
}

func indexOf(all []User, email string) int {
	email = NormalizeEmail(email)
	for i, u := range all {
		if u.Email == email {
			return i
		}
	}
	return -1
}

// NormalizeEmail is the registry key form of an email: trimmed and NFC composed.
// Every lookup goes through it so stored and submitted addresses agree.
func NormalizeEmail(email string) string {
	return normalize(email)
}

func normalize(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

var errPasswordTooLong = fmt.Errorf("%w: password must be at most %d bytes long", shared.ErrValidation, MaxPasswordBytes)

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	tags := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		tags[fe.Tag()] = fe.Field()
	}
	switch {
	case tags["required"] != "":
		return fmt.Errorf("%w: all fields are required", shared.ErrValidation)
	case tags["eqfield"] != "":
		return fmt.Errorf("%w: passwords do not match", shared.ErrValidation)
	case tags["min"] != "":
		return fmt.Errorf("%w: password must be at least 8 characters long", shared.ErrValidation)
	case tags["max"] != "":
		return errPasswordTooLong
	case tags["email"] != "":
		return fmt.Errorf("%w: invalid email address", shared.ErrValidation)
	default:
		return fmt.Errorf("%w: %s is invalid", shared.ErrValidation, fieldErrs[0].Field())
	}
}
