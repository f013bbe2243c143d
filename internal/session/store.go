package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
)

// Store owns the current session of one browser. Every mutation writes the durable
// snapshot before the in-memory state changes, so a failed write commits nothing.
type Store struct {
	mu        sync.RWMutex
	current   Session
	persister Persister
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore constructs an empty Store. Call Hydrate to load a persisted session.
func NewStore(persister Persister, notifier Notifier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		current:   Anonymous(),
		persister: persister,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Hydrate loads the persisted session. A snapshot claiming authentication without
// a valid role and email is discarded and the store stays anonymous.
func (s *Store) Hydrate(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.persister.Read(ctx)
	if err != nil {
		s.current = Anonymous()
		return s.current, fmt.Errorf("session: hydrate: %w: %w", shared.ErrPersistence, err)
	}
	sess, ok := fromSnapshot(snap)
	if !ok {
		s.logger.WarnContext(ctx, "discarding incomplete session snapshot",
			slog.Bool("has_role", snap[KeyRole] != ""),
			slog.Bool("has_email", snap[KeyEmail] != ""),
		)
		if err := s.persister.Write(ctx, snapshotOf(Anonymous())); err != nil {
			s.logger.WarnContext(ctx, "clear incomplete session", slog.Any("error", err))
		}
	}
	s.current = sess
	return s.current, nil
}

// Login records an authenticated principal, persists it and emits a login event.
func (s *Store) Login(ctx context.Context, role rbac.Role, email string) error {
	email = strings.TrimSpace(email)
	if !role.Valid() {
		return fmt.Errorf("session: login: %w", rbac.ErrUnknownRole)
	}
	if email == "" {
		return fmt.Errorf("session: login: %w: email required", shared.ErrValidation)
	}
	next := Session{Authenticated: true, Role: role, Email: email}
	if err := s.commit(ctx, next); err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	s.notify(ctx, Event{Kind: EventLogin, Email: email, Role: string(role), At: s.now()})
	return nil
}

// Logout clears the principal, persists the cleared state and emits a logout event.
func (s *Store) Logout(ctx context.Context) error {
	previous := s.Current()
	if err := s.commit(ctx, Anonymous()); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	s.notify(ctx, Event{Kind: EventLogout, Email: previous.Email, Role: string(previous.Role), At: s.now()})
	return nil
}

// Current returns the in-memory session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsAuthenticated implements rbac.Principal.
func (s *Store) IsAuthenticated() bool {
	return s.Current().IsAuthenticated()
}

// CurrentRole implements rbac.Principal.
func (s *Store) CurrentRole() (rbac.Role, bool) {
	return s.Current().CurrentRole()
}

// HasPermission reports whether the current session holds perm.
func (s *Store) HasPermission(perm rbac.Permission) bool {
	return rbac.HasPermission(s.Current(), perm)
}

// HasRole reports whether the current session has exactly role.
func (s *Store) HasRole(role rbac.Role) bool {
	return rbac.HasRole(s.Current(), role)
}

// Permissions lists the permissions of the current session.
func (s *Store) Permissions() []rbac.Permission {
	role, ok := s.CurrentRole()
	if !ok {
		return []rbac.Permission{}
	}
	return rbac.PermissionsOf(role)
}

func (s *Store) rebind(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

func (s *Store) commit(ctx context.Context, next Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persister.Write(ctx, snapshotOf(next)); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPersistence, err)
	}
	s.current = next
	return nil
}

func (s *Store) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}
