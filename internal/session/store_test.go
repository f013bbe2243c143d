package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) Notify(_ context.Context, event Event) {
	l.events = append(l.events, event)
}

func TestLoginThenHydrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	store := NewStore(persister, nil, nil)

	require.NoError(t, store.Login(ctx, rbac.RoleAdmin, "admin@gmail.com"))

	fresh := NewStore(persister, nil, nil)
	sess, err := fresh.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{Authenticated: true, Role: rbac.RoleAdmin, Email: "admin@gmail.com"}, sess)
	assert.True(t, fresh.HasRole(rbac.RoleAdmin))
	assert.True(t, fresh.HasPermission(rbac.PermApproveInvoices))
	assert.False(t, fresh.HasPermission(rbac.PermManageUsers))
}

func TestLogoutClearsPersistedKeys(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	store := NewStore(persister, nil, nil)
	require.NoError(t, store.Login(ctx, rbac.RoleVolunteer, "volunteer@gmail.com"))

	require.NoError(t, store.Logout(ctx))

	snap, err := persister.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.Equal(t, Anonymous(), store.Current())
	assert.Empty(t, store.Permissions())
}

func TestHydrateDiscardsIncompleteSnapshot(t *testing.T) {
	cases := map[string]Snapshot{
		"missing role":  {KeyAuthenticated: "true", KeyEmail: "a@ngo.org"},
		"unknown role":  {KeyAuthenticated: "true", KeyRole: "owner", KeyEmail: "a@ngo.org"},
		"missing email": {KeyAuthenticated: "true", KeyRole: "admin"},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			persister := NewMemoryPersister()
			require.NoError(t, persister.Write(ctx, snap))
			store := NewStore(persister, nil, nil)

			sess, err := store.Hydrate(ctx)
			require.NoError(t, err)
			assert.False(t, sess.Authenticated)
			assert.False(t, store.IsAuthenticated())

			stored, err := persister.Read(ctx)
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestHydrateIgnoresUnauthenticatedLeftovers(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	require.NoError(t, persister.Write(ctx, Snapshot{KeyRole: "admin", KeyEmail: "a@ngo.org"}))
	store := NewStore(persister, nil, nil)

	sess, err := store.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, Anonymous(), sess)
	assert.False(t, store.HasRole(rbac.RoleAdmin))
}

type failingReader struct {
	*MemoryPersister
	err error
}

func (f failingReader) Read(context.Context) (Snapshot, error) {
	return nil, f.err
}

func TestHydrateFailureFailsClosed(t *testing.T) {
	boom := errors.New("connection refused")
	store := NewStore(failingReader{MemoryPersister: NewMemoryPersister(), err: boom}, nil, nil)

	sess, err := store.Hydrate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.False(t, sess.Authenticated)
}

func TestPersistenceFailureCommitsNothing(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	events := &eventLog{}
	store := NewStore(persister, events, nil)
	require.NoError(t, store.Login(ctx, rbac.RoleVolunteer, "volunteer@gmail.com"))

	persister.Err = errors.New("disk full")

	err := store.Login(ctx, rbac.RoleAdmin, "admin@gmail.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.Equal(t, Session{Authenticated: true, Role: rbac.RoleVolunteer, Email: "volunteer@gmail.com"}, store.Current())

	err = store.Logout(ctx)
	require.Error(t, err)
	assert.True(t, store.IsAuthenticated())

	persister.Err = nil
	fresh := NewStore(persister, nil, nil)
	sess, err := fresh.Hydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleVolunteer, sess.Role)
	assert.Len(t, events.events, 1)
}

func TestLoginRejectsInvalidInput(t *testing.T) {
	store := NewStore(NewMemoryPersister(), nil, nil)

	err := store.Login(context.Background(), rbac.Role("root"), "a@ngo.org")
	assert.ErrorIs(t, err, rbac.ErrUnknownRole)

	err = store.Login(context.Background(), rbac.RoleAdmin, "  ")
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.False(t, store.IsAuthenticated())
}

func TestNotifierReceivesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	store := NewStore(NewMemoryPersister(), Notifiers{events, LogNotifier{}}, nil)

	require.NoError(t, store.Login(ctx, rbac.RoleSuperAdmin, "superadmin@gmail.com"))
	require.NoError(t, store.Logout(ctx))

	require.Len(t, events.events, 2)
	assert.Equal(t, EventLogin, events.events[0].Kind)
	assert.Equal(t, "superadmin@gmail.com", events.events[0].Email)
	assert.Equal(t, "super_admin", events.events[0].Role)
	assert.Equal(t, EventLogout, events.events[1].Kind)
	assert.Equal(t, "superadmin@gmail.com", events.events[1].Email)
}

func TestUnauthenticatedHoldsNothing(t *testing.T) {
	store := NewStore(NewMemoryPersister(), nil, nil)
	for _, perm := range rbac.Permissions() {
		assert.False(t, store.HasPermission(perm), perm)
	}
	for _, role := range rbac.Roles() {
		assert.False(t, store.HasRole(role), role)
	}
}
