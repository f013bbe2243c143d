package users

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client), mr
}

func TestRedisRepositoryMissingKeyIsEmpty(t *testing.T) {
	repo, _ := newRedisRepo(t)

	all, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	repo, mr := newRedisRepo(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entries := []User{
		{FullName: "Admin User", Email: "admin@gmail.com", Password: "x", Role: rbac.RoleAdmin, Status: StatusApproved, CreatedAt: created},
		{FullName: "Amina Yusuf", Email: "amina@ngo.org", Password: "y", Role: rbac.RoleVolunteer, Status: StatusPending, CreatedAt: created},
	}

	require.NoError(t, repo.Save(context.Background(), entries))
	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entries, loaded)

	raw, err := mr.Get(RegistryKey)
	require.NoError(t, err)
	var wire []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &wire))
	require.Len(t, wire, 2)
	for _, key := range []string{"fullName", "email", "password", "role", "status", "createdAt"} {
		assert.Contains(t, wire[0], key)
	}
	assert.Equal(t, "volunteer", wire[1]["role"])
}

func TestRedisRepositoryRejectsUnknownRole(t *testing.T) {
	repo, mr := newRedisRepo(t)
	require.NoError(t, mr.Set(RegistryKey, `[{"email":"x@ngo.org","role":"owner","status":"approved"}]`))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, rbac.ErrUnknownRole)
}

func TestServiceOverRedisWrapsBackendFailure(t *testing.T) {
	repo, mr := newRedisRepo(t)
	svc := NewService(repo, plainHasher{}, nil)
	require.NoError(t, svc.Bootstrap(context.Background(), SeedAccounts()))

	mr.Close()
	_, err := svc.Approve(context.Background(), "admin@gmail.com")
	assert.ErrorIs(t, err, shared.ErrPersistence)
}
