package users

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RegistryKey is the key holding the registry snapshot.
const RegistryKey = "users"

// RepositoryPort stores the registry as a whole snapshot. Save must replace the
// previous snapshot atomically.
type RepositoryPort interface {
	Load(ctx context.Context) ([]User, error)
	Save(ctx context.Context, users []User) error
}

// RedisRepository keeps the registry as a JSON array under RegistryKey.
type RedisRepository struct {
	client *redis.Client
	key    string
}

// NewRedisRepository constructs a RedisRepository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client, key: RegistryKey}
}

// Load returns the stored registry. A missing key is an empty registry.
func (r *RedisRepository) Load(ctx context.Context) ([]User, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []User{}, nil
		}
		return nil, err
	}
	var users []User
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Save replaces the stored registry.
func (r *RedisRepository) Save(ctx context.Context, users []User) error {
	if users == nil {
		users = []User{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

// MemoryRepository keeps the registry in process memory.
type MemoryRepository struct {
	mu    sync.Mutex
	users []User
	// SaveErr, when set, fails every Save without changing the snapshot.
	SaveErr error
}

// NewMemoryRepository returns a MemoryRepository preloaded with users.
func NewMemoryRepository(users ...User) *MemoryRepository {
	return &MemoryRepository{users: cloneUsers(users)}
}

// Load implements RepositoryPort.
func (m *MemoryRepository) Load(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUsers(m.users), nil
}

// Save implements RepositoryPort.
func (m *MemoryRepository) Save(ctx context.Context, users []User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.users = cloneUsers(users)
	return nil
}

func cloneUsers(in []User) []User {
	out := make([]User, len(in))
	copy(out, in)
	return out
}

var (
	_ RepositoryPort = (*RedisRepository)(nil)
	_ RepositoryPort = (*MemoryRepository)(nil)
)
