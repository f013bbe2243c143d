package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersister stores a session snapshot in the hash session:<id>.
type RedisPersister struct {
	client *redis.Client
	id     string
	ttl    time.Duration
}

// NewRedisPersister binds a persister to one session id.
func NewRedisPersister(client *redis.Client, id string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, id: id, ttl: ttl}
}

// Read implements Persister.
func (p *RedisPersister) Read(ctx context.Context) (Snapshot, error) {
	values, err := p.client.HGetAll(ctx, redisKey(p.id)).Result()
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(values))
	for _, key := range Keys() {
		if v, ok := values[key]; ok {
			snap[key] = v
		}
	}
	return snap, nil
}

// Write implements Persister. The delete and set run in one MULTI block so readers
// never see a half-written session.
func (p *RedisPersister) Write(ctx context.Context, snap Snapshot) error {
	key := redisKey(p.id)
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, Keys()...)
		if len(snap) > 0 {
			fields := make(map[string]any, len(snap))
			for k, v := range snap {
				fields[k] = v
			}
			pipe.HSet(ctx, key, fields)
			if p.ttl > 0 {
				pipe.Expire(ctx, key, p.ttl)
			}
		}
		return nil
	})
	return err
}

// Touch extends the lifetime of the session hash.
func (p *RedisPersister) Touch(ctx context.Context) error {
	if p.ttl <= 0 {
		return nil
	}
	return p.client.Expire(ctx, redisKey(p.id), p.ttl).Err()
}

// Delete removes the session hash.
func (p *RedisPersister) Delete(ctx context.Context) error {
	return p.client.Del(ctx, redisKey(p.id)).Err()
}

func redisKey(id string) string {
	return "session:" + id
}
