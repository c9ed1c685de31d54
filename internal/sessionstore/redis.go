package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"searchads-client/internal/components/assert"
	"searchads-client/internal/session"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "searchads:session:"

// Redis keeps each snapshot as a json string, TTL 0 means snapshots never expire.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) Redis {
	assert.NotNil(client, "redis client")
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r Redis) key(account string) string {
	return r.prefix + account
}

func (r Redis) Load(ctx context.Context, account string) (session.Snapshot, error) {
	encoded, err := r.client.Get(ctx, r.key(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, err
	}

	var snap session.Snapshot
	err = json.Unmarshal(encoded, &snap)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("sessionstore: decode snapshot: %w", err)
	}
	return snap, nil
}

func (r Redis) Save(ctx context.Context, account string, snap session.Snapshot) error {
	encoded, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(account), encoded, r.ttl).Err()
}

func (r Redis) Delete(ctx context.Context, account string) error {
	return r.client.Del(ctx, r.key(account)).Err()
}
