package commands

import (
	"context"
	"fmt"
	"time"

	"searchads-client/internal/components/telemetry"
	"searchads-client/internal/sessionstore"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	KeyPrefix  string `json:"key_prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type SessionStoreConfig struct {
	SQLite sessionstore.SQLiteConfig `json:"sqlite"`
	Redis  RedisConfig               `json:"redis"`
}

type ClientConfig struct {
	APIURL             string  `json:"api_url"`
	ConcurrentRequests int     `json:"concurrent_requests"`
	RequestsPerSecond  float64 `json:"requests_per_second"`
	TimeoutSeconds     int     `json:"timeout_seconds"`
}

type Config struct {
	Client       ClientConfig       `json:"client"`
	SessionStore SessionStoreConfig `json:"session_store"`
	Telemetry    telemetry.Config   `json:"telemetry"`
}

// openStore returns nil when no store is configured. Redis wins when both are.
func (c SessionStoreConfig) openStore(ctx context.Context) (sessionstore.Store, func() error, error) {
	if c.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		err := client.Ping(ctx).Err()
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		ttl := time.Duration(c.Redis.TTLSeconds) * time.Second
		return sessionstore.NewRedis(client, c.Redis.KeyPrefix, ttl), client.Close, nil
	}

	if c.SQLite.File != "" {
		db, err := c.SQLite.OpenDB()
		if err != nil {
			return nil, nil, err
		}
		store, err := sessionstore.NewSQLite(ctx, db, nil)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	}

	return nil, func() error { return nil }, nil
}
