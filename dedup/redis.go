// Package dedup implements duplicate-message suppression (spec §4.6's
// redirect/vacation duplicate check) against Redis.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a dedup key survives if Config.TTL is unset.
const DefaultTTL = 7 * 24 * time.Hour

// DefaultTimeout is the per-call Redis deadline.
const DefaultTimeout = 2 * time.Second

// Config configures the Redis-backed dedup store.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// TTL is how long a "seen" marker survives (default 7 days).
	TTL time.Duration
	// Timeout is the per-call deadline (default 2s).
	Timeout time.Duration
}

// RedisStore implements the duplicate-suppression hooks an env.ScriptEnv
// wires into DuplicateCheck/DuplicateMark: one key per (user, id),
// namespaced so redirect and vacation never collide over the same message
// ID (callers pass a distinguishing suffix via id, as
// action.CheckRedirectDuplicate/CheckVacationDuplicate already do).
type RedisStore struct {
	cfg    Config
	client *goredis.Client
}

// New creates a Redis-backed dedup store from cfg.
func New(cfg Config) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("dedup: redis URL is required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dedup: invalid URL: %w", err)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &RedisStore{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

func (s *RedisStore) key(id, user string) string {
	return fmt.Sprintf("sieve:dedup:%s:%s", user, id)
}

// Check reports whether (id, user) has already been seen, atomically
// marking it seen for cfg.TTL if not (SETNX doubles as both the check and
// the mark in one round trip). It matches env.ScriptEnv.DuplicateCheck's
// signature; length is accepted for interface compatibility but unused,
// since this store keys purely on id+user.
func (s *RedisStore) Check(id string, length int, user string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	ok, err := s.client.SetNX(ctx, s.key(id, user), 1, s.cfg.TTL).Result()
	if err != nil {
		// Fail open: a Redis outage should not start silently dropping
		// redirects/vacation replies that would otherwise go out.
		return false
	}
	return !ok
}

// Mark is a no-op: Check already marks atomically via SETNX. It exists so
// RedisStore satisfies the DuplicateCheck+DuplicateMark pairing
// env.ScriptEnv expects without a caller needing to special-case this
// store.
func (s *RedisStore) Mark(id string, length int, user string, at time.Time) {}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
