/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package genlock provides a best-effort distributed mutual-exclusion lock over
// Redis, used to keep concurrent workers from materializing the same recurrence
// source at the same time. It is non-blocking: a failed acquire means "someone
// else is generating, come back later", never an error the caller must handle.
package genlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skirnir_market/internal/telemetry"
)

const defaultKeyPrefix = "skirnir:genlock:"

// compare-and-delete so a holder never removes a lock that expired and was
// re-acquired by another worker.
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// Commander is the subset of redis.Client the lock needs. Narrowed so tests can
// substitute an in-process fake.
type Commander interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Lock acquires and releases per-source generation locks.
type Lock struct {
	client Commander
	logger zerolog.Logger
	prefix string
}

// New creates a lock manager on top of an existing Redis connection.
func New(client Commander, logger zerolog.Logger) *Lock {
	return &Lock{
		client: client,
		logger: logger.With().Str("component", "genlock").Logger(),
		prefix: defaultKeyPrefix,
	}
}

// NewOwnerToken returns a fresh token proving lock ownership on release.
func NewOwnerToken() string {
	return uuid.NewString()
}

// Acquire attempts SET key token PX ttl NX. It returns true only when no other
// owner currently holds the key. Store errors are logged and reported as "not
// acquired" so a Redis outage degrades to skipped generation runs, not crashes.
func (l *Lock) Acquire(ctx context.Context, key, ownerToken string, ttl time.Duration) bool {
	ok, err := l.client.SetNX(ctx, l.prefix+key, ownerToken, ttl).Result()
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("lock acquire failed, treating as not acquired")
		telemetry.LockAcquisitionsTotal.WithLabelValues("error").Inc()
		return false
	}
	if ok {
		telemetry.LockAcquisitionsTotal.WithLabelValues("acquired").Inc()
	} else {
		telemetry.LockAcquisitionsTotal.WithLabelValues("busy").Inc()
	}
	return ok
}

// Release deletes the lock only while ownerToken still matches the stored
// value. A mismatch (TTL expired, someone else re-acquired) is a silent no-op.
func (l *Lock) Release(ctx context.Context, key, ownerToken string) {
	if err := l.client.Eval(ctx, releaseScript, []string{l.prefix + key}, ownerToken).Err(); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("lock release failed")
	}
}
