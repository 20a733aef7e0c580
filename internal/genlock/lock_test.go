/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package genlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// fakeStore implements Commander with SET NX / compare-and-delete semantics.
type fakeStore struct {
	mu   sync.Mutex
	vals map[string]string
	exps map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{vals: make(map[string]string), exps: make(map[string]time.Time)}
}

func (f *fakeStore) expireLocked(key string) {
	if exp, ok := f.exps[key]; ok && time.Now().After(exp) {
		delete(f.vals, key)
		delete(f.exps, key)
	}
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireLocked(key)
	if _, exists := f.vals[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.vals[key] = value.(string)
	if expiration > 0 {
		f.exps[key] = time.Now().Add(expiration)
	}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := keys[0]
	f.expireLocked(key)
	if f.vals[key] == args[0].(string) {
		delete(f.vals, key)
		delete(f.exps, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

// errStore fails every command, simulating an unreachable Redis.
type errStore struct{}

func (errStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(false, errors.New("connection refused"))
}

func (errStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("connection refused"))
}

func TestAcquireMutualExclusion(t *testing.T) {
	store := newFakeStore()
	lock := New(store, zerolog.Nop())
	ctx := context.Background()

	tokenA := NewOwnerToken()
	tokenB := NewOwnerToken()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, token := range []string{tokenA, tokenB} {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			results[i] = lock.Acquire(ctx, "experience-1", token, time.Minute)
		}(i, token)
	}
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("exactly one concurrent acquire should win, got %v and %v", results[0], results[1])
	}

	// The winner releases; a fresh acquire succeeds.
	winner := tokenA
	if results[1] {
		winner = tokenB
	}
	lock.Release(ctx, "experience-1", winner)

	if !lock.Acquire(ctx, "experience-1", NewOwnerToken(), time.Minute) {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	store := newFakeStore()
	lock := New(store, zerolog.Nop())
	ctx := context.Background()

	tokenA := NewOwnerToken()
	if !lock.Acquire(ctx, "experience-2", tokenA, time.Minute) {
		t.Fatalf("initial acquire failed")
	}

	// A stale holder must not delete the current owner's lock.
	lock.Release(ctx, "experience-2", NewOwnerToken())

	if lock.Acquire(ctx, "experience-2", NewOwnerToken(), time.Minute) {
		t.Fatalf("lock should still be held by tokenA")
	}

	lock.Release(ctx, "experience-2", tokenA)
	if !lock.Acquire(ctx, "experience-2", NewOwnerToken(), time.Minute) {
		t.Fatalf("acquire after rightful release should succeed")
	}
}

func TestAcquireAfterTTLExpiry(t *testing.T) {
	store := newFakeStore()
	lock := New(store, zerolog.Nop())
	ctx := context.Background()

	if !lock.Acquire(ctx, "experience-3", NewOwnerToken(), time.Millisecond) {
		t.Fatalf("initial acquire failed")
	}
	time.Sleep(5 * time.Millisecond)

	if !lock.Acquire(ctx, "experience-3", NewOwnerToken(), time.Minute) {
		t.Fatalf("acquire after expiry should succeed")
	}
}

func TestStoreErrorsAreNotFatal(t *testing.T) {
	lock := New(errStore{}, zerolog.Nop())
	ctx := context.Background()

	if lock.Acquire(ctx, "experience-4", NewOwnerToken(), time.Minute) {
		t.Fatalf("acquire against a broken store should report not acquired")
	}
	// Release must not panic either.
	lock.Release(ctx, "experience-4", NewOwnerToken())
}
