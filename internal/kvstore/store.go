// Package kvstore implements the capability boundary the transfer
// engine needs against a single logical key-value store, and nothing
// else. Any backend offering them can be substituted; RedisStore is the
// only production implementation, backed by github.com/redis/go-redis/v9.
package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the capability set the engine is allowed to use. It is an
// interface, not a struct, so other backends can stand in for RedisStore.
// WatchedTx hands its body a *Tx, whose reads and enqueued writes run on a
// go-redis transaction, so every implementation still needs a
// Redis-protocol endpoint (the tests use miniredis); there is no
// Redis-free fake.
type Store interface {
	// SetIfAbsent atomically writes value to key only if key is absent.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value at key, or ok=false if absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// DeleteIfEqual atomically deletes key iff its current value equals
	// expected. Implemented server-side (Lua) so it is never a
	// client-side read-then-delete.
	DeleteIfEqual(ctx context.Context, key, expected string) (bool, error)

	// HGetMulti returns the requested hash fields. Missing fields are
	// simply absent from the returned map.
	HGetMulti(ctx context.Context, key string, fields []string) (map[string]string, error)

	// WatchedTx runs body under a WATCH on watchedKeys. If body returns a
	// nil error, any writes enqueued on the Tx commit atomically via
	// MULTI/EXEC, unless a watched key was modified since the watch
	// began, in which case committed is false and err is nil (an
	// optimistic-concurrency abort, and a retry candidate). A non-nil
	// error from body aborts without writing and is returned as err.
	WatchedTx(ctx context.Context, watchedKeys []string, body func(tx *Tx) error) (committed bool, err error)
}

// deleteIfEqualScript is the compare-and-delete compound operation: it
// must never be client-side read-then-delete, because that window
// admits a lost-update race between the read and the delete.
var deleteIfEqualScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisStore is the production Store, backed by a single logical Redis
// instance (or any Redis-protocol-compatible endpoint, including
// miniredis in tests).
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client. The caller owns the
// client's lifecycle (connection pooling, Close).
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) DeleteIfEqual(ctx context.Context, key, expected string) (bool, error) {
	res, err := deleteIfEqualScript.Run(ctx, s.client, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *RedisStore) HGetMulti(ctx context.Context, key string, fields []string) (map[string]string, error) {
	vals, err := s.client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for i, f := range fields {
		if vals[i] == nil {
			continue
		}
		if s, ok := vals[i].(string); ok {
			out[f] = s
		}
	}
	return out, nil
}

func (s *RedisStore) WatchedTx(ctx context.Context, watchedKeys []string, body func(tx *Tx) error) (bool, error) {
	var bodyErr error
	tx := &Tx{ctx: ctx}

	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx.rtx = rtx
		tx.ops = nil

		if bodyErr = body(tx); bodyErr != nil {
			return bodyErr
		}

		if len(tx.ops) == 0 {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range tx.ops {
				if err := op(pipe); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	}, watchedKeys...)

	if bodyErr != nil {
		return false, bodyErr
	}
	if err == redis.TxFailedErr {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Tx is the read/enqueue-write handle passed into a WatchedTx body. Reads
// happen immediately against the watched transaction's connection;
// writes are deferred until the whole body succeeds, then sent as a
// single MULTI/EXEC batch.
type Tx struct {
	ctx context.Context
	rtx *redis.Tx
	ops []func(pipe redis.Pipeliner) error
}

// Get reads a plain string key within the transaction.
func (t *Tx) Get(key string) (string, bool, error) {
	v, err := t.rtx.Get(t.ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// HGetMulti reads hash fields within the transaction.
func (t *Tx) HGetMulti(key string, fields []string) (map[string]string, error) {
	vals, err := t.rtx.HMGet(t.ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for i, f := range fields {
		if vals[i] == nil {
			continue
		}
		if s, ok := vals[i].(string); ok {
			out[f] = s
		}
	}
	return out, nil
}

// EnqueueHSet defers a hash field write into the commit batch.
func (t *Tx) EnqueueHSet(key, field, value string) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) error {
		return pipe.HSet(t.ctx, key, field, value).Err()
	})
}

// EnqueueSet defers a string write with a TTL into the commit batch.
func (t *Tx) EnqueueSet(key, value string, ttl time.Duration) {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) error {
		return pipe.Set(t.ctx, key, value, ttl).Err()
	})
}
