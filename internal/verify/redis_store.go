package verify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/tooldir/internal/model"
)

const defaultRedisPrefix = "tooldir:vc"

// RedisStore keeps one hash per key. Mutate is an optimistic WATCH/MULTI
// transaction, so a lost race surfaces as ErrConflict.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key Key) string {
	return s.prefix + ":code:" + key.String()
}

func (s *RedisStore) Put(ctx context.Context, code *model.VerificationCode, ttl time.Duration) error {
	key, err := KeyOf(code)
	if err != nil {
		return err
	}
	k := s.key(key)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, encodeRecord(code))
		pipe.PExpire(ctx, k, ttl+expiryGrace)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*model.VerificationCode, error) {
	vals, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec, err := decodeRecord(vals)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Mutate(ctx context.Context, key Key, fn MutateFunc) error {
	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return err
		}
		rec, err := decodeRecord(vals)
		if err != nil {
			return err
		}
		switch fn(rec) {
		case ActionSave:
			if rec == nil {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, k, "attempt_count", rec.AttemptCount)
				return nil
			})
		case ActionRetire:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, k)
				return nil
			})
		}
		return err
	}
	err := s.client.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func encodeRecord(code *model.VerificationCode) map[string]interface{} {
	return map[string]interface{}{
		"email":         code.Email,
		"purpose":       code.Purpose,
		"code_hash":     code.CodeHash,
		"created_at":    code.CreatedAt,
		"expires_at":    code.ExpiresAt,
		"attempt_count": code.AttemptCount,
	}
}

func decodeRecord(vals map[string]string) (*model.VerificationCode, error) {
	if len(vals) == 0 || vals["code_hash"] == "" {
		return nil, nil
	}
	rec := &model.VerificationCode{
		Email:    vals["email"],
		Purpose:  vals["purpose"],
		CodeHash: vals["code_hash"],
	}
	var err error
	if rec.CreatedAt, err = strconv.ParseInt(vals["created_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if rec.ExpiresAt, err = strconv.ParseInt(vals["expires_at"], 10, 64); err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	if rec.AttemptCount, err = strconv.Atoi(vals["attempt_count"]); err != nil {
		return nil, fmt.Errorf("decode attempt_count: %w", err)
	}
	return rec, nil
}

// RedisThrottle uses SET NX PX as an atomic check-and-record; the remaining
// PTTL is the retry hint. Redis' own clock is authoritative here.
type RedisThrottle struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisThrottle(client redis.UniversalClient, prefix string) *RedisThrottle {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisThrottle{client: client, prefix: prefix}
}

func (t *RedisThrottle) CheckAndRecord(ctx context.Context, key Key, now time.Time, cooldown time.Duration) (time.Duration, error) {
	k := t.prefix + ":throttle:" + key.String()
	for i := 0; i < 2; i++ {
		ok, err := t.client.SetNX(ctx, k, now.Unix(), cooldown).Result()
		if err != nil {
			return 0, err
		}
		if ok {
			return 0, nil
		}
		left, err := t.client.PTTL(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		if left > 0 {
			return left, nil
		}
		// expired between SETNX and PTTL, or lost its TTL; try again
		if left == -1 {
			_ = t.client.Del(ctx, k).Err()
		}
	}
	return cooldown, nil
}
