package verify

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/tooldir/internal/model"
)

const (
	memoryLockStripes = 64
	// expiryGrace keeps records around past their TTL so the verifier can
	// still tell Expired apart from NotFound.
	expiryGrace = time.Minute
)

// MemoryStore is a single-process Store. The LRU evicts dead records on its
// own; read-modify-write sequences are serialised per key by lock striping.
type MemoryStore struct {
	cache *expirable.LRU[string, *model.VerificationCode]
	locks [memoryLockStripes]sync.Mutex
}

// NewMemoryStore keeps up to capacity keys for ttl plus a grace period.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 100000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, *model.VerificationCode](capacity, nil, ttl+expiryGrace),
	}
}

func (s *MemoryStore) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%memoryLockStripes]
}

func (s *MemoryStore) Put(_ context.Context, code *model.VerificationCode, _ time.Duration) error {
	key, err := KeyOf(code)
	if err != nil {
		return err
	}
	k := key.String()
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()
	s.cache.Add(k, code.Clone())
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*model.VerificationCode, error) {
	rec, ok := s.cache.Get(key.String())
	if !ok || rec.Consumed() {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	k := key.String()
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()
	if !s.cache.Remove(k) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Mutate(_ context.Context, key Key, fn MutateFunc) error {
	k := key.String()
	mu := s.lock(k)
	mu.Lock()
	defer mu.Unlock()
	var current *model.VerificationCode
	if rec, ok := s.cache.Get(k); ok && !rec.Consumed() {
		current = rec.Clone()
	}
	switch fn(current) {
	case ActionSave:
		if current != nil {
			s.cache.Add(k, current)
		}
	case ActionRetire:
		s.cache.Remove(k)
	}
	return nil
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// MemoryThrottle tracks the next allowed issuance per key.
type MemoryThrottle struct {
	mu            sync.Mutex
	until         map[string]time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{
		until:         make(map[string]time.Time),
		sweepInterval: time.Minute,
	}
}

func (t *MemoryThrottle) CheckAndRecord(_ context.Context, key Key, now time.Time, cooldown time.Duration) (time.Duration, error) {
	k := key.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanupExpiredLocked(now)
	if next, ok := t.until[k]; ok && now.Before(next) {
		return next.Sub(now), nil
	}
	t.until[k] = now.Add(cooldown)
	return 0, nil
}

func (t *MemoryThrottle) cleanupExpiredLocked(now time.Time) {
	if !t.lastSweep.IsZero() && now.Sub(t.lastSweep) < t.sweepInterval {
		return
	}
	for k, next := range t.until {
		if !now.Before(next) {
			delete(t.until, k)
		}
	}
	t.lastSweep = now
}
