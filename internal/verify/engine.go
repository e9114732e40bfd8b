package verify

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/model"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultCooldown    = 60 * time.Second
	DefaultMaxAttempts = 5
)

type Config struct {
	TTL         time.Duration
	Cooldown    time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

type Option func(*Engine)

func WithGenerator(g Generator) Option {
	return func(e *Engine) { e.gen = g }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Issued is handed to the delivery layer; Code is the only place the plain
// value exists.
type Issued struct {
	Key       Key
	Code      string
	ExpiresAt time.Time
}

type Engine struct {
	store    Store
	throttle ThrottleGuard
	gen      Generator
	now      func() time.Time
	cfg      Config
}

func NewEngine(store Store, throttle ThrottleGuard, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		throttle: throttle,
		gen:      CryptoGenerator{},
		now:      time.Now,
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Issue throttles, generates and stores a fresh code for (email, purpose),
// killing any code the key held before.
func (e *Engine) Issue(ctx context.Context, email string, purpose Purpose) (*Issued, error) {
	key, err := e.key(email, purpose)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("email", key.Email), zap.String("purpose", key.Purpose.String()))
	now := e.now()
	wait, err := e.throttle.CheckAndRecord(ctx, key, now, e.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("%w: throttle: %v", ErrStoreUnavailable, err)
	}
	if wait > 0 {
		terr := &ThrottledError{RetryAfter: wait}
		logger.Info("verification code throttled", zap.Int("retry_after", terr.RetryAfterSeconds()))
		return nil, terr
	}
	code, err := e.gen.Generate()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(e.cfg.TTL)
	record := &model.VerificationCode{
		Email:     key.Email,
		Purpose:   key.Purpose.String(),
		CodeHash:  HashCode(code),
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	if err := e.store.Put(ctx, record, e.cfg.TTL); err != nil {
		return nil, fmt.Errorf("%w: put: %v", ErrStoreUnavailable, err)
	}
	logger.Info("verification code issued", zap.Int64("expires_at", record.ExpiresAt))
	return &Issued{Key: key, Code: code, ExpiresAt: expiresAt}, nil
}

// Verify checks submitted against the active code of (email, purpose) and
// consumes it on success. The returned error is reserved for malformed input
// and store failures; a wrong code is an Outcome, not an error.
func (e *Engine) Verify(ctx context.Context, email string, purpose Purpose, submitted string) (Outcome, error) {
	key, err := e.key(email, purpose)
	if err != nil {
		return OutcomeUnknown, err
	}
	code, err := NormalizeCode(submitted)
	if err != nil {
		return OutcomeUnknown, err
	}
	digest := []byte(HashCode(code))
	now := e.now().Unix()
	outcome := OutcomeUnknown
	err = e.store.Mutate(ctx, key, func(rec *model.VerificationCode) Action {
		var action Action
		outcome, action = e.decide(rec, digest, now)
		return action
	})
	logger := logutil.GetLogger(ctx).With(zap.String("email", key.Email), zap.String("purpose", key.Purpose.String()))
	switch {
	case errors.Is(err, ErrConflict):
		outcome = OutcomeAlreadyConsumed
	case err != nil:
		logger.Error("verification store failed", zap.Error(err))
		return OutcomeUnknown, fmt.Errorf("%w: mutate: %v", ErrStoreUnavailable, err)
	}
	if outcome == OutcomeSuccess {
		logger.Info("verification code consumed")
	} else {
		logger.Warn("verification code rejected", zap.String("outcome", outcome.String()))
	}
	return outcome, nil
}

// decide is the state machine: Active -> Consumed, Active -> Invalidated.
func (e *Engine) decide(rec *model.VerificationCode, digest []byte, now int64) (Outcome, Action) {
	if rec == nil || rec.Consumed() {
		return OutcomeNotFound, ActionNone
	}
	if rec.Expired(now) {
		rec.ConsumedAt = now
		return OutcomeExpired, ActionRetire
	}
	if subtle.ConstantTimeCompare(digest, []byte(rec.CodeHash)) == 1 {
		rec.ConsumedAt = now
		return OutcomeSuccess, ActionRetire
	}
	rec.AttemptCount++
	if rec.AttemptCount >= e.cfg.MaxAttempts {
		rec.ConsumedAt = now
		return OutcomeAttemptsExceeded, ActionRetire
	}
	return OutcomeMismatch, ActionSave
}

// Revoke drops the active code of a key, if any.
func (e *Engine) Revoke(ctx context.Context, email string, purpose Purpose) error {
	key, err := e.key(email, purpose)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: delete: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) key(email string, purpose Purpose) (Key, error) {
	if !purpose.Valid() {
		return Key{}, ErrInvalidPurpose
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return Key{}, err
	}
	return Key{Email: normalized, Purpose: purpose}, nil
}
