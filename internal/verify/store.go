package verify

import (
	"context"
	"time"

	"github.com/xxxsen/tooldir/internal/model"
)

// Action is what a MutateFunc asks the store to do with the record it saw.
type Action int

const (
	// ActionNone leaves the record untouched.
	ActionNone Action = iota
	// ActionSave writes the modified record back without touching its TTL.
	ActionSave
	// ActionRetire makes the record permanently inert.
	ActionRetire
)

// MutateFunc receives a private copy of the current record, or nil when the
// key holds no active code.
type MutateFunc func(code *model.VerificationCode) Action

// Store keeps at most one active code per Key.
type Store interface {
	// Put replaces whatever the key held; the previous code is dead afterwards.
	Put(ctx context.Context, code *model.VerificationCode, ttl time.Duration) error
	// Get returns ErrNotFound when no active code exists.
	Get(ctx context.Context, key Key) (*model.VerificationCode, error)
	Delete(ctx context.Context, key Key) error
	// Mutate runs fn and applies its Action as one atomic step. It returns
	// ErrConflict when another writer won the race for the same key.
	Mutate(ctx context.Context, key Key, fn MutateFunc) error
}

// ThrottleGuard enforces the minimum interval between issuances of a key.
type ThrottleGuard interface {
	// CheckAndRecord records an issuance at now unless the previous one is
	// younger than cooldown, in which case it returns the remaining wait.
	CheckAndRecord(ctx context.Context, key Key, now time.Time, cooldown time.Duration) (time.Duration, error)
}

// KeyOf rebuilds the identity key of a stored record.
func KeyOf(code *model.VerificationCode) (Key, error) {
	p, err := ParsePurpose(code.Purpose)
	if err != nil {
		return Key{}, err
	}
	return Key{Email: code.Email, Purpose: p}, nil
}
