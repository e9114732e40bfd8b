package verify

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidCode    = errors.New("code must be 6 letters or digits")
	ErrInvalidPurpose = errors.New("invalid verification type")
	// ErrCodeRejected is the single caller-facing verdict for every
	// non-success outcome.
	ErrCodeRejected     = errors.New("invalid or expired code")
	ErrNotFound         = errors.New("verification code not found")
	ErrConflict         = errors.New("verification code modified concurrently")
	ErrStoreUnavailable = errors.New("verification store unavailable")
)

type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting another code", e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds up so a client never retries early.
func (e *ThrottledError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func IsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
