package client

import (
	"context"
	"strings"
	"sync"
	"time"
)

const DefaultDebounce = 500 * time.Millisecond

type CheckFunc func(ctx context.Context, value string) (bool, error)

type AvailabilityResult struct {
	Value     string
	Available bool
	Err       error
}

// AvailabilityChecker debounces availability lookups while the user types.
// Every Input bumps a generation counter; a result is delivered only if no
// newer input arrived while it was in flight.
type AvailabilityChecker struct {
	check    CheckFunc
	onResult func(AvailabilityResult)
	delay    time.Duration

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

func NewAvailabilityChecker(check CheckFunc, onResult func(AvailabilityResult), delay time.Duration) *AvailabilityChecker {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &AvailabilityChecker{check: check, onResult: onResult, delay: delay}
}

// Input records the latest field value. Blank values only cancel.
func (a *AvailabilityChecker) Input(ctx context.Context, value string) {
	value = strings.TrimSpace(value)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.stopLocked()
	if value == "" {
		return
	}
	gen := a.gen
	a.timer = time.AfterFunc(a.delay, func() {
		a.fire(ctx, gen, value)
	})
}

func (a *AvailabilityChecker) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.stopLocked()
}

func (a *AvailabilityChecker) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *AvailabilityChecker) fire(parent context.Context, gen uint64, value string) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel
	a.mu.Unlock()

	ok, err := a.check(ctx, value)

	a.mu.Lock()
	current := gen == a.gen
	if current {
		a.cancel = nil
	}
	a.mu.Unlock()
	cancel()
	if current && a.onResult != nil {
		a.onResult(AvailabilityResult{Value: value, Available: ok, Err: err})
	}
}
