package client

import (
	"context"
	"sync"
	"time"
)

// Cooldown is the client-side resend countdown. It only mirrors the
// server's throttle for display; whatever the server reports through Sync
// replaces the local estimate.
type Cooldown struct {
	mu      sync.Mutex
	until   time.Time
	tick    time.Duration
	now     func() time.Time
	onTick  func(remaining time.Duration)
	cancel  context.CancelFunc
	stopped chan struct{}
}

type CooldownOption func(*Cooldown)

func WithTickInterval(d time.Duration) CooldownOption {
	return func(c *Cooldown) { c.tick = d }
}

// NewCooldown calls onTick with the remaining time on every tick and
// once with zero when the countdown ends. onTick may be nil.
func NewCooldown(onTick func(remaining time.Duration), opts ...CooldownOption) *Cooldown {
	c := &Cooldown{
		tick:   time.Second,
		now:    time.Now,
		onTick: onTick,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a countdown of d, replacing any running one.
func (c *Cooldown) Start(ctx context.Context, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	if d <= 0 {
		c.until = time.Time{}
		return
	}
	c.until = c.now().Add(d)
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stopped = make(chan struct{})
	go c.run(ctx, c.until, c.stopped)
}

// Sync adopts the server's retry-after hint, longer or shorter than the
// local countdown.
func (c *Cooldown) Sync(ctx context.Context, retryAfter time.Duration) {
	c.Start(ctx, retryAfter)
}

// Reset cancels the countdown, e.g. when the user edits the email field.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.until = time.Time{}
}

func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Cooldown) Active() bool {
	return c.Remaining() > 0
}

// Wait blocks until the current countdown ends or is cancelled.
func (c *Cooldown) Wait() {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}

func (c *Cooldown) remainingLocked() time.Duration {
	if c.until.IsZero() {
		return 0
	}
	left := c.until.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}

func (c *Cooldown) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Cooldown) run(ctx context.Context, until time.Time, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		if !c.until.Equal(until) {
			// superseded by a newer Start
			c.mu.Unlock()
			return
		}
		left := c.remainingLocked()
		if left == 0 {
			c.until = time.Time{}
		}
		c.mu.Unlock()
		if c.onTick != nil {
			c.onTick(left)
		}
		if left == 0 {
			return
		}
	}
}
