package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type resultLog struct {
	mu      sync.Mutex
	results []AvailabilityResult
}

func (l *resultLog) add(r AvailabilityResult) {
	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
}

func (l *resultLog) snapshot() []AvailabilityResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AvailabilityResult(nil), l.results...)
}

func TestAvailabilityCheckerDebounces(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	check := func(_ context.Context, value string) (bool, error) {
		mu.Lock()
		calls = append(calls, value)
		mu.Unlock()
		return value == "free", nil
	}
	log := &resultLog{}
	a := NewAvailabilityChecker(check, log.add, 30*time.Millisecond)
	defer a.Stop()

	for _, v := range []string{"f", "fr", "fre", "free"} {
		a.Input(context.Background(), v)
	}
	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"free"}, calls)
	mu.Unlock()
	res := log.snapshot()
	require.Len(t, res, 1)
	require.True(t, res[0].Available)
}

func TestAvailabilityCheckerDropsStaleResults(t *testing.T) {
	release := make(chan struct{})
	check := func(ctx context.Context, value string) (bool, error) {
		if value == "slow" {
			<-release
		}
		return true, nil
	}
	log := &resultLog{}
	a := NewAvailabilityChecker(check, log.add, 10*time.Millisecond)
	defer a.Stop()

	a.Input(context.Background(), "slow")
	time.Sleep(30 * time.Millisecond)
	a.Input(context.Background(), "quick")
	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	time.Sleep(30 * time.Millisecond)

	res := log.snapshot()
	require.Len(t, res, 1)
	require.Equal(t, "quick", res[0].Value)
}

func TestAvailabilityCheckerBlankInputCancels(t *testing.T) {
	log := &resultLog{}
	a := NewAvailabilityChecker(func(context.Context, string) (bool, error) { return true, nil }, log.add, 10*time.Millisecond)
	a.Input(context.Background(), "name")
	a.Input(context.Background(), "   ")
	time.Sleep(40 * time.Millisecond)
	require.Empty(t, log.snapshot())
}
