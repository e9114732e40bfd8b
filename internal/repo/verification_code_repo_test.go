package repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tooldir/internal/repo"
	"github.com/xxxsen/tooldir/internal/verify"
)

func newPostgresEngine(t *testing.T, now *time.Time) (*verify.Engine, *repo.VerificationCodeRepo) {
	t.Helper()
	codes := repo.NewVerificationCodeRepo(openTestDB(t))
	engine := verify.NewEngine(codes, codes, verify.Config{},
		verify.WithClock(func() time.Time { return *now }),
		verify.WithGenerator(verify.GeneratorFunc(func() (string, error) { return "PG1234", nil })),
	)
	return engine, codes
}

func TestVerificationCodeRepoLifecycle(t *testing.T) {
	now := time.Unix(1700000000, 0)
	engine, codes := newPostgresEngine(t, &now)
	ctx := context.Background()

	_, err := engine.Issue(ctx, "a@example.com", verify.PurposeRegister)
	require.NoError(t, err)

	rec, err := codes.Get(ctx, verify.Key{Email: "a@example.com", Purpose: verify.PurposeRegister})
	require.NoError(t, err)
	require.Equal(t, verify.HashCode("PG1234"), rec.CodeHash)

	_, err = engine.Issue(ctx, "a@example.com", verify.PurposeRegister)
	te, ok := verify.IsThrottled(err)
	require.True(t, ok)
	require.Equal(t, 60, te.RetryAfterSeconds())

	outcome, err := engine.Verify(ctx, "a@example.com", verify.PurposeRegister, "XXXXXX")
	require.NoError(t, err)
	require.Equal(t, verify.OutcomeMismatch, outcome)

	outcome, err = engine.Verify(ctx, "a@example.com", verify.PurposeRegister, "pg1234")
	require.NoError(t, err)
	require.Equal(t, verify.OutcomeSuccess, outcome)

	outcome, err = engine.Verify(ctx, "a@example.com", verify.PurposeRegister, "PG1234")
	require.NoError(t, err)
	require.Equal(t, verify.OutcomeNotFound, outcome)

	now = now.Add(time.Minute)
	_, err = engine.Issue(ctx, "a@example.com", verify.PurposeRegister)
	require.NoError(t, err)
	outcome, err = engine.Verify(ctx, "a@example.com", verify.PurposeRegister, "PG1234")
	require.NoError(t, err)
	require.Equal(t, verify.OutcomeSuccess, outcome)
}

func TestVerificationCodeRepoExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	engine, _ := newPostgresEngine(t, &now)
	ctx := context.Background()

	_, err := engine.Issue(ctx, "a@example.com", verify.PurposeLogin)
	require.NoError(t, err)
	now = now.Add(verify.DefaultTTL + time.Second)
	outcome, err := engine.Verify(ctx, "a@example.com", verify.PurposeLogin, "PG1234")
	require.NoError(t, err)
	require.Equal(t, verify.OutcomeExpired, outcome)
}

func TestVerificationCodeRepoConcurrentConsume(t *testing.T) {
	now := time.Unix(1700000000, 0)
	engine, _ := newPostgresEngine(t, &now)
	ctx := context.Background()
	_, err := engine.Issue(ctx, "a@example.com", verify.PurposeFeedback)
	require.NoError(t, err)

	var mu sync.Mutex
	successes := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := engine.Verify(ctx, "a@example.com", verify.PurposeFeedback, "PG1234")
			if err == nil && outcome == verify.OutcomeSuccess {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestVerificationCodeRepoDeleteInactive(t *testing.T) {
	now := time.Unix(1700000000, 0)
	engine, codes := newPostgresEngine(t, &now)
	ctx := context.Background()

	_, err := engine.Issue(ctx, "live@example.com", verify.PurposeLogin)
	require.NoError(t, err)
	_, err = engine.Issue(ctx, "used@example.com", verify.PurposeLogin)
	require.NoError(t, err)
	outcome, err := engine.Verify(ctx, "used@example.com", verify.PurposeLogin, "PG1234")
	require.NoError(t, err)
	require.Equal(t, verify.OutcomeSuccess, outcome)

	// still inside the cooldown, nothing may go
	removed, err := codes.DeleteInactive(ctx, now.Unix(), verify.DefaultCooldown)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = codes.DeleteInactive(ctx, now.Add(2*time.Minute).Unix(), verify.DefaultCooldown)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = codes.Get(ctx, verify.Key{Email: "live@example.com", Purpose: verify.PurposeLogin})
	require.NoError(t, err)
}
