package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tooldir/internal/model"
	appErr "github.com/xxxsen/tooldir/internal/pkg/errors"
	"github.com/xxxsen/tooldir/internal/verify"
)

const testCode = "ABC123"

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]*model.User)}
}

func (m *memUsers) find(match func(u *model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return appErr.ErrConflict
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *memUsers) GetByID(_ context.Context, userID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == userID })
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username })
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.Mtime = mtime
	return nil
}

func (m *memUsers) UpdateEmail(_ context.Context, userID, email string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return appErr.ErrNotFound
	}
	for id, other := range m.byID {
		if id != userID && other.Email == email {
			return appErr.ErrConflict
		}
	}
	u.Email = email
	u.Mtime = mtime
	return nil
}

func (m *memUsers) add(u *model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Status == 0 {
		u.Status = model.UserStatusActive
	}
	m.byID[u.ID] = u
	return u
}

type recordingSender struct {
	mu    sync.Mutex
	mails []*Mail
	err   error
	block bool
}

func (r *recordingSender) Send(ctx context.Context, mail *Mail) error {
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.mails = append(r.mails, mail)
	return nil
}

func (r *recordingSender) sent() []*Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Mail(nil), r.mails...)
}

type memFeedback struct {
	mu    sync.Mutex
	items []*model.Feedback
}

func (m *memFeedback) Create(_ context.Context, item *model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	users    *memUsers
	sender   *recordingSender
	feedback *memFeedback
	clock    *testClock
	codes    *VerificationService
	auth     *AuthService
	fb       *FeedbackService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	engine := verify.NewEngine(
		verify.NewMemoryStore(1024, verify.DefaultTTL),
		verify.NewMemoryThrottle(),
		verify.Config{},
		verify.WithClock(clock.Now),
		verify.WithGenerator(verify.GeneratorFunc(func() (string, error) { return testCode, nil })),
	)
	renderer, err := NewMailRenderer()
	require.NoError(t, err)
	f := &fixture{
		users:    newMemUsers(),
		sender:   &recordingSender{},
		feedback: &memFeedback{},
		clock:    clock,
	}
	f.codes = NewVerificationService(engine, f.users, renderer, NewDispatcher(f.sender, 200*time.Millisecond))
	f.auth = NewAuthService(f.users, f.codes, []byte("test-secret"), time.Hour)
	f.fb = NewFeedbackService(f.feedback, f.codes)
	return f
}
