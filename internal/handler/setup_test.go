package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/tooldir/internal/middleware"
	"github.com/xxxsen/tooldir/internal/model"
	appErr "github.com/xxxsen/tooldir/internal/pkg/errors"
	"github.com/xxxsen/tooldir/internal/pkg/response"
	"github.com/xxxsen/tooldir/internal/service"
	"github.com/xxxsen/tooldir/internal/verify"
)

const (
	testCode = "Q7X2K9"
)

var testSecret = []byte("handler-secret")

type userStub struct {
	mu    sync.Mutex
	users []*model.User
}

func (s *userStub) find(match func(*model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *userStub) Create(_ context.Context, user *model.User) error {
	if _, err := s.find(func(u *model.User) bool { return u.Email == user.Email || u.Username == user.Username }); err == nil {
		return appErr.ErrConflict
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users = append(s.users, &cp)
	return nil
}

func (s *userStub) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.Email == email })
}

func (s *userStub) GetByID(_ context.Context, id string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.ID == id })
}

func (s *userStub) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return s.find(func(u *model.User) bool { return u.Username == username })
}

func (s *userStub) UpdatePassword(_ context.Context, id, hash string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.PasswordHash, u.Mtime = hash, mtime
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (s *userStub) UpdateEmail(_ context.Context, id, email string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *model.User
	for _, u := range s.users {
		if u.Email == email && u.ID != id {
			return appErr.ErrConflict
		}
		if u.ID == id {
			target = u
		}
	}
	if target == nil {
		return appErr.ErrNotFound
	}
	target.Email, target.Mtime = email, mtime
	return nil
}

type feedbackStub struct {
	mu    sync.Mutex
	items []*model.Feedback
}

func (s *feedbackStub) Create(_ context.Context, item *model.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

type senderStub struct {
	mu    sync.Mutex
	fail  bool
	mails []*service.Mail
}

func (s *senderStub) Send(_ context.Context, mail *service.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("connection refused")
	}
	s.mails = append(s.mails, mail)
	return nil
}

type testEnv struct {
	router   *gin.Engine
	users    *userStub
	sender   *senderStub
	feedback *feedbackStub
}

type envOption func(*envConfig)

type envConfig struct {
	store    verify.Store
	throttle verify.ThrottleGuard
}

func withStore(store verify.Store, throttle verify.ThrottleGuard) envOption {
	return func(c *envConfig) {
		c.store = store
		c.throttle = throttle
	}
}

func setupEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &envConfig{
		store:    verify.NewMemoryStore(128, verify.DefaultTTL),
		throttle: verify.NewMemoryThrottle(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	engine := verify.NewEngine(cfg.store, cfg.throttle, verify.Config{},
		verify.WithGenerator(verify.GeneratorFunc(func() (string, error) { return testCode, nil })))
	renderer, err := service.NewMailRenderer()
	require.NoError(t, err)

	env := &testEnv{users: &userStub{}, sender: &senderStub{}, feedback: &feedbackStub{}}
	codes := service.NewVerificationService(engine, env.users, renderer, service.NewDispatcher(env.sender, time.Second))
	auth := service.NewAuthService(env.users, codes, testSecret, time.Hour)
	fb := service.NewFeedbackService(env.feedback, codes)

	router := gin.New()
	router.Use(middleware.RequestID())
	RegisterRoutes(router.Group("/api/v1"), RouterDeps{
		Email:     NewEmailHandler(codes),
		Auth:      NewAuthHandler(auth),
		Feedback:  NewFeedbackHandler(fb),
		JWTSecret: testSecret,
	})
	env.router = router
	return env
}

func (e *testEnv) post(t *testing.T, path string, body interface{}, token string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func dataField(t *testing.T, body response.Body, key string) interface{} {
	t.Helper()
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object")
	return data[key]
}
