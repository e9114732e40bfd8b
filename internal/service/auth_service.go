package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/model"
	appErr "github.com/xxxsen/tooldir/internal/pkg/errors"
	"github.com/xxxsen/tooldir/internal/pkg/jwt"
	"github.com/xxxsen/tooldir/internal/pkg/password"
	"github.com/xxxsen/tooldir/internal/pkg/timeutil"
	"github.com/xxxsen/tooldir/internal/verify"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

type RegisterRequest struct {
	Email    string
	Username string
	Password string
	Code     string
}

type AuthService struct {
	users     UserStore
	codes     *VerificationService
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users UserStore, codes *VerificationService, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{users: users, codes: codes, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, string, error) {
	email, err := verify.NormalizeEmail(req.Email)
	if err != nil {
		return nil, "", err
	}
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) || len(req.Password) < password.MinLength {
		return nil, "", appErr.ErrInvalid
	}
	if err := s.codes.consume(ctx, email, verify.PurposeRegister, req.Code); err != nil {
		return nil, "", err
	}
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, "", err
	}
	now := timeutil.NowUnix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Status:       model.UserStatusActive,
		Ctime:        now,
		Mtime:        now,
	}
	// the unique indexes are the authoritative availability check
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID))
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	email, err := verify.NormalizeEmail(email)
	if err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	if !user.Active() {
		return nil, "", appErr.ErrForbidden
	}
	return s.session(user)
}

// LoginWithCode grants a session to whoever proves control of the mailbox.
func (s *AuthService) LoginWithCode(ctx context.Context, email, code string) (*model.User, string, error) {
	email, err := verify.NormalizeEmail(email)
	if err != nil {
		return nil, "", err
	}
	if err := s.codes.consume(ctx, email, verify.PurposeLogin, code); err != nil {
		return nil, "", err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, "", verify.ErrCodeRejected
		}
		return nil, "", err
	}
	if !user.Active() {
		return nil, "", appErr.ErrForbidden
	}
	return s.session(user)
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email, err := verify.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if len(newPassword) < password.MinLength {
		return appErr.ErrInvalid
	}
	if err := s.codes.consume(ctx, email, verify.PurposeResetPassword, code); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return verify.ErrCodeRejected
		}
		return err
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, timeutil.NowUnix()); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// ChangeEmail moves the account to newEmail once the code mailed there is
// confirmed. UpdateEmail re-checks uniqueness in the same statement as the
// swap.
func (s *AuthService) ChangeEmail(ctx context.Context, userID, newEmail, code string) (*model.User, string, error) {
	if userID == "" {
		return nil, "", appErr.ErrUnauthorized
	}
	email, err := verify.NormalizeEmail(newEmail)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, "", appErr.ErrUnauthorized
		}
		return nil, "", err
	}
	if err := s.codes.consume(ctx, email, verify.PurposeEmailChange, code); err != nil {
		return nil, "", err
	}
	now := timeutil.NowUnix()
	if err := s.users.UpdateEmail(ctx, user.ID, email, now); err != nil {
		return nil, "", err
	}
	logutil.GetLogger(ctx).Info("email changed", zap.String("user_id", user.ID))
	user.Email = email
	user.Mtime = now
	return s.session(user)
}

// CheckEmail is advisory; registration still relies on the unique index.
func (s *AuthService) CheckEmail(ctx context.Context, email string) (bool, error) {
	email, err := verify.NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	return available(s.users.GetByEmail(ctx, email))
}

func (s *AuthService) CheckUsername(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return false, appErr.ErrInvalid
	}
	return available(s.users.GetByUsername(ctx, username))
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) session(user *model.User) (*model.User, string, error) {
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func available(_ *model.User, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if appErr.IsNotFound(err) {
		return true, nil
	}
	return false, err
}
