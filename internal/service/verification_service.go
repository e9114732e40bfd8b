package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/model"
	appErr "github.com/xxxsen/tooldir/internal/pkg/errors"
	"github.com/xxxsen/tooldir/internal/verify"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, mtime int64) error
	UpdateEmail(ctx context.Context, userID, email string, mtime int64) error
}

type SendCodeRequest struct {
	Email    string
	Purpose  verify.Purpose
	Template string
	// UserID is the authenticated session, required for email_change.
	UserID string
}

type SendCodeResult struct {
	ExpiresAt time.Time
	Cooldown  time.Duration
}

// VerificationService hosts the purpose adapters: each purpose checks its
// own pre-conditions before the engine issues a code.
type VerificationService struct {
	engine     *verify.Engine
	users      UserStore
	renderer   *MailRenderer
	dispatcher *Dispatcher
}

func NewVerificationService(engine *verify.Engine, users UserStore, renderer *MailRenderer, dispatcher *Dispatcher) *VerificationService {
	return &VerificationService{engine: engine, users: users, renderer: renderer, dispatcher: dispatcher}
}

// SendCode issues and mails a code. A delivery failure is returned as
// ErrDeliveryFailed together with a valid result: the code stays stored.
func (s *VerificationService) SendCode(ctx context.Context, req SendCodeRequest) (*SendCodeResult, error) {
	email, err := verify.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if !s.renderer.Has(req.Template) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, req.Template)
	}
	deliver, err := s.checkIssue(ctx, email, req)
	if err != nil {
		return nil, err
	}
	issued, err := s.engine.Issue(ctx, email, req.Purpose)
	if err != nil {
		return nil, err
	}
	cfg := s.engine.Config()
	result := &SendCodeResult{ExpiresAt: issued.ExpiresAt, Cooldown: cfg.Cooldown}
	logger := logutil.GetLogger(ctx).With(zap.String("email", email), zap.String("purpose", req.Purpose.String()))
	if !deliver {
		logger.Info("verification code issued without delivery")
		return result, nil
	}
	mail, err := s.renderer.Render(req.Template, issued, cfg.TTL)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, mail); err != nil {
		logger.Error("verification mail delivery failed", zap.Error(err))
		return result, err
	}
	return result, nil
}

// checkIssue runs the purpose pre-conditions. deliver is false when the
// code must be issued (so throttling looks identical) but not sent, which
// keeps login and reset_password from revealing whether an account exists.
func (s *VerificationService) checkIssue(ctx context.Context, email string, req SendCodeRequest) (deliver bool, err error) {
	switch req.Purpose {
	case verify.PurposeRegister:
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return false, appErr.ErrConflict
		} else if !appErr.IsNotFound(err) {
			return false, err
		}
		return true, nil
	case verify.PurposeLogin, verify.PurposeResetPassword:
		user, err := s.users.GetByEmail(ctx, email)
		if appErr.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return user.Active(), nil
	case verify.PurposeEmailChange:
		if req.UserID == "" {
			return false, appErr.ErrUnauthorized
		}
		user, err := s.users.GetByID(ctx, req.UserID)
		if err != nil {
			if appErr.IsNotFound(err) {
				return false, appErr.ErrUnauthorized
			}
			return false, err
		}
		if user.Email == email {
			return false, appErr.ErrInvalid
		}
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return false, appErr.ErrConflict
		} else if !appErr.IsNotFound(err) {
			return false, err
		}
		return true, nil
	case verify.PurposeFeedback:
		return true, nil
	default:
		return false, verify.ErrInvalidPurpose
	}
}

// VerifyCode consumes a code without any purpose side effect.
func (s *VerificationService) VerifyCode(ctx context.Context, email string, purpose verify.Purpose, code string) error {
	return s.consume(ctx, email, purpose, code)
}

func (s *VerificationService) consume(ctx context.Context, email string, purpose verify.Purpose, code string) error {
	outcome, err := s.engine.Verify(ctx, email, purpose, code)
	if err != nil {
		return err
	}
	return outcome.Err()
}

func IsDeliveryFailure(err error) bool {
	return errors.Is(err, ErrDeliveryFailed)
}
