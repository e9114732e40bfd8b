package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/model"
	appErr "github.com/xxxsen/tooldir/internal/pkg/errors"
	"github.com/xxxsen/tooldir/internal/pkg/timeutil"
	"github.com/xxxsen/tooldir/internal/verify"
)

const maxFeedbackChars = 5000

type FeedbackStore interface {
	Create(ctx context.Context, item *model.Feedback) error
}

type FeedbackService struct {
	items FeedbackStore
	codes *VerificationService
}

func NewFeedbackService(items FeedbackStore, codes *VerificationService) *FeedbackService {
	return &FeedbackService{items: items, codes: codes}
}

// Submit accepts feedback from anyone who can read mail at email.
func (s *FeedbackService) Submit(ctx context.Context, email, code, content string) (*model.Feedback, error) {
	email, err := verify.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxFeedbackChars {
		return nil, appErr.ErrInvalid
	}
	if err := s.codes.consume(ctx, email, verify.PurposeFeedback, code); err != nil {
		return nil, err
	}
	item := &model.Feedback{
		ID:      newID(),
		Email:   email,
		Content: content,
		Ctime:   timeutil.NowUnix(),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("feedback accepted", zap.String("feedback_id", item.ID))
	return item, nil
}
