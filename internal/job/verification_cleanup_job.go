package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// InactiveCodeCleaner is implemented by repo.VerificationCodeRepo.
type InactiveCodeCleaner interface {
	DeleteInactive(ctx context.Context, now int64, cooldown time.Duration) (int64, error)
}

// VerificationCleanupJob drops rows whose code can no longer be used and
// whose resend cooldown has run out. Removing a row any earlier would
// reopen the throttle window.
type VerificationCleanupJob struct {
	codes    InactiveCodeCleaner
	cooldown time.Duration
	now      func() time.Time
}

func NewVerificationCleanupJob(codes InactiveCodeCleaner, cooldown time.Duration) *VerificationCleanupJob {
	return &VerificationCleanupJob{codes: codes, cooldown: cooldown, now: time.Now}
}

func (j *VerificationCleanupJob) Name() string {
	return "verification_cleanup"
}

func (j *VerificationCleanupJob) Run(ctx context.Context) error {
	if j.codes == nil {
		return nil
	}
	removed, err := j.codes.DeleteInactive(ctx, j.now().Unix(), j.cooldown)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("inactive verification codes removed", zap.Int64("count", removed))
	}
	return nil
}
