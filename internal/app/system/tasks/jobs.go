// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/pinboard/internal/app/store/oauthstate"
	"github.com/dalemusser/pinboard/internal/app/store/ratelimit"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	"go.uber.org/zap"
)

// SessionCleanupJob removes expired tracked sessions.
func SessionCleanupJob(store *sessions.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "session-cleanup",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up expired sessions", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}

// InactiveSessionJob closes sessions idle for longer than threshold. The
// records stay for the audit trail until they expire.
func InactiveSessionJob(store *sessions.Store, logger *zap.Logger, threshold time.Duration) Job {
	return Job{
		Name:     "inactive-session-cleanup",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := store.CloseInactive(ctx, threshold)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("closed inactive sessions",
					zap.Int64("count", n),
					zap.Duration("threshold", threshold))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob removes expired Google sign-in state tokens.
func OAuthStateCleanupJob(store *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("cleaned up expired oauth states", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}

// RateLimitPurgeJob drops attempt records that no longer count.
func RateLimitPurgeJob(store *ratelimit.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "rate-limit-purge",
		Interval: 30 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteStale(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Debug("purged stale rate limit records", zap.Int64("deleted", n))
			}
			return nil
		},
	}
}
