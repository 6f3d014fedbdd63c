// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/ciaranj/piglet/internal/app/store/emailtokens"
	"github.com/ciaranj/piglet/internal/app/store/oauthstate"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"go.uber.org/zap"
)

// SessionCleanupJob removes expired sessions. The TTL index does this
// eventually; the job keeps the collection tidy between TTL sweeps.
func SessionCleanupJob(sessStore *sessions.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "session-cleanup",
		Interval: 15 * time.Minute,
		Run: func(ctx context.Context) error {
			count, err := sessStore.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("removed expired sessions", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// EmailTokenCleanupJob removes expired email verifications.
func EmailTokenCleanupJob(tokenStore *emailtokens.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "email-token-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := tokenStore.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("removed expired email verifications", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob removes expired OAuth state tokens.
func OAuthStateCleanupJob(stateStore *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := stateStore.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("removed expired oauth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}
