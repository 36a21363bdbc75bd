// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/pinboard/internal/app/resources"
	"github.com/dalemusser/pinboard/internal/app/store/oauthstate"
	"github.com/dalemusser/pinboard/internal/app/store/ratelimit"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/seeding"
	"github.com/dalemusser/pinboard/internal/app/system/tasks"
	"github.com/dalemusser/pinboard/internal/app/system/timeouts"
	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// oauthStateTTL bounds how long a Google sign-in may take.
const oauthStateTTL = 10 * time.Minute

// Startup runs once after the schema is in place and before the handler is
// built. It applies deadlines, loads shared templates and page chrome,
// promotes the seed admin and starts the background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Batch:  appCfg.TimeoutBatch,
	})
	resources.LoadSharedTemplates()
	viewdata.Init(appCfg.SiteName, deps.MongoDatabase)

	if err := seeding.PromoteAdmin(ctx, userstore.New(deps.MongoDatabase), appCfg.SeedAdminEmail, logger); err != nil {
		logger.Error("failed to seed admin user", zap.Error(err))
		return err
	}

	startTaskRunner(deps.MongoDatabase, appCfg, logger)
	return nil
}

// taskRunner is kept for Shutdown.
var taskRunner *tasks.Runner

func startTaskRunner(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	sessStore := sessions.New(db)
	taskRunner.Register(tasks.SessionCleanupJob(sessStore, logger))
	if appCfg.SessionInactiveAfter > 0 {
		taskRunner.Register(tasks.InactiveSessionJob(sessStore, logger, appCfg.SessionInactiveAfter))
	}
	taskRunner.Register(tasks.OAuthStateCleanupJob(oauthstate.New(db, oauthStateTTL), logger))
	if appCfg.RateLimitEnabled {
		limits := ratelimit.New(db, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout)
		taskRunner.Register(tasks.RateLimitPurgeJob(limits, logger))
	}

	taskRunner.Start()
}
