// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	adminusersfeature "github.com/dalemusser/pinboard/internal/app/features/adminusers"
	auditlogfeature "github.com/dalemusser/pinboard/internal/app/features/auditlog"
	authgooglefeature "github.com/dalemusser/pinboard/internal/app/features/authgoogle"
	boardsfeature "github.com/dalemusser/pinboard/internal/app/features/boards"
	dashboardfeature "github.com/dalemusser/pinboard/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/pinboard/internal/app/features/errors"
	healthfeature "github.com/dalemusser/pinboard/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/pinboard/internal/app/features/heartbeat"
	homefeature "github.com/dalemusser/pinboard/internal/app/features/home"
	loginfeature "github.com/dalemusser/pinboard/internal/app/features/login"
	logoutfeature "github.com/dalemusser/pinboard/internal/app/features/logout"
	messagesfeature "github.com/dalemusser/pinboard/internal/app/features/messages"
	postsfeature "github.com/dalemusser/pinboard/internal/app/features/posts"
	profilefeature "github.com/dalemusser/pinboard/internal/app/features/profile"
	searchfeature "github.com/dalemusser/pinboard/internal/app/features/search"
	settingsfeature "github.com/dalemusser/pinboard/internal/app/features/settings"
	signupfeature "github.com/dalemusser/pinboard/internal/app/features/signup"
	streakfeature "github.com/dalemusser/pinboard/internal/app/features/streak"
	appresources "github.com/dalemusser/pinboard/internal/app/resources"
	"github.com/dalemusser/pinboard/internal/app/store/audit"
	"github.com/dalemusser/pinboard/internal/app/store/oauthstate"
	"github.com/dalemusser/pinboard/internal/app/store/ratelimit"
	"github.com/dalemusser/pinboard/internal/app/store/sessions"
	userstore "github.com/dalemusser/pinboard/internal/app/store/users"
	"github.com/dalemusser/pinboard/internal/app/system/auditlog"
	"github.com/dalemusser/pinboard/internal/app/system/auth"
	"github.com/dalemusser/pinboard/internal/app/system/media"
	"github.com/dalemusser/pinboard/internal/app/system/signin"
	"github.com/dalemusser/pinboard/internal/app/system/streaktracker"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler builds PinBoard's router.
//
// Pages and the JSON API share one cookie session. The API is called by the
// page script, which sends the CSRF token from the page's meta tag in the
// X-CSRF-Token header, so no path is exempt from CSRF checks.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies in production.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Re-read the user on every request so disabled accounts and role
	// changes apply immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db, logger))

	// Dev mode reloads templates from disk.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	// Shared collaborators
	errLog := errorsfeature.NewErrorLogger(logger)
	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Account: appCfg.AuditLogAccount,
		Content: appCfg.AuditLogContent,
	})
	sessionsStore := sessions.New(db)
	starter := signin.New(sessionMgr, sessionsStore, appCfg.SessionMaxAge, logger)
	tracker := streaktracker.New(db, logger)
	uploader := media.NewUploader(deps.MediaStorage, appCfg.MediaMaxBytes)

	// nil disables login and signup limiting
	var rateLimitStore *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimitStore = ratelimit.New(db,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout,
		)
	}

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────
	// Global middleware
	// ─────────────────────────────────────────────────────────────────────────

	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))
	r.Use(sessionMgr.LoadSessionUser)

	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("pinboard_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	if !secure {
		// Plain-HTTP dev servers
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...))

	// ─────────────────────────────────────────────────────────────────────────
	// Platform
	// ─────────────────────────────────────────────────────────────────────────

	uploadsDir := ""
	if appCfg.StorageType == "local" {
		uploadsDir = appCfg.StorageLocalPath
	}
	healthHandler := healthfeature.NewHandler(deps.MongoClient, uploadsDir, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Embedded CSS/JS
	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	// Uploaded media (local storage only; S3 media is served by CloudFront)
	if appCfg.StorageType == "local" {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	homeHandler := homefeature.NewHandler(db, tracker, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// ─────────────────────────────────────────────────────────────────────────
	// Accounts
	// ─────────────────────────────────────────────────────────────────────────

	loginHandler := loginfeature.NewHandler(db, starter, rateLimitStore, errLog, auditLogger, appCfg.GoogleEnabled(), logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	signupHandler := signupfeature.NewHandler(db, starter, rateLimitStore, errLog, auditLogger, logger)
	r.Mount("/signup", signupfeature.Routes(signupHandler))
	r.Mount("/api/auth", signupfeature.APIRoutes(signupHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, sessionsStore, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	heartbeatHandler := heartbeatfeature.NewHandler(sessionsStore, logger)
	r.Mount("/api/heartbeat", heartbeatfeature.Routes(heartbeatHandler))

	if appCfg.GoogleEnabled() {
		googleHandler := authgooglefeature.NewHandler(
			db,
			starter,
			oauthstate.New(db, oauthStateTTL),
			errLog,
			auditLogger,
			appCfg.GoogleClientID,
			appCfg.GoogleClientSecret,
			appCfg.BaseURL,
			logger,
		)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
		logger.Info("Google sign-in enabled", zap.String("redirect_url", appCfg.BaseURL+"/auth/google/callback"))
	}

	settingsHandler := settingsfeature.NewHandler(db, uploader, errLog, auditLogger, logger)
	r.Mount("/settings", settingsfeature.Routes(settingsHandler, sessionMgr))

	// ─────────────────────────────────────────────────────────────────────────
	// Social
	// ─────────────────────────────────────────────────────────────────────────

	postsHandler := postsfeature.NewHandler(db, tracker, uploader, errLog, auditLogger, appCfg.FeedLimit, logger)
	r.Mount("/feed", postsfeature.Routes(postsHandler, sessionMgr))
	r.Mount("/api/posts", postsfeature.APIRoutes(postsHandler, sessionMgr))

	boardsHandler := boardsfeature.NewHandler(db, errLog, auditLogger, logger)
	r.Mount("/boards", boardsfeature.Routes(boardsHandler, sessionMgr))
	r.Mount("/api/boards", boardsfeature.APIRoutes(boardsHandler, sessionMgr))

	profileHandler := profilefeature.NewHandler(db, tracker, errLog, auditLogger, logger)
	r.Mount("/u", profilefeature.Routes(profileHandler, sessionMgr))
	r.Handle("/profile", profileHandler.OwnProfileHandler(sessionMgr))
	r.Mount("/api/follow", profilefeature.FollowRoutes(profileHandler, sessionMgr))
	r.Mount("/api/profile", profilefeature.APIRoutes(profileHandler, sessionMgr))

	messagesHandler := messagesfeature.NewHandler(db, errLog, logger)
	r.Mount("/messages", messagesfeature.Routes(messagesHandler, sessionMgr))
	r.Mount("/api/messages", messagesfeature.APIRoutes(messagesHandler, sessionMgr))

	streakHandler := streakfeature.NewHandler(tracker, errLog, appCfg.LeaderboardLimit, logger)
	r.Mount("/streak", streakfeature.Routes(streakHandler, sessionMgr))
	r.Mount("/api/streak", streakfeature.APIRoutes(streakHandler, sessionMgr))

	searchHandler := searchfeature.NewHandler(db, errLog, logger)
	r.Mount("/search", searchfeature.Routes(searchHandler, sessionMgr))
	r.Mount("/api/search", searchfeature.APIRoutes(searchHandler, sessionMgr))

	// ─────────────────────────────────────────────────────────────────────────
	// Administration (admin role)
	// ─────────────────────────────────────────────────────────────────────────

	dashboardHandler := dashboardfeature.NewHandler(db, errLog, logger)
	r.Mount("/admin", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	adminUsersHandler := adminusersfeature.NewHandler(db, errLog, auditLogger, logger)
	r.Mount("/admin/users", adminusersfeature.Routes(adminUsersHandler, sessionMgr))

	auditLogHandler := auditlogfeature.NewHandler(db, errLog, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditLogHandler, sessionMgr))

	r.NotFound(errorsHandler.NotFound)

	return r, nil
}
