// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables (PINBOARD_MONGO_URI, ...).
const EnvVarPrefix = "PINBOARD"

// appConfigKeys are loaded through WAFFLE's config system from config
// files, PINBOARD_* environment variables and --flags.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "pinboard", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "pinboard-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session lifetime (e.g., 24h, 720h)"},
	{Name: "session_inactive_after", Default: "24h", Desc: "Close tracked sessions idle this long (0 disables)"},

	// Rate limiting
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable login and signup rate limiting"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding the limit"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Media storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded media"},
	{Name: "storage_local_url", Default: "/media", Desc: "URL prefix for serving local media"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "media/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},
	{Name: "media_max_bytes", Default: 10 << 20, Desc: "Max upload size for avatars and post media"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "External base URL (Google redirect)"},
	{Name: "site_name", Default: "PinBoard", Desc: "Site name shown in titles and navigation"},

	// Audit logging
	{Name: "audit_log_auth", Default: "all", Desc: "Auth events: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_account", Default: "all", Desc: "Account events: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_content", Default: "db", Desc: "Content events: 'all' (db+log), 'db', 'log', or 'off'"},

	// Google sign-in
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "feed_limit", Default: 50, Desc: "Posts shown on the feed and latest-posts API"},
	{Name: "leaderboard_limit", Default: 10, Desc: "Default streak leaderboard size"},

	{Name: "seed_admin_email", Default: "", Desc: "Email of an existing account to promote to admin on startup"},

	// Deadlines
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document lookups"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for aggregations and multi-query pages"},
	{Name: "timeout_batch", Default: "60s", Desc: "Deadline for one background job run"},
}

// LoadConfig loads WAFFLE core config and PinBoard's app config.
// Precedence: flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:           appValues.String("session_key"),
		SessionName:          appValues.String("session_name"),
		SessionDomain:        appValues.String("session_domain"),
		SessionMaxAge:        appValues.Duration("session_max_age", 720*time.Hour),
		SessionInactiveAfter: appValues.Duration("session_inactive_after", 24*time.Hour),

		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		CSRFKey: appValues.String("csrf_key"),

		StorageType:        appValues.String("storage_type"),
		StorageLocalPath:   appValues.String("storage_local_path"),
		StorageLocalURL:    appValues.String("storage_local_url"),
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),
		MediaMaxBytes:      int64(appValues.Int("media_max_bytes")),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogAccount: appValues.String("audit_log_account"),
		AuditLogContent: appValues.String("audit_log_content"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		FeedLimit:        appValues.Int("feed_limit"),
		LeaderboardLimit: appValues.Int("leaderboard_limit"),

		SeedAdminEmail: appValues.String("seed_admin_email"),

		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutBatch:  appValues.Duration("timeout_batch", 60*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig rejects configs PinBoard cannot start with.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.StorageType {
	case "local":
		if appCfg.StorageLocalPath == "" || appCfg.StorageLocalURL == "" {
			return fmt.Errorf("storage_local_path and storage_local_url are required for local storage")
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" || appCfg.StorageS3Region == "" {
			return fmt.Errorf("storage_s3_bucket and storage_s3_region are required for s3 storage")
		}
	default:
		return fmt.Errorf("storage_type must be 'local' or 's3', got %q", appCfg.StorageType)
	}

	if appCfg.FeedLimit <= 0 {
		return fmt.Errorf("feed_limit must be positive, got %d", appCfg.FeedLimit)
	}
	if appCfg.LeaderboardLimit <= 0 {
		return fmt.Errorf("leaderboard_limit must be positive, got %d", appCfg.LeaderboardLimit)
	}
	if appCfg.MediaMaxBytes <= 0 {
		return fmt.Errorf("media_max_bytes must be positive, got %d", appCfg.MediaMaxBytes)
	}
	if appCfg.RateLimitEnabled && appCfg.RateLimitLoginAttempts <= 0 {
		return fmt.Errorf("rate_limit_login_attempts must be positive, got %d", appCfg.RateLimitLoginAttempts)
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		logger.Warn("google sign-in disabled: both google_client_id and google_client_secret are required")
	}

	return nil
}
