// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds PinBoard's configuration.
//
// Values come from flags, PINBOARD_* environment variables, config files
// and .env (loaded in LoadConfig). WAFFLE's CoreConfig covers the HTTP
// server, TLS, logging and CORS; everything specific to PinBoard lives here
// and is passed to each lifecycle hook.
type AppConfig struct {
	// MongoDB connection
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Cookie sessions
	SessionKey    string        // signing key, must be strong in production
	SessionName   string        // cookie name
	SessionDomain string        // blank means current host
	SessionMaxAge time.Duration // cookie and tracked-session lifetime

	// SessionInactiveAfter closes tracked sessions with no heartbeat for
	// this long. Zero disables the sweep.
	SessionInactiveAfter time.Duration

	// Failed login and signup limiting
	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitLoginLockout  time.Duration

	CSRFKey string // 32+ chars in production

	// Media storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string // e.g. ./uploads
	StorageLocalURL  string // URL prefix local files are served under

	// S3/CloudFront (StorageType "s3" only)
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string

	MediaMaxBytes int64 // cap for avatar and post media uploads

	BaseURL  string // external URL, used for the Google redirect
	SiteName string // shown in page titles and the nav

	// Audit destinations: "all", "db", "log" or "off"
	AuditLogAuth    string // sign-in, sign-out, signup, lockouts
	AuditLogAccount string // password, profile changes
	AuditLogContent string // moderation, board creation

	// Google sign-in; both blank disables it
	GoogleClientID     string
	GoogleClientSecret string

	FeedLimit        int // posts on the feed and GET /api/posts
	LeaderboardLimit int // default leaderboard size

	// SeedAdminEmail names an account promoted to admin at startup.
	SeedAdminEmail string

	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutBatch  time.Duration
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c AppConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
