package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		UI
		Uploads
		Auth
		Bot
		Tasks
		Logging
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	UI struct {
		TemplatesPath string
		StaticPath    string
	}

	Uploads struct {
		Dir        string // Directory where request photos are stored
		MaxSizeMB  int64  // Per-file upload limit
		PublicPath string // URL prefix the directory is served under
	}

	Auth struct {
		SigningSecret    string        // Symmetric key for access tokens; required to serve
		SigningAlgorithm string        // JWT algorithm name (default: HS256)
		TokenTTL         time.Duration // Access token validity window (default: 24h)
		BcryptCost       int
		SecureCookies    bool // Set to false for local dev without HTTPS
		CSRFSecret       string

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}

	Bot struct {
		Token         string        // Telegram bot token; polling is disabled when empty
		PollTimeout   time.Duration // Long-poll timeout for getUpdates
		CodeRetention time.Duration // How long unbound pairing codes are kept
		CleanupSpec   string        // Cron spec for purging stale pairing codes
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}

	Logging struct {
		Level  string
		Pretty bool
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8001)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")

	// Upload defaults
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("upload_max_size_mb", 10)
	v.SetDefault("upload_public_path", "/uploads")

	// Auth defaults
	v.SetDefault("auth_signing_secret", "") // Must be provided; serve refuses to start without it
	v.SetDefault("auth_signing_algorithm", "HS256")
	v.SetDefault("auth_token_ttl", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_csrf_secret", "")
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Bot defaults
	v.SetDefault("bot_token", "")
	v.SetDefault("bot_poll_timeout", "30s")
	v.SetDefault("bot_code_retention", "24h")
	v.SetDefault("bot_cleanup_spec", "0 * * * *") // Hourly at :00

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Uploads: Uploads{
			Dir:        v.GetString("UPLOAD_DIR"),
			MaxSizeMB:  v.GetInt64("UPLOAD_MAX_SIZE_MB"),
			PublicPath: v.GetString("UPLOAD_PUBLIC_PATH"),
		},
		Auth: Auth{
			SigningSecret:    v.GetString("AUTH_SIGNING_SECRET"),
			SigningAlgorithm: v.GetString("AUTH_SIGNING_ALGORITHM"),
			TokenTTL:         v.GetDuration("AUTH_TOKEN_TTL"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			CSRFSecret:       v.GetString("AUTH_CSRF_SECRET"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Bot: Bot{
			Token:         v.GetString("BOT_TOKEN"),
			PollTimeout:   v.GetDuration("BOT_POLL_TIMEOUT"),
			CodeRetention: v.GetDuration("BOT_CODE_RETENTION"),
			CleanupSpec:   v.GetString("BOT_CLEANUP_SPEC"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Logging: Logging{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
	}
}
