package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// DBConfig holds the index-store connection settings.
type DBConfig struct {
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// PortalConfig holds the upstream portal hosts and HTTP client settings.
type PortalConfig struct {
	HistoricalMidHost string
	UserAgent         string
	RequestTimeout    time.Duration
	MaxRetries        int
}

// ArchiveConfig holds the object-archive (S3-compatible) settings.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	CredentialsFile string
	UploadTimeout   time.Duration
}

// SchedulerConfig holds the worker-pool and checkpoint settings.
type SchedulerConfig struct {
	Workers             int
	BatchMultiplier     int
	CheckpointEvery     int
	CheckpointDir       string
	StaleThreshold      time.Duration
	MaxAttempts         int
	RequestRateDelay    time.Duration
	OptimizerTimeout    time.Duration
	ShutdownDrainExtra  time.Duration
}

// RedisConfig holds the optional advisory-hint layer's connection settings.
// A blank URL disables the layer; the download worker falls back to SQL-only
// leasing with no correctness loss.
type RedisConfig struct {
	URL         string
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Redis     RedisConfig
	Axiom     AxiomConfig
	DB        DBConfig
	Portal    PortalConfig
	Archive   ArchiveConfig
	Scheduler SchedulerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/titleplant.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	cfg.Redis = RedisConfig{
		URL:         getEnv("REDIS_URL", ""),
		BaseBackoff: parseDuration(getEnv("REDIS_COOLDOWN_BASE", "30s"), 30*time.Second),
		MaxBackoff:  parseDuration(getEnv("REDIS_COOLDOWN_MAX", "10m"), 10*time.Minute),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_titleplant",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.DB = DBConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         parseInt(getEnv("DB_PORT", "5432"), 5432),
		Name:         getEnv("DB_NAME", "titleplant"),
		User:         getEnv("DB_USER", "postgres"),
		Password:     getEnv("DB_PASSWORD", ""),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: parseInt(getEnv("DB_MAX_OPEN_CONNS", "10"), 10),
		MaxIdleConns: parseInt(getEnv("DB_MAX_IDLE_CONNS", "5"), 5),
	}

	cfg.Portal = PortalConfig{
		HistoricalMidHost: getEnv("PORTAL_HOST", "https://tools.madison-co.net"),
		UserAgent:         getEnv("PORTAL_USER_AGENT", "titleplant-downloader/1.0"),
		RequestTimeout:    parseDuration(getEnv("PORTAL_REQUEST_TIMEOUT", "30s"), 30*time.Second),
		MaxRetries:        parseInt(getEnv("PORTAL_MAX_RETRIES", "3"), 3),
	}

	cfg.Archive = ArchiveConfig{
		Bucket:          getEnv("GCS_BUCKET_NAME", ""),
		Region:          getEnv("AWS_REGION", "us-east-1"),
		Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
		CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		UploadTimeout:   parseDuration(getEnv("ARCHIVE_UPLOAD_TIMEOUT", "60s"), 60*time.Second),
	}

	cfg.Scheduler = SchedulerConfig{
		Workers:            parseInt(getEnv("SCHEDULER_WORKERS", "5"), 5),
		BatchMultiplier:    parseInt(getEnv("SCHEDULER_BATCH_MULTIPLIER", "10"), 10),
		CheckpointEvery:    parseInt(getEnv("SCHEDULER_CHECKPOINT_EVERY", "100"), 100),
		CheckpointDir:      getEnv("SCHEDULER_CHECKPOINT_DIR", "checkpoints"),
		StaleThreshold:     parseDuration(getEnv("SCHEDULER_STALE_THRESHOLD", "30m"), 30*time.Minute),
		MaxAttempts:        parseInt(getEnv("SCHEDULER_MAX_ATTEMPTS", "5"), 5),
		RequestRateDelay:   parseDuration(getEnv("SCHEDULER_RATE_DELAY", "500ms"), 500*time.Millisecond),
		OptimizerTimeout:   parseDuration(getEnv("OPTIMIZER_TIMEOUT", "120s"), 120*time.Second),
		ShutdownDrainExtra: parseDuration(getEnv("SHUTDOWN_DRAIN_EXTRA", "10s"), 10*time.Second),
	}
	if cfg.Scheduler.Workers < 1 {
		cfg.Scheduler.Workers = 1
	}
	if cfg.Scheduler.Workers > 20 {
		cfg.Scheduler.Workers = 20
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
