package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AWS      AWSConfig
	Capture  CaptureConfig
	Recorder RecorderConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	EmbeddedWorker     bool   // run the share worker inside the server process
}

// LogConfig controls the zap logger. An empty File logs to stderr only.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StoreConfig selects where recording metadata and safety events live.
type StoreConfig struct {
	Backend           string // redis, postgres or memory
	KeyPrefix         string
	RecordingsDir     string // durable, app-owned directory for saved recordings
	EvictDeletesFiles bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds device pairing and token settings.
type AuthConfig struct {
	Secret          string
	ExpireHours     int
	PairingCodeHash string // bcrypt hash of the pairing code shown on the device
}

// AWSConfig holds AWS credentials and the bucket shared recordings are uploaded to.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	SharesBucket         string
	PresignExpireMinutes int
}

// CaptureConfig describes how the ffmpeg capture process reads its inputs.
type CaptureConfig struct {
	FFmpegPath  string
	AudioInput  []string // e.g. -f pulse -i default
	VideoInput  []string // e.g. -f v4l2 -i /dev/video0
	TempDir     string   // transient capture output; never the durable location
	StopTimeout time.Duration
}

// RecorderConfig holds session timing settings.
type RecorderConfig struct {
	PollInterval         time.Duration
	SettleDelay          time.Duration
	FinalizePollInterval time.Duration
	FinalizeDeadline     time.Duration
}

// SharingEnabled reports whether a shares bucket is configured.
func (c AWSConfig) SharingEnabled() bool {
	return c.Region != "" && c.SharesBucket != ""
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	dataDir := getEnv("DATA_DIR", filepath.Join(os.TempDir(), "pocketsafety"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			EmbeddedWorker:     getEnvBool("EMBEDDED_WORKER", false),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 14),
		},
		Store: StoreConfig{
			Backend:           strings.ToLower(getEnv("STORE_BACKEND", "redis")),
			KeyPrefix:         getEnv("STORE_KEY_PREFIX", "pocketsafety:"),
			RecordingsDir:     getEnv("RECORDINGS_DIR", filepath.Join(dataDir, "recordings")),
			EvictDeletesFiles: getEnvBool("EVICT_DELETES_FILES", false),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "pocketsafety"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours:     getEnvInt("JWT_EXPIRE_HOURS", 24*30),
			PairingCodeHash: getEnv("PAIRING_CODE_HASH", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SharesBucket:         getEnv("AWS_S3_SHARES_BUCKET", "pocketsafety-shares"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60*24),
		},
		Capture: CaptureConfig{
			FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
			AudioInput:  strings.Fields(getEnv("CAPTURE_AUDIO_INPUT", "-f pulse -i default")),
			VideoInput:  strings.Fields(getEnv("CAPTURE_VIDEO_INPUT", "-f v4l2 -i /dev/video0")),
			TempDir:     getEnv("CAPTURE_TEMP_DIR", filepath.Join(dataDir, "capture")),
			StopTimeout: getEnvDuration("CAPTURE_STOP_TIMEOUT", 10*time.Second),
		},
		Recorder: RecorderConfig{
			PollInterval:         getEnvDuration("RECORDER_POLL_INTERVAL", 500*time.Millisecond),
			SettleDelay:          getEnvDuration("FINALIZE_SETTLE_DELAY", 800*time.Millisecond),
			FinalizePollInterval: getEnvDuration("FINALIZE_POLL_INTERVAL", 200*time.Millisecond),
			FinalizeDeadline:     getEnvDuration("FINALIZE_DEADLINE", 2500*time.Millisecond),
		},
	}

	switch cfg.Store.Backend {
	case "redis", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("750ms") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
