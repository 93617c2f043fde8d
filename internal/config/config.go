package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendSQLite   = "sqlite"

	ConfigSourceFile     = "file"
	ConfigSourcePostgres = "postgres"

	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
	StorageBackendGCS   = "gcs"
	StorageBackendDrive = "drive"
)

type Config struct {
	// Persistence
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	LedgerBackend string
	LedgerTable   string
	SQLitePath    string

	// Sweep configuration source
	SweepConfigSource string
	SweepConfigFile   string
	SweepConfigTable  string
	SweepConfigName   string

	// File source
	StorageBackend    string
	LocalRoot         string
	LocalTrashRoot    string
	LocalOwnerDomain  string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretKey       string
	S3UsePathStyle    bool
	S3TrashPrefix     string
	GCSBucket         string
	GCSTrashPrefix    string
	GoogleCredentials string

	// Sweep tuning
	TimeZone           string
	DiscoverChunkSize  int
	DiscoverCap        int
	DeleteChunkSize    int
	DeleteCap          int
	TrashRatePerSecond float64
	DiscoverSchedule   string
	ReconcileSchedule  string

	// HTTP API
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	JWTSecret          string
	JWTTokenTTL        time.Duration
	CORSOrigins        []string
	RateLimitRPM       int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:    int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(getInt("DB_MIN_CONNS", 1)),
		LedgerBackend: strings.ToLower(getEnv("LEDGER_BACKEND", LedgerBackendSQLite)),
		LedgerTable:   getEnv("LEDGER_TABLE", "file_log"),
		SQLitePath:    getEnv("SQLITE_PATH", "./state/ledger.db"),

		SweepConfigSource: strings.ToLower(getEnv("SWEEP_CONFIG_SOURCE", ConfigSourceFile)),
		SweepConfigFile:   getEnv("SWEEP_CONFIG_FILE", "./sweep.yaml"),
		SweepConfigTable:  getEnv("SWEEP_CONFIG_TABLE", "sweep_config"),
		SweepConfigName:   getEnv("SWEEP_CONFIG_NAME", "default"),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendLocal)),
		LocalRoot:         getEnv("LOCAL_ROOT", "./data"),
		LocalTrashRoot:    getEnv("LOCAL_TRASH_ROOT", "./state/trash"),
		LocalOwnerDomain:  strings.TrimSpace(os.Getenv("LOCAL_OWNER_DOMAIN")),
		S3Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Region:          strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		S3AccessKeyID:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey:       strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
		S3UsePathStyle:    getBool("S3_USE_PATH_STYLE", false),
		S3TrashPrefix:     getEnv("S3_TRASH_PREFIX", ".trash"),
		GCSBucket:         strings.TrimSpace(os.Getenv("GCS_BUCKET")),
		GCSTrashPrefix:    getEnv("GCS_TRASH_PREFIX", ".trash"),
		GoogleCredentials: strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),

		TimeZone:           getEnv("TIME_ZONE", "Asia/Tokyo"),
		DiscoverChunkSize:  getInt("DISCOVER_CHUNK_SIZE", 200),
		DiscoverCap:        getInt("DISCOVER_CAP", 2000),
		DeleteChunkSize:    getInt("DELETE_CHUNK_SIZE", 100),
		DeleteCap:          getInt("DELETE_CAP", 400),
		TrashRatePerSecond: getFloat("TRASH_RATE_PER_SECOND", 0),
		DiscoverSchedule:   strings.TrimSpace(os.Getenv("DISCOVER_SCHEDULE")),
		ReconcileSchedule:  strings.TrimSpace(os.Getenv("RECONCILE_SCHEDULE")),

		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTTokenTTL:        getDuration("JWT_TOKEN_TTL", 24*time.Hour),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every command needs. HTTP-only settings are
// checked by ValidateServer.
func (c *Config) Validate() error {
	if !slices.Contains([]string{LedgerBackendPostgres, LedgerBackendSQLite}, c.LedgerBackend) {
		return fmt.Errorf("LEDGER_BACKEND must be one of: postgres|sqlite")
	}
	if c.LedgerBackend == LedgerBackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres ledger")
	}
	if c.LedgerBackend == LedgerBackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH cannot be empty")
	}
	if strings.TrimSpace(c.LedgerTable) == "" {
		return fmt.Errorf("LEDGER_TABLE cannot be empty")
	}

	switch c.SweepConfigSource {
	case ConfigSourceFile:
		if c.SweepConfigFile == "" {
			return fmt.Errorf("SWEEP_CONFIG_FILE cannot be empty")
		}
	case ConfigSourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres sweep config")
		}
	default:
		return fmt.Errorf("SWEEP_CONFIG_SOURCE must be one of: file|postgres")
	}

	switch c.StorageBackend {
	case StorageBackendLocal:
		if c.LocalRoot == "" || c.LocalTrashRoot == "" {
			return fmt.Errorf("LOCAL_ROOT and LOCAL_TRASH_ROOT are required")
		}
	case StorageBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
	case StorageBackendGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required")
		}
	case StorageBackendDrive:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: local|s3|gcs|drive")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIME_ZONE %q: %w", c.TimeZone, err)
	}

	if c.DiscoverChunkSize <= 0 || c.DiscoverCap <= 0 || c.DeleteChunkSize <= 0 || c.DeleteCap <= 0 {
		return fmt.Errorf("chunk sizes and caps must be positive")
	}
	if c.TrashRatePerSecond < 0 {
		return fmt.Errorf("TRASH_RATE_PER_SECOND cannot be negative")
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be one of: text|json")
	}

	return nil
}

func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// Location returns the reference time zone of cutoffs and ledger timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UsesPostgres reports whether any component needs the database pool.
func (c *Config) UsesPostgres() bool {
	return c.LedgerBackend == LedgerBackendPostgres || c.SweepConfigSource == ConfigSourcePostgres || c.DatabaseURL != ""
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
