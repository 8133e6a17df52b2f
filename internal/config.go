package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Public base URL of this service
	BaseURL string

	// AI Provider Configuration
	AIProvider            string // "gemini" or "mock"
	GoogleAPIKey          string
	GeminiBaseURL         string // Optional API endpoint override
	GeminiInspectionModel string
	GeminiSummaryModel    string
	AIMaxRetries          int
	AIRetryBaseDelay      time.Duration
	AIRequestTimeout      time.Duration
	AIRequestsPerSecond   float64 // 0 disables outbound limiting

	// Upload Configuration
	UploadMaxBytes        int64
	UploadPollInterval    time.Duration
	UploadPollMaxAttempts int

	// Storage Configuration (evidence archive)
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Baselines
	BaselineStore     string // "static", "postgres" or "sqlite"
	DatabaseURL       string
	BaselinesFile     string // Optional YAML with per-property baselines
	DefaultPropertyID string

	// Baseline overrides for the default property. Empty keeps the built-in reference.
	BaselineKitchen    string
	BaselineBathroom   string
	BaselineLivingRoom string
	BaselineBedroom    string

	// Optional YAML replacing the built-in room inventories
	InventoryFile string

	// Sessions
	SessionTTL time.Duration

	// Worker Configuration
	WorkerConcurrency int
	WorkerQueueSize   int
	WorkerJobTimeout  time.Duration

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string

	// Per-IP request limit on the API
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),

		// AI provider defaults
		AIProvider:            getEnv("AI_PROVIDER", "mock"),
		GoogleAPIKey:          getEnv("GOOGLE_API_KEY", ""),
		GeminiBaseURL:         getEnv("GEMINI_BASE_URL", ""),
		GeminiInspectionModel: getEnv("GEMINI_INSPECTION_MODEL", "gemini-3-pro-preview"),
		GeminiSummaryModel:    getEnv("GEMINI_SUMMARY_MODEL", "gemini-2.5-flash"),
		AIMaxRetries:          getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay:      getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout:      getEnvDuration("AI_REQUEST_TIMEOUT", 120*time.Second),
		AIRequestsPerSecond:   getEnvFloat("AI_REQUESTS_PER_SECOND", 0),

		// Upload defaults: 10MB, poll once a second for up to a minute
		UploadMaxBytes:        getEnvInt64("UPLOAD_MAX_BYTES", 10<<20),
		UploadPollInterval:    getEnvDuration("UPLOAD_POLL_INTERVAL", 1*time.Second),
		UploadPollMaxAttempts: getEnvInt("UPLOAD_POLL_MAX_ATTEMPTS", 60),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Baselines default to the built-in set
		BaselineStore:      getEnv("BASELINE_STORE", "static"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		BaselinesFile:      getEnv("BASELINES_FILE", ""),
		DefaultPropertyID:  getEnv("DEFAULT_PROPERTY_ID", "default"),
		BaselineKitchen:    getEnv("BASELINE_KITCHEN", ""),
		BaselineBathroom:   getEnv("BASELINE_BATHROOM", ""),
		BaselineLivingRoom: getEnv("BASELINE_LIVING_ROOM", ""),
		BaselineBedroom:    getEnv("BASELINE_BEDROOM", ""),

		InventoryFile: getEnv("INVENTORY_FILE", ""),

		SessionTTL: getEnvDuration("SESSION_TTL", 2*time.Hour),

		// Worker defaults
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerQueueSize:   getEnvInt("WORKER_QUEUE_SIZE", 64),
		WorkerJobTimeout:  getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate AI provider configuration
	if cfg.AIProvider == "gemini" {
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required when AI_PROVIDER is 'gemini'")
		}
	} else if cfg.AIProvider != "mock" {
		return nil, fmt.Errorf("AI_PROVIDER must be either 'gemini' or 'mock', got: %s", cfg.AIProvider)
	}

	// Validate baseline store configuration
	switch cfg.BaselineStore {
	case "static":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when BASELINE_STORE is 'postgres'")
		}
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "file:turnover.db?_pragma=busy_timeout(5000)"
		}
	default:
		return nil, fmt.Errorf("BASELINE_STORE must be 'static', 'postgres' or 'sqlite', got: %s", cfg.BaselineStore)
	}

	if cfg.UploadMaxBytes <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got: %d", cfg.UploadMaxBytes)
	}
	if cfg.UploadPollMaxAttempts < 1 {
		return nil, fmt.Errorf("UPLOAD_POLL_MAX_ATTEMPTS must be at least 1, got: %d", cfg.UploadPollMaxAttempts)
	}
	if cfg.RateLimitRequests < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", cfg.RateLimitRequests)
	}

	return cfg, nil
}

// BaselineOverrides returns the BASELINE_* file names keyed by room slug.
// Unset rooms are omitted.
func (c *Config) BaselineOverrides() map[string]string {
	overrides := make(map[string]string)
	for slug, name := range map[string]string{
		"kitchen":     c.BaselineKitchen,
		"bathroom":    c.BaselineBathroom,
		"living-room": c.BaselineLivingRoom,
		"bedroom":     c.BaselineBedroom,
	} {
		if name != "" {
			overrides[slug] = name
		}
	}
	return overrides
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
