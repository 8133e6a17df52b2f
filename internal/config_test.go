package internal

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"ENV", "PORT", "LOG_LEVEL", "BASE_URL",
	"AI_PROVIDER", "GOOGLE_API_KEY", "GEMINI_BASE_URL", "GEMINI_INSPECTION_MODEL", "GEMINI_SUMMARY_MODEL",
	"AI_MAX_RETRIES", "AI_RETRY_BASE_DELAY", "AI_REQUEST_TIMEOUT", "AI_REQUESTS_PER_SECOND",
	"UPLOAD_MAX_BYTES", "UPLOAD_POLL_INTERVAL", "UPLOAD_POLL_MAX_ATTEMPTS",
	"STORAGE_PROVIDER", "LOCAL_STORAGE_PATH", "LOCAL_STORAGE_URL",
	"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_URL",
	"BASELINE_STORE", "DATABASE_URL", "BASELINES_FILE", "DEFAULT_PROPERTY_ID",
	"BASELINE_KITCHEN", "BASELINE_BATHROOM", "BASELINE_LIVING_ROOM", "BASELINE_BEDROOM",
	"INVENTORY_FILE", "SESSION_TTL", "WORKER_CONCURRENCY", "WORKER_QUEUE_SIZE", "WORKER_JOB_TIMEOUT",
	"METRICS_USERNAME", "METRICS_PASSWORD", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
}

// clearConfigEnv blanks every key so the host environment cannot leak in.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.AIProvider != "mock" {
		t.Errorf("expected mock provider, got %q", cfg.AIProvider)
	}
	if cfg.UploadMaxBytes != 10<<20 {
		t.Errorf("expected 10MB upload limit, got %d", cfg.UploadMaxBytes)
	}
	if cfg.UploadPollInterval != time.Second {
		t.Errorf("expected 1s poll interval, got %v", cfg.UploadPollInterval)
	}
	if cfg.UploadPollMaxAttempts != 60 {
		t.Errorf("expected 60 poll attempts, got %d", cfg.UploadPollMaxAttempts)
	}
	if cfg.BaselineStore != "static" || cfg.DefaultPropertyID != "default" {
		t.Errorf("unexpected baseline defaults: %q %q", cfg.BaselineStore, cfg.DefaultPropertyID)
	}
	if cfg.GeminiInspectionModel != "gemini-3-pro-preview" || cfg.GeminiSummaryModel != "gemini-2.5-flash" {
		t.Errorf("unexpected model defaults: %q %q", cfg.GeminiInspectionModel, cfg.GeminiSummaryModel)
	}
	if len(cfg.BaselineOverrides()) != 0 {
		t.Errorf("expected no overrides, got %v", cfg.BaselineOverrides())
	}
}

func TestNewConfig_ParsesValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("AI_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("UPLOAD_MAX_BYTES", "2048")
	t.Setenv("UPLOAD_POLL_INTERVAL", "250ms")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("BASELINE_LIVING_ROOM", "files/new-living")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AIRequestsPerSecond != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.AIRequestsPerSecond)
	}
	if cfg.UploadMaxBytes != 2048 {
		t.Errorf("expected 2048, got %d", cfg.UploadMaxBytes)
	}
	if cfg.UploadPollInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.UploadPollInterval)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m, got %v", cfg.SessionTTL)
	}
	if cfg.Port != 8080 {
		t.Errorf("invalid PORT should fall back to 8080, got %d", cfg.Port)
	}
	if got := cfg.BaselineOverrides(); len(got) != 1 || got["living-room"] != "files/new-living" {
		t.Errorf("unexpected overrides %v", got)
	}
}

func TestNewConfig_SQLiteDefaultDSN(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("BASELINE_STORE", "sqlite")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "file:turnover.db") {
		t.Errorf("unexpected sqlite DSN %q", cfg.DatabaseURL)
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"gemini without key", map[string]string{"AI_PROVIDER": "gemini"}, "GOOGLE_API_KEY"},
		{"unknown provider", map[string]string{"AI_PROVIDER": "anthropic"}, "AI_PROVIDER"},
		{"r2 without account", map[string]string{"STORAGE_PROVIDER": "r2"}, "R2_ACCOUNT_ID"},
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "s3"}, "STORAGE_PROVIDER"},
		{"postgres without url", map[string]string{"BASELINE_STORE": "postgres"}, "DATABASE_URL"},
		{"unknown baseline store", map[string]string{"BASELINE_STORE": "redis"}, "BASELINE_STORE"},
		{"zero upload limit", map[string]string{"UPLOAD_MAX_BYTES": "0"}, "UPLOAD_MAX_BYTES"},
		{"zero poll attempts", map[string]string{"UPLOAD_POLL_MAX_ATTEMPTS": "0"}, "UPLOAD_POLL_MAX_ATTEMPTS"},
		{"zero rate limit", map[string]string{"RATE_LIMIT_REQUESTS": "0"}, "RATE_LIMIT_REQUESTS"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := NewConfig()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "WARN")

	logger.Info("hidden")
	logger.Warn("shown", "room", "Kitchen")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"service":"turnover"`) || !strings.Contains(out, `"room":"Kitchen"`) {
		t.Errorf("expected JSON record with service attribute, got: %s", out)
	}

	buf.Reset()
	NewLogger(&buf, "development", "debug").Debug("dev")
	if !strings.Contains(buf.String(), "service=turnover") {
		t.Errorf("expected text record, got: %s", buf.String())
	}
}
