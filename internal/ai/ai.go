package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/turnover/internal/domain"
)

// Provider defines the interface for AI-powered room comparison.
//
// Providers return the raw model text; normalization into domain types is
// the caller's job so that malformed output can be downgraded instead of
// failing the request.
type Provider interface {
	// CompareRoom compares a baseline photo with a post-checkout photo of
	// the same room and returns the model's JSON assessment.
	CompareRoom(ctx context.Context, params CompareParams) (*Response, error)

	// Summarize reduces the per-room assessments to one JSON verdict.
	Summarize(ctx context.Context, params SummarizeParams) (*Response, error)
}

// CompareParams contains parameters for a room comparison
type CompareParams struct {
	Room      domain.Room        // Room being compared
	Baseline  domain.RemoteAsset // Pre-check-in reference photo
	Current   domain.RemoteAsset // Post-checkout photo
	Inventory string             // Reference inventory for the room
}

// SummarizeParams contains parameters for the cross-room summary
type SummarizeParams struct {
	Assessments []domain.RoomAssessment
}

// Response is the raw text produced by a model call
type Response struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration including retries
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries        int           // Maximum attempts for transient errors
	RetryBaseDelay    time.Duration // Base delay for exponential backoff
	RequestTimeout    time.Duration // Timeout for individual requests
	RequestsPerSecond float64       // Outbound request rate; 0 disables limiting
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates an image reference was rejected
	EAIInvalidImage = errors.New("invalid image reference or content")

	// EAIContentPolicy indicates the request was blocked by a safety filter
	EAIContentPolicy = errors.New("request blocked by content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIEmptyResponse indicates the model returned no text
	EAIEmptyResponse = errors.New("ai provider returned an empty response")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// Backoff returns the delay before the given retry attempt (1-based):
// base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<(attempt-1))
}
