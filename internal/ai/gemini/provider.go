// Package gemini implements the ai.Provider interface on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/DukeRupert/turnover/internal/ai"
)

const (
	// DefaultInspectionModel compares baseline and current room photos
	DefaultInspectionModel = "gemini-3-pro-preview"

	// DefaultSummaryModel produces the cross-room summary
	DefaultSummaryModel = "gemini-2.5-flash"
)

// Config contains configuration for the Gemini provider
type Config struct {
	InspectionModel string
	SummaryModel    string
	ProviderConfig  ai.ProviderConfig
}

// contentGenerator is the subset of genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements ai.Provider using Gemini multimodal models
type Provider struct {
	config  Config
	models  contentGenerator
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a genai client for the Gemini API. baseURL may be empty.
func NewClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// New creates a new Gemini AI provider
func New(client *genai.Client, config Config, logger *slog.Logger) (*Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	return newProvider(client.Models, config, logger), nil
}

func newProvider(models contentGenerator, config Config, logger *slog.Logger) *Provider {
	if config.InspectionModel == "" {
		config.InspectionModel = DefaultInspectionModel
	}
	if config.SummaryModel == "" {
		config.SummaryModel = DefaultSummaryModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 120 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps := config.ProviderConfig.RequestsPerSecond; rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &Provider{
		config:  config,
		models:  models,
		limiter: limiter,
		logger:  logger,
	}
}

// CompareRoom asks the inspection model to compare the baseline and current
// photo of a room.
func (p *Provider) CompareRoom(ctx context.Context, params ai.CompareParams) (*ai.Response, error) {
	if err := validateAssets(params); err != nil {
		return nil, ai.WrapError("compare room", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(params.Baseline.URI, params.Baseline.MIMEType),
			genai.NewPartFromURI(params.Current.URI, params.Current.MIMEType),
			genai.NewPartFromText(ai.BuildComparePrompt(params.Room, params.Inventory)),
		}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		TopP:             genai.Ptr[float32](0.1),
		TopK:             genai.Ptr[float32](10),
		MediaResolution:  genai.MediaResolutionHigh,
		ThinkingConfig:   &genai.ThinkingConfig{IncludeThoughts: false},
		ResponseMIMEType: "application/json",
		ResponseSchema:   roomAssessmentSchema(),
	}

	resp, err := p.generate(ctx, p.config.InspectionModel, contents, cfg)
	if err != nil {
		return nil, ai.WrapError("compare room", err)
	}
	return resp, nil
}

// Summarize asks the summary model for the cross-room verdict.
func (p *Provider) Summarize(ctx context.Context, params ai.SummarizeParams) (*ai.Response, error) {
	prompt, err := ai.BuildSummaryPrompt(params.Assessments)
	if err != nil {
		return nil, ai.WrapError("summarize", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
		ResponseSchema:   finalSummarySchema(),
	}

	resp, err := p.generate(ctx, p.config.SummaryModel, contents, cfg)
	if err != nil {
		return nil, ai.WrapError("summarize", err)
	}
	return resp, nil
}

func validateAssets(params ai.CompareParams) error {
	for _, asset := range []struct {
		label string
		uri   string
		mime  string
	}{
		{"baseline", params.Baseline.URI, params.Baseline.MIMEType},
		{"current", params.Current.URI, params.Current.MIMEType},
	} {
		if asset.uri == "" {
			return fmt.Errorf("%w: %s image has no URI", ai.EAIInvalidImage, asset.label)
		}
		if asset.mime == "" {
			return fmt.Errorf("%w: %s image has no MIME type", ai.EAIInvalidImage, asset.label)
		}
	}
	return nil
}

// generate executes a GenerateContent call with rate limiting and
// exponential backoff retry
func (p *Provider) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*ai.Response, error) {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.generateOnce(ctx, model, contents, cfg)
		if err == nil {
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				return nil, blockedError(resp)
			}
			out := &ai.Response{Text: text, Usage: ai.UsageInfo{Model: model, Duration: time.Since(start)}}
			if resp.UsageMetadata != nil {
				out.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
				out.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
			}
			return out, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		delay := ai.Backoff(p.config.ProviderConfig.RetryBaseDelay, attempt)
		p.logger.Info("Retrying AI request", "model", model, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (p *Provider) generateOnce(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.config.ProviderConfig.RequestTimeout)
	defer cancel()

	resp, err := p.models.GenerateContent(attemptCtx, model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapError(err)
	}
	return resp, nil
}

// blockedError explains an empty response
func blockedError(resp *genai.GenerateContentResponse) error {
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("%w: %s", ai.EAIContentPolicy, resp.PromptFeedback.BlockReason)
	}
	return ai.EAIEmptyResponse
}

// mapError maps Gemini API errors to provider errors
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	}

	code, message, ok := apiErrorDetails(err)
	if !ok {
		// Transport failures are typically retryable
		return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
	}

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ai.EAIUnauthorized, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ai.EAIRateLimit, message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ai.EAITimeout, message)
	case http.StatusBadRequest, http.StatusNotFound:
		return fmt.Errorf("%w: %s", ai.EAIInvalidImage, message)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ai.EAIUnavailable, message)
	default:
		return fmt.Errorf("gemini API error (status %d): %s", code, message)
	}
}

func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
