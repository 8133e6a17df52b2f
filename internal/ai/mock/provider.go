package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/turnover/internal/ai"
	"github.com/DukeRupert/turnover/internal/domain"
)

// Provider is a mock AI provider for testing and development.
//
// Without configuration it reports every room clean and summarizes by the
// severity rubric. Per-room responses and errors can be set for tests.
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	RoomResponses   map[domain.Room]string
	RoomErrors      map[domain.Room]error
	RoomDelays      map[domain.Room]time.Duration
	SummaryResponse string
	SummaryError    error

	// Call tracking for testing
	CompareCalls      int
	SummarizeCalls    int
	ComparedRooms     []domain.Room
	LastSummaryParams ai.SummarizeParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger:        logger,
		RoomResponses: make(map[domain.Room]string),
		RoomErrors:    make(map[domain.Room]error),
		RoomDelays:    make(map[domain.Room]time.Duration),
	}
}

// CompareRoom returns the configured response for the room, or a clean
// assessment.
func (p *Provider) CompareRoom(ctx context.Context, params ai.CompareParams) (*ai.Response, error) {
	p.mu.Lock()
	p.CompareCalls++
	p.ComparedRooms = append(p.ComparedRooms, params.Room)
	delay := p.RoomDelays[params.Room]
	err := p.RoomErrors[params.Room]
	text, ok := p.RoomResponses[params.Room]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, ai.WrapError("compare room", err)
	}
	if !ok {
		text = `{"damageDetected": false, "items": [], "notes": "No damage or missing items detected"}`
	}

	if p.logger != nil {
		p.logger.Debug("mock room comparison", "room", params.Room, "baseline", params.Baseline.Name, "current", params.Current.Name)
	}

	return &ai.Response{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  1250,
			OutputTokens: 120,
			Duration:     delay,
		},
	}, nil
}

// Summarize returns the configured summary, or one derived from the rubric.
func (p *Provider) Summarize(ctx context.Context, params ai.SummarizeParams) (*ai.Response, error) {
	p.mu.Lock()
	p.SummarizeCalls++
	p.LastSummaryParams = params
	err := p.SummaryError
	text := p.SummaryResponse
	p.mu.Unlock()

	if err != nil {
		return nil, ai.WrapError("summarize", err)
	}

	if text == "" {
		var buildErr error
		text, buildErr = rubricSummary(params.Assessments)
		if buildErr != nil {
			return nil, ai.WrapError("summarize", buildErr)
		}
	}

	return &ai.Response{
		Text:  text,
		Usage: ai.UsageInfo{Model: "mock-ai-v1", InputTokens: 600, OutputTokens: 90},
	}, nil
}

// Calls returns the number of comparison and summary calls so far.
func (p *Provider) Calls() (compare, summarize int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CompareCalls, p.SummarizeCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompareCalls = 0
	p.SummarizeCalls = 0
	p.ComparedRooms = nil
	p.LastSummaryParams = ai.SummarizeParams{}
	p.RoomResponses = make(map[domain.Room]string)
	p.RoomErrors = make(map[domain.Room]error)
	p.RoomDelays = make(map[domain.Room]time.Duration)
	p.SummaryResponse = ""
	p.SummaryError = nil
}

func rubricSummary(assessments []domain.RoomAssessment) (string, error) {
	status := domain.ClassifyOverall(assessments)
	items := make([]domain.ItemToCheck, 0)
	for _, a := range assessments {
		for _, item := range a.Items {
			items = append(items, domain.ItemToCheck{Room: a.Room.String(), Item: item.ItemName})
		}
	}

	text := "Property is in excellent condition with no damage detected."
	if status != domain.OverallStatusAllClear {
		text = fmt.Sprintf("%d issue(s) found requiring attention before the next guest.", len(items))
	}

	out, err := json.Marshal(domain.FinalSummary{
		OverallStatus:    status,
		Summary:          text,
		ItemsToCheck:     items,
		TotalIssuesFound: len(items),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
