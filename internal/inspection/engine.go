// Package inspection compares each room against its baseline, normalizes
// the model output, and reduces the per-room assessments to one verdict.
//
// Nothing in this package fails an inspection: comparison errors become
// degraded room assessments and summary errors become a locally computed
// summary.
package inspection

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/turnover/internal/ai"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/inventory"
	"github.com/DukeRupert/turnover/internal/metrics"
)

// FallbackSummaryText is the summary used when the summary call fails.
const FallbackSummaryText = "Unable to generate summary - please review room assessments for details"

// ManualReviewItem is the synthetic first entry of a fallback summary.
var ManualReviewItem = domain.ItemToCheck{Room: "System", Item: "Manual review required"}

// Pair is the input for one room comparison.
type Pair struct {
	Room     domain.Room
	Baseline domain.RemoteAsset
	Current  domain.RemoteAsset

	// Err carries an upstream failure for this room, such as a failed
	// upload. The room is not compared and gets a fallback assessment.
	Err error
}

// Engine runs room comparisons and the cross-room summary.
type Engine struct {
	provider ai.Provider
	catalog  *inventory.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an inspection engine. A nil catalog sends comparisons without
// a reference inventory.
func New(provider ai.Provider, catalog *inventory.Catalog, logger *slog.Logger) *Engine {
	return &Engine{
		provider: provider,
		catalog:  catalog,
		logger:   logger.With("component", "inspection"),
		now:      time.Now,
	}
}

// CompareRoom compares one room using the default inventory.
func (e *Engine) CompareRoom(ctx context.Context, room domain.Room, baseline, current domain.RemoteAsset) domain.RoomAssessment {
	return e.compareRoom(ctx, "", room, baseline, current)
}

func (e *Engine) compareRoom(ctx context.Context, propertyID string, room domain.Room, baseline, current domain.RemoteAsset) domain.RoomAssessment {
	logger := e.logger.With("room", room, "property_id", propertyID)

	var inv string
	if e.catalog != nil {
		inv = e.catalog.For(propertyID, room)
	}

	start := time.Now()
	resp, err := e.provider.CompareRoom(ctx, ai.CompareParams{
		Room:      room,
		Baseline:  baseline,
		Current:   current,
		Inventory: inv,
	})
	if err != nil {
		metrics.AICallFinished("compare", err, 0, 0, time.Since(start))
		logger.Error("room comparison failed", "error", err)
		return FailedAssessment(room, err)
	}
	metrics.AICallFinished("compare", nil, resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start))

	assessment := ParseAssessment(resp.Text, room)
	if assessment.Degraded {
		logger.Warn("room assessment did not match schema, using fallback", "model", resp.Usage.Model)
	} else {
		logger.Info("room assessment completed",
			"damage_detected", assessment.DamageDetected,
			"items", len(assessment.Items),
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
	}
	return assessment
}

// CompareAll compares every pair concurrently. Each comparison resolves to
// its own assessment, success or fallback; the result has one entry per
// pair in input order.
func (e *Engine) CompareAll(ctx context.Context, propertyID string, pairs []Pair) []domain.RoomAssessment {
	results := make([]domain.RoomAssessment, len(pairs))

	var g errgroup.Group
	for i, p := range pairs {
		g.Go(func() error {
			if p.Err != nil {
				e.logger.Warn("skipping comparison for room with upstream error", "room", p.Room, "error", p.Err)
				results[i] = FailedAssessment(p.Room, p.Err)
			} else {
				results[i] = e.compareRoom(ctx, propertyID, p.Room, p.Baseline, p.Current)
			}
			recordAssessment(results[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Summarize reduces the assessments to a FinalSummary. A successful model
// answer is reconciled with the local rubric; a failed call or unparseable
// answer is replaced with LocalSummary.
func (e *Engine) Summarize(ctx context.Context, assessments []domain.RoomAssessment) domain.FinalSummary {
	start := time.Now()
	resp, err := e.provider.Summarize(ctx, ai.SummarizeParams{Assessments: assessments})
	if err != nil {
		metrics.AICallFinished("summarize", err, 0, 0, time.Since(start))
		e.logger.Error("summary call failed, using local summary", "error", err)
		return LocalSummary(assessments)
	}
	metrics.AICallFinished("summarize", nil, resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start))

	summary, err := ParseSummary(resp.Text)
	if err != nil {
		e.logger.Warn("failed to parse summary, using local summary", "error", err)
		return LocalSummary(assessments)
	}

	return e.reconcile(summary, assessments)
}

// reconcile forces the rubric-derived fields to agree with the assessments.
func (e *Engine) reconcile(summary domain.FinalSummary, assessments []domain.RoomAssessment) domain.FinalSummary {
	total := domain.CountIssues(assessments)
	if summary.TotalIssuesFound != total {
		e.logger.Warn("summary issue count disagrees with assessments",
			"reported", summary.TotalIssuesFound, "actual", total)
		summary.TotalIssuesFound = total
	}

	status := domain.ClassifyOverall(assessments)
	if summary.OverallStatus != status {
		e.logger.Warn("summary status disagrees with severity rubric",
			"reported", summary.OverallStatus, "rubric", status)
		summary.OverallStatus = status
	}

	if status == domain.OverallStatusAllClear {
		summary.ItemsToCheck = []domain.ItemToCheck{}
	}
	summary.ItemsToCheck = withManualReview(summary.ItemsToCheck, assessments)
	summary.Degraded = domain.AnyDegraded(assessments)
	return summary
}

// withManualReview adds a manual review entry for every degraded room the
// list does not already name.
func withManualReview(items []domain.ItemToCheck, assessments []domain.RoomAssessment) []domain.ItemToCheck {
	for _, a := range assessments {
		if !a.Degraded {
			continue
		}
		entry := domain.ItemToCheck{Room: a.Room.String(), Item: ManualReviewItem.Item}
		if !slices.Contains(items, entry) {
			items = append(items, entry)
		}
	}
	return items
}

// LocalSummary computes a summary without the model by applying the
// severity rubric. It is always marked degraded.
func LocalSummary(assessments []domain.RoomAssessment) domain.FinalSummary {
	items := []domain.ItemToCheck{ManualReviewItem}
	for _, a := range assessments {
		for _, item := range a.Items {
			items = append(items, domain.ItemToCheck{Room: a.Room.String(), Item: item.ItemName})
		}
	}
	return domain.FinalSummary{
		OverallStatus:    domain.ClassifyOverall(assessments),
		Summary:          FallbackSummaryText,
		ItemsToCheck:     items,
		TotalIssuesFound: domain.CountIssues(assessments),
		Degraded:         true,
	}
}

// Run compares all pairs and summarizes the result. The summary call starts
// only after every comparison has resolved.
func (e *Engine) Run(ctx context.Context, propertyID string, pairs []Pair) (*domain.InspectionResult, error) {
	if len(pairs) == 0 {
		return nil, domain.Invalid("inspection.run", "no rooms to compare")
	}

	start := time.Now()
	assessments := e.CompareAll(ctx, propertyID, pairs)

	// A cancelled request has nothing left to report.
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	summary := e.Summarize(ctx, assessments)

	metrics.InspectionCompleted(summary.OverallStatus.String(), summary.Degraded)
	e.logger.Info("inspection completed",
		"property_id", propertyID,
		"overall_status", summary.OverallStatus,
		"total_issues", summary.TotalIssuesFound,
		"degraded", summary.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &domain.InspectionResult{
		Summary:         summary,
		RoomAssessments: assessments,
		AnalyzedAt:      e.now().UTC(),
	}, nil
}

func recordAssessment(a domain.RoomAssessment) {
	severities := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		severities = append(severities, item.Severity.String())
	}
	metrics.RoomAssessed(a.Room.String(), a.Degraded, severities)
}
