// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/worker"
)

// SessionAnalyzer runs the analysis of a session that was queued for it.
type SessionAnalyzer interface {
	RunQueuedAnalysis(ctx context.Context, id uuid.UUID) (*domain.InspectionResult, error)
}

// AnalyzeSessionHandler processes jobs that compare every room of a session
// against its baseline and summarize the findings.
type AnalyzeSessionHandler struct {
	sessions SessionAnalyzer
	logger   *slog.Logger
}

// NewAnalyzeSessionHandler creates a new handler for session analysis jobs.
func NewAnalyzeSessionHandler(sessions SessionAnalyzer, logger *slog.Logger) *AnalyzeSessionHandler {
	return &AnalyzeSessionHandler{
		sessions: sessions,
		logger:   logger.With("component", "jobs"),
	}
}

// Type returns the job type identifier.
func (h *AnalyzeSessionHandler) Type() string {
	return worker.JobTypeAnalyzeSession
}

// Handle executes the session analysis job.
func (h *AnalyzeSessionHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.AnalyzeSessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.SessionID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: missing session id"))
	}

	h.logger.Info("Analyzing session", "session_id", p.SessionID)

	result, err := h.sessions.RunQueuedAnalysis(ctx, p.SessionID)
	if err != nil {
		// An expired, discarded or no longer queued session cannot recover.
		return worker.PermanentFor(fmt.Errorf("analyze session %s: %w", p.SessionID, err),
			domain.ENOTFOUND, domain.ECONFLICT, domain.EINVALID)
	}

	h.logger.Info("Session analysis completed",
		"session_id", p.SessionID,
		"overall_status", result.Summary.OverallStatus,
		"total_issues", result.Summary.TotalIssuesFound,
		"degraded", result.Summary.Degraded,
	)
	return nil
}
