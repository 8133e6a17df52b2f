package metrics

import (
	"strconv"
	"time"
)

// UploadFinished records the outcome of one ingestion and how many status
// checks it took.
func UploadFinished(outcome string, pollAttempts int) {
	UploadsTotal.WithLabelValues(outcome).Inc()
	if pollAttempts >= 0 {
		UploadPollAttempts.Observe(float64(pollAttempts))
	}
}

// AICallFinished records an AI call with its token usage.
func AICallFinished(call string, err error, inputTokens, outputTokens int, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AIAPICalls.WithLabelValues(call, status).Inc()
	AIRequestDuration.WithLabelValues(call).Observe(duration.Seconds())
	if inputTokens > 0 {
		AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	}
}

// RoomAssessed records one room assessment.
func RoomAssessed(room string, degraded bool, severities []string) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	RoomAssessmentsTotal.WithLabelValues(room, outcome).Inc()
	for _, s := range severities {
		DamageItemsDetected.WithLabelValues(s).Inc()
	}
}

// InspectionCompleted records a finished inspection.
func InspectionCompleted(overallStatus string, degraded bool) {
	InspectionsCompleted.WithLabelValues(overallStatus, strconv.FormatBool(degraded)).Inc()
}

// Job attempt outcomes.
const (
	JobOutcomeCompleted = "completed"
	JobOutcomeRetried   = "retried"
	JobOutcomeFailed    = "failed"
)

// TrackJob marks one attempt of a job in flight. The returned func records
// how the attempt ended and must be called exactly once.
func TrackJob(jobType string) func(outcome string) {
	JobsInFlight.WithLabelValues(jobType).Inc()
	start := time.Now()
	return func(outcome string) {
		JobsInFlight.WithLabelValues(jobType).Dec()
		JobsTotal.WithLabelValues(jobType, outcome).Inc()
		JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
		if outcome == JobOutcomeRetried {
			JobRetriesTotal.WithLabelValues(jobType).Inc()
		}
	}
}
