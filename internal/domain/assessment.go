// Package domain contains core business types and interfaces.
//
// This file defines per-room damage assessments, the cross-room summary,
// and the severity rubric that links them.
package domain

import "time"

// =============================================================================
// Damage Condition
// =============================================================================

// Condition describes what is wrong with an inventory item.
type Condition string

const (
	ConditionMissing Condition = "missing"
	ConditionDamaged Condition = "damaged"
	ConditionBroken  Condition = "broken"
)

// String returns the string representation of the condition.
func (c Condition) String() string {
	return string(c)
}

// IsValid returns true if the condition is a recognized value.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionMissing, ConditionDamaged, ConditionBroken:
		return true
	}
	return false
}

// =============================================================================
// Damage Severity
// =============================================================================

// Severity ranks a damage item.
type Severity string

const (
	// SeverityLow indicates cosmetic or cleanable marks.
	SeverityLow Severity = "low"

	// SeverityMedium indicates damage needing repair or replacement.
	SeverityMedium Severity = "medium"

	// SeverityHigh indicates structural damage or loss of a high-value item.
	SeverityHigh Severity = "high"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// =============================================================================
// Room Assessment
// =============================================================================

// DamageItem is one finding reported for a room.
type DamageItem struct {
	ItemName    string    `json:"itemName"`
	Condition   Condition `json:"condition"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
}

// RoomAssessment is the normalized comparison result for one room.
//
// Degraded is set when the assessment came from a fallback path rather than
// a successful model response. A degraded assessment with no items means
// "could not assess", not "confirmed clear".
type RoomAssessment struct {
	Room           Room         `json:"room"`
	DamageDetected bool         `json:"damageDetected"`
	Items          []DamageItem `json:"items"`
	Notes          string       `json:"notes,omitempty"`
	Degraded       bool         `json:"degraded"`
}

// =============================================================================
// Final Summary
// =============================================================================

// OverallStatus is the cross-room verdict.
type OverallStatus string

const (
	OverallStatusAllClear      OverallStatus = "all_clear"
	OverallStatusMinorIssues   OverallStatus = "minor_issues"
	OverallStatusMajorConcerns OverallStatus = "major_concerns"
)

// String returns the string representation of the status.
func (s OverallStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s OverallStatus) IsValid() bool {
	switch s {
	case OverallStatusAllClear, OverallStatusMinorIssues, OverallStatusMajorConcerns:
		return true
	}
	return false
}

// ItemToCheck is one actionable entry of the summary.
type ItemToCheck struct {
	Room string `json:"room"`
	Item string `json:"item"`
}

// FinalSummary reduces all room assessments to one verdict.
type FinalSummary struct {
	OverallStatus    OverallStatus `json:"overallStatus"`
	Summary          string        `json:"summary"`
	ItemsToCheck     []ItemToCheck `json:"itemsToCheck"`
	TotalIssuesFound int           `json:"totalIssuesFound"`
	Degraded         bool          `json:"degraded"`
}

// InspectionResult is the terminal artifact of an inspection.
type InspectionResult struct {
	Summary         FinalSummary     `json:"summary"`
	RoomAssessments []RoomAssessment `json:"roomAssessments"`
	AnalyzedAt      time.Time        `json:"analyzedAt"`
}

// =============================================================================
// Severity Rubric
// =============================================================================

// CountIssues returns the total number of damage items across assessments.
func CountIssues(assessments []RoomAssessment) int {
	total := 0
	for _, a := range assessments {
		total += len(a.Items)
	}
	return total
}

// ClassifyOverall applies the severity rubric:
// all_clear when no room has any item, minor_issues when every item is low,
// major_concerns when any item is medium or high.
func ClassifyOverall(assessments []RoomAssessment) OverallStatus {
	total := 0
	for _, a := range assessments {
		for _, item := range a.Items {
			total++
			if item.Severity != SeverityLow {
				return OverallStatusMajorConcerns
			}
		}
	}
	if total == 0 {
		return OverallStatusAllClear
	}
	return OverallStatusMinorIssues
}

// AnyDegraded returns true if any assessment came from a fallback path.
func AnyDegraded(assessments []RoomAssessment) bool {
	for _, a := range assessments {
		if a.Degraded {
			return true
		}
	}
	return false
}
