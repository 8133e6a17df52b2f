package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func items(severities ...Severity) []DamageItem {
	out := make([]DamageItem, len(severities))
	for i, s := range severities {
		out[i] = DamageItem{ItemName: "item", Condition: ConditionDamaged, Severity: s}
	}
	return out
}

func TestClassifyOverall(t *testing.T) {
	tests := []struct {
		name        string
		assessments []RoomAssessment
		want        OverallStatus
		wantTotal   int
	}{
		{
			name:        "no assessments",
			assessments: nil,
			want:        OverallStatusAllClear,
		},
		{
			name: "all rooms clean",
			assessments: []RoomAssessment{
				{Room: RoomKitchen}, {Room: RoomBathroom}, {Room: RoomLivingRoom}, {Room: RoomBedroom},
			},
			want: OverallStatusAllClear,
		},
		{
			name: "only low items",
			assessments: []RoomAssessment{
				{Room: RoomKitchen, Items: items(SeverityLow, SeverityLow)},
				{Room: RoomBedroom, Items: items(SeverityLow)},
			},
			want:      OverallStatusMinorIssues,
			wantTotal: 3,
		},
		{
			name: "single high item",
			assessments: []RoomAssessment{
				{Room: RoomKitchen},
				{Room: RoomBathroom, Items: items(SeverityHigh)},
			},
			want:      OverallStatusMajorConcerns,
			wantTotal: 1,
		},
		{
			name: "medium among lows",
			assessments: []RoomAssessment{
				{Room: RoomKitchen, Items: items(SeverityLow, SeverityMedium)},
			},
			want:      OverallStatusMajorConcerns,
			wantTotal: 2,
		},
		{
			name: "degraded room without items",
			assessments: []RoomAssessment{
				{Room: RoomKitchen, Degraded: true},
			},
			want: OverallStatusAllClear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyOverall(tt.assessments))
			assert.Equal(t, tt.wantTotal, CountIssues(tt.assessments))
		})
	}
}

func TestAnyDegraded(t *testing.T) {
	assert.False(t, AnyDegraded([]RoomAssessment{{Room: RoomKitchen}}))
	assert.True(t, AnyDegraded([]RoomAssessment{{Room: RoomKitchen}, {Room: RoomBedroom, Degraded: true}}))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, ConditionMissing.IsValid())
	assert.False(t, Condition("stained").IsValid())
	assert.True(t, SeverityHigh.IsValid())
	assert.False(t, Severity("critical").IsValid())
	assert.True(t, OverallStatusMinorIssues.IsValid())
	assert.False(t, OverallStatus("fine").IsValid())
}

func TestBaselineSet_Missing(t *testing.T) {
	set := BaselineSet{RoomKitchen: "files/a", RoomBedroom: "files/d"}
	assert.Equal(t, []Room{RoomBathroom, RoomLivingRoom}, set.Missing())
	assert.Empty(t, BaselineSet{
		RoomKitchen: "a", RoomBathroom: "b", RoomLivingRoom: "c", RoomBedroom: "d",
	}.Missing())
}
