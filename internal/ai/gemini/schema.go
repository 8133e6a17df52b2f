package gemini

import "google.golang.org/genai"

// roomAssessmentSchema constrains the comparison model output.
func roomAssessmentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"damageDetected": {Type: genai.TypeBoolean},
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"itemName":    {Type: genai.TypeString},
						"condition":   {Type: genai.TypeString, Enum: []string{"missing", "damaged", "broken"}},
						"description": {Type: genai.TypeString},
						"severity":    {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
					},
					Required: []string{"itemName", "condition", "description", "severity"},
				},
			},
			"notes": {Type: genai.TypeString},
		},
		Required: []string{"damageDetected", "items"},
	}
}

// finalSummarySchema constrains the summary model output.
func finalSummarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallStatus": {Type: genai.TypeString, Enum: []string{"all_clear", "minor_issues", "major_concerns"}},
			"summary":       {Type: genai.TypeString},
			"itemsToCheck": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"room": {Type: genai.TypeString},
						"item": {Type: genai.TypeString},
					},
					Required: []string{"room", "item"},
				},
			},
			"totalIssuesFound": {Type: genai.TypeNumber},
		},
		Required: []string{"overallStatus", "summary", "itemsToCheck", "totalIssuesFound"},
	}
}
