package inspection

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/DukeRupert/turnover/internal/domain"
)

// rawPrefixLen is how much of an unparseable response is kept in the notes.
const rawPrefixLen = 100

const assessmentSchemaURL = "https://turnover.schemas.local/room-assessment.schema.json"

const assessmentSchemaJSON = `{
  "type": "object",
  "required": ["damageDetected", "items"],
  "properties": {
    "damageDetected": {"type": "boolean"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["itemName", "condition", "description", "severity"],
        "properties": {
          "itemName": {"type": "string"},
          "condition": {"type": "string"},
          "description": {"type": "string"},
          "severity": {"type": "string"}
        }
      }
    },
    "notes": {"type": "string"}
  }
}`

const summarySchemaURL = "https://turnover.schemas.local/final-summary.schema.json"

const summarySchemaJSON = `{
  "type": "object",
  "required": ["overallStatus", "summary", "itemsToCheck", "totalIssuesFound"],
  "properties": {
    "overallStatus": {"type": "string"},
    "summary": {"type": "string"},
    "itemsToCheck": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["room", "item"],
        "properties": {
          "room": {"type": "string"},
          "item": {"type": "string"}
        }
      }
    },
    "totalIssuesFound": {"type": "number", "minimum": 0}
  }
}`

var (
	schemasOnce      sync.Once
	assessmentSchema *jsonschema.Schema
	summarySchema    *jsonschema.Schema
	schemasErr       error
)

func compileSchema(url, schema string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return compiled, nil
}

func schemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		assessmentSchema, schemasErr = compileSchema(assessmentSchemaURL, assessmentSchemaJSON)
		if schemasErr != nil {
			return
		}
		summarySchema, schemasErr = compileSchema(summarySchemaURL, summarySchemaJSON)
	})
	return assessmentSchema, summarySchema, schemasErr
}

type assessmentOutput struct {
	DamageDetected bool         `json:"damageDetected"`
	Items          []itemOutput `json:"items"`
	Notes          string       `json:"notes"`
}

type itemOutput struct {
	ItemName    string `json:"itemName"`
	Condition   string `json:"condition"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type summaryOutput struct {
	OverallStatus    string               `json:"overallStatus"`
	Summary          string               `json:"summary"`
	ItemsToCheck     []domain.ItemToCheck `json:"itemsToCheck"`
	TotalIssuesFound float64              `json:"totalIssuesFound"`
}

// ParseAssessment normalizes raw model output into a RoomAssessment. Output
// that is not valid JSON or does not match the assessment schema yields the
// degraded parse fallback.
func ParseAssessment(raw string, room domain.Room) domain.RoomAssessment {
	out, err := decodeAssessment(raw)
	if err != nil {
		return ParseFailedAssessment(room, raw)
	}

	assessment := domain.RoomAssessment{
		Room:  room,
		Items: make([]domain.DamageItem, 0, len(out.Items)),
		Notes: out.Notes,
	}
	for _, it := range out.Items {
		assessment.Items = append(assessment.Items, domain.DamageItem{
			ItemName:    strings.TrimSpace(it.ItemName),
			Condition:   normalizeCondition(it.Condition),
			Description: strings.TrimSpace(it.Description),
			Severity:    normalizeSeverity(it.Severity),
		})
	}
	// damageDetected follows the item list, not the model's flag.
	assessment.DamageDetected = len(assessment.Items) > 0
	return assessment
}

func decodeAssessment(raw string) (*assessmentOutput, error) {
	text := stripCodeFence(raw)

	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("parse assessment: %w", err)
	}

	schema, _, err := schemas()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate assessment: %w", err)
	}

	var out assessmentOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	return &out, nil
}

// ParseFailedAssessment is the fallback for output that could not be parsed.
func ParseFailedAssessment(room domain.Room, raw string) domain.RoomAssessment {
	return domain.RoomAssessment{
		Room:           room,
		DamageDetected: false,
		Items:          []domain.DamageItem{},
		Notes:          "Error parsing response: " + truncate(raw, rawPrefixLen),
		Degraded:       true,
	}
}

// FailedAssessment is the fallback for a comparison that could not run.
func FailedAssessment(room domain.Room, err error) domain.RoomAssessment {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return domain.RoomAssessment{
		Room:           room,
		DamageDetected: false,
		Items:          []domain.DamageItem{},
		Notes:          "Error during analysis: " + msg,
		Degraded:       true,
	}
}

// ParseSummary decodes and validates the model's summary output. Unlike
// ParseAssessment it returns an error; the caller owns the fallback.
func ParseSummary(raw string) (domain.FinalSummary, error) {
	text := stripCodeFence(raw)

	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return domain.FinalSummary{}, fmt.Errorf("parse summary: %w", err)
	}

	_, schema, err := schemas()
	if err != nil {
		return domain.FinalSummary{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return domain.FinalSummary{}, fmt.Errorf("validate summary: %w", err)
	}

	var out summaryOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return domain.FinalSummary{}, fmt.Errorf("decode summary: %w", err)
	}

	status := domain.OverallStatus(strings.ToLower(strings.TrimSpace(out.OverallStatus)))
	if !status.IsValid() {
		return domain.FinalSummary{}, fmt.Errorf("unknown overall status %q", out.OverallStatus)
	}

	items := out.ItemsToCheck
	if items == nil {
		items = []domain.ItemToCheck{}
	}
	return domain.FinalSummary{
		OverallStatus:    status,
		Summary:          out.Summary,
		ItemsToCheck:     items,
		TotalIssuesFound: int(out.TotalIssuesFound),
	}, nil
}

func normalizeCondition(s string) domain.Condition {
	c := domain.Condition(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return domain.ConditionDamaged
	}
	return c
}

func normalizeSeverity(s string) domain.Severity {
	sev := domain.Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return domain.SeverityMedium
	}
	return sev
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
