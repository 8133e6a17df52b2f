package ai

import (
	"encoding/json"
	"fmt"

	"github.com/DukeRupert/turnover/internal/domain"
)

// BuildComparePrompt creates the damage assessment prompt for one room.
// The baseline image must precede the current image in the request.
func BuildComparePrompt(room domain.Room, inventory string) string {
	return fmt.Sprintf(`You are inspecting a %s for property damage after guest checkout.

**REFERENCE INVENTORY:**
%s

**YOUR TASK:**
Compare the PREVIOUS image (pre-check-in baseline) with the CURRENT image (post-checkout).

**ANALYSIS PROTOCOL:**

Step 1 - SYSTEMATIC SCAN:
- Divide the room mentally into a 3x3 grid
- Scan from left to right, top to bottom
- For each grid section, compare previous vs current images

Step 2 - INVENTORY VERIFICATION:
- Go through each item in the reference inventory above
- Check if the item is visible and intact in BOTH images
- Note if an item appears damaged or missing in the CURRENT image only

Step 3 - DAMAGE IDENTIFICATION:
Focus ONLY on physical damage or absence:
- Missing items that were present before
- Broken/cracked items (glass, mirrors, furniture)
- Stains or damage to surfaces (walls, floors, counters)
- Damaged fixtures (doors, handles, faucets)

IGNORE: Clutter, mess, displaced items, lighting differences, slight movements

Step 4 - SEVERITY ASSESSMENT:
- LOW: Minor scuffs, easily cleanable marks
- MEDIUM: Noticeable damage requiring repair/replacement
- HIGH: Significant structural damage or missing expensive items

**OUTPUT FORMAT:**
Respond with a JSON object following this exact schema:
{
  "damageDetected": boolean,
  "items": [
    {
      "itemName": "specific item name",
      "condition": "missing" | "damaged" | "broken",
      "description": "brief specific description of the issue",
      "severity": "low" | "medium" | "high"
    }
  ],
  "notes": "any additional context (optional)"
}

If no damage detected, return: {"damageDetected": false, "items": [], "notes": "No damage or missing items detected"}`, room, inventory)
}

// BuildSummaryPrompt creates the cross-room summary prompt from the
// serialized room assessments.
func BuildSummaryPrompt(assessments []domain.RoomAssessment) (string, error) {
	serialized, err := json.MarshalIndent(assessments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal assessments: %w", err)
	}

	return fmt.Sprintf(`Analyze these room damage assessments and create a concise summary:

%s

Provide a JSON response with this schema:
{
  "overallStatus": "all_clear" | "minor_issues" | "major_concerns",
  "summary": "A 1-2 line description of the overall property condition",
  "itemsToCheck": [
    {
      "room": "Room Name",
      "item": "specific item description"
    }
  ],
  "totalIssuesFound": number
}

Rules:
- "all_clear": No damage in any room
- "minor_issues": Only low severity items
- "major_concerns": Any medium/high severity items
- "summary": Write 1-2 sentences describing the overall condition (e.g., "Property is in excellent condition with no damage detected" or "Minor issues found requiring attention before next guest")
- "itemsToCheck": List only actionable items with their room names that require attention or verification
- Include the room name for each item to make it clear where issues were found
- Assessments marked "degraded" could not be analyzed; list their room with "Manual review required"`, serialized), nil
}
