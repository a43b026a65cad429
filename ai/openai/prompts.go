package openai

import (
	"fmt"
	"strings"

	"github.com/dynamous/ragpipe/ai"
)

const insightsResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "insights": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {
            "type": "string"
          },
          "title": {
            "type": "string"
          },
          "description": {
            "type": "string"
          },
          "priority": {
            "type": "string",
            "enum": ["critical", "high", "medium", "low"]
          },
          "confidence": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          }
        },
        "required": ["type", "title", "description", "priority", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["insights"],
  "additionalProperties": false
}`

const insightsPromptTemplate = `Analyze the given project document and extract actionable insights as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Type field must match exactly one of the listed values: %s.
- Title is a single short sentence naming the finding.
- Description quotes or paraphrases the supporting context from the document.
- Priority reflects urgency for the project team: critical (needs immediate attention), high, medium, low.
- Confidence is a number from 0.0 (guess) to 1.0 (stated verbatim in the document). Rate based on how directly the document supports the insight.
- Include only insights grounded in the document. Do not hallucinate.
- If the document contains no actionable insights, return "insights": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Meeting notes 2025-06-01. We decided to migrate to Postgres 17 by end of Q3. John is blocked on the VPN access request."
Output:
{
  "insights": [
    {"type":"decision","title":"Migrate to Postgres 17 by end of Q3","description":"The team decided to migrate to Postgres 17 with an end-of-Q3 deadline.","priority":"high","confidence":0.95},
    {"type":"blocker","title":"VPN access request blocking John","description":"John cannot proceed until the VPN access request is resolved.","priority":"critical","confidence":0.9}
  ]
}

Example (no findings):
Input: "Lorem ipsum dolor sit amet."
Output:
{
  "insights": []
}`

// buildSystemPrompt creates the system prompt with insight types embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(insightsPromptTemplate,
		insightsResponseSchema,
		strings.Join(ai.InsightTypes, ", "))
}
