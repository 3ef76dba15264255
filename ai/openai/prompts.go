package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/docpipe/ai"
)

// metadataResponseSchema is completed with the document type enum at init.
const metadataResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "company": {"type": "string"},
    "year": {"type": ["integer", "null"], "minimum": 1900, "maximum": 2100},
    "summary": {"type": "string"},
    "keywords": {
      "type": "array",
      "items": {"type": "string"},
      "maxItems": 20
    },
    "document_type": {"enum": %s}
  }
}`

const metadataPromptTemplate = `Read the document text supplied by the user and describe it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- title is the document's own title, not the file name. Omit it if the text has none.
- company is the organization that published the document.
- year is the reporting or publication year as a four digit integer, or null if unknown.
- summary is at most three sentences.
- keywords are lowercase, 1-3 words each, at most 10.
- document_type must be exactly one of: %s.
- Omit any field you cannot determine from the text. Do not guess.
- The JSON must parse without errors; no trailing commas and no text outside the object.

Example:
Input: "Acme Corp Annual Report 2023. Revenue grew 12%% on strong demand for widgets..."
Output:
{"title":"Annual Report 2023","company":"Acme Corp","year":2023,"summary":"Acme Corp reports 12%% revenue growth driven by widget demand.","keywords":["revenue growth","widgets"],"document_type":"annual_report"}`

// buildMetadataSchema renders the response schema with the allowed document types.
func buildMetadataSchema() string {
	types, _ := json.Marshal(append([]string{""}, ai.DocumentTypes...))
	return fmt.Sprintf(metadataResponseSchema, types)
}

// buildSystemPrompt creates the system prompt with the schema embedded.
func buildSystemPrompt(schema string) string {
	return fmt.Sprintf(metadataPromptTemplate, schema, strings.Join(ai.DocumentTypes, ", "))
}

// buildUserPrompt prefixes document text with whatever the caller already knows.
func buildUserPrompt(text string, hints ai.MetadataHints) string {
	var b strings.Builder
	if hints.Filename != "" {
		fmt.Fprintf(&b, "File name: %s\n", hints.Filename)
	}
	if hints.Title != "" {
		fmt.Fprintf(&b, "Known title: %s\n", hints.Title)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(text)
	return b.String()
}
