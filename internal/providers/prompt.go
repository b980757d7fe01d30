package providers

import (
	"fmt"
	"strings"
)

const defaultExtractionType = "stakeholders"

// BuildPrompt renders the extraction instruction plus the document body. The
// instruction pins the response contract every adapter relies on: a single
// JSON object with an "items" array and a numeric "confidence".
func BuildPrompt(req Request) string {
	extractionType := defaultExtractionType
	if req.Options != nil {
		if v, ok := req.Options["extraction_type"].(string); ok && v != "" {
			extractionType = v
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extract all %s mentioned in the document below.\n", extractionType)
	b.WriteString("Respond with a single JSON object of the form ")
	b.WriteString(`{"items": [...], "confidence": <0..1>}`)
	b.WriteString(" and nothing else. Each item must be an object describing one extracted entity.\n\nDOCUMENT:\n")
	b.WriteString(req.Document)
	return b.String()
}
