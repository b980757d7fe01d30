package providers

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeItems(t *testing.T, raw json.RawMessage) []any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("payload not an object: %v", err)
	}
	items, ok := v["items"].([]any)
	if !ok {
		t.Fatalf("payload missing items array: %s", raw)
	}
	return items
}

func TestExtractPayloadBareJSON(t *testing.T) {
	raw, err := ExtractPayload(`{"items":[{"name":"Alice"}],"confidence":0.8}`)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if items := decodeItems(t, raw); len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
}

func TestExtractPayloadCodeFence(t *testing.T) {
	text := "Here is the result:\n```json\n{\"items\": [{\"name\": \"Bob\"}]}\n```\nDone."
	raw, err := ExtractPayload(text)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if items := decodeItems(t, raw); len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
}

func TestExtractPayloadSurroundingProse(t *testing.T) {
	text := `Sure! The extracted stakeholders are {"items":[{"name":"Cara"},{"name":"Dev"}]} as requested.`
	raw, err := ExtractPayload(text)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if items := decodeItems(t, raw); len(items) != 2 {
		t.Fatalf("items = %v", items)
	}
}

func TestExtractPayloadWrapsBareArray(t *testing.T) {
	raw, err := ExtractPayload(`[{"name":"Eve"}]`)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if items := decodeItems(t, raw); len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
}

func TestExtractPayloadStakeholdersAlias(t *testing.T) {
	raw, err := ExtractPayload(`{"stakeholders":[{"name":"Finn"}],"confidence":0.7}`)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if items := decodeItems(t, raw); len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	var v map[string]any
	_ = json.Unmarshal(raw, &v)
	if _, ok := v["stakeholders"]; ok {
		t.Fatalf("legacy key should be renamed, got %s", raw)
	}
	if v["confidence"] != 0.7 {
		t.Fatalf("confidence = %v, want 0.7", v["confidence"])
	}
}

func TestExtractPayloadRejectsNonJSON(t *testing.T) {
	for _, text := range []string{"", "   ", "I could not find any stakeholders."} {
		if _, err := ExtractPayload(text); err == nil {
			t.Fatalf("ExtractPayload accepted %q", text)
		}
	}
}

func TestExtractPayloadRejectsScalar(t *testing.T) {
	if _, err := ExtractPayload(`"just a string"`); err == nil {
		t.Fatalf("scalar payload should be rejected")
	}
}

func TestBuildPromptIncludesDocumentAndType(t *testing.T) {
	prompt := BuildPrompt(Request{
		Input:    "report.txt",
		Document: "ACME quarterly planning notes",
		Options:  map[string]any{"extraction_type": "action items"},
	})
	if prompt == "" {
		t.Fatalf("empty prompt")
	}
	if !containsAll(prompt, "ACME quarterly planning notes", "action items", "items") {
		t.Fatalf("prompt missing expected fragments:\n%s", prompt)
	}
}

func TestBuildPromptDefaultsExtractionType(t *testing.T) {
	prompt := BuildPrompt(Request{Input: "report.txt", Document: "text"})
	if !containsAll(prompt, "stakeholders") {
		t.Fatalf("prompt missing default extraction type:\n%s", prompt)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
