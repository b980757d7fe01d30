package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ExtractPayload pulls the structured extraction result out of raw model
// output. Models are asked for bare JSON but frequently wrap it in a code
// fence or surround it with prose, so this tries, in order: a fenced block,
// then the outermost brace-delimited region, then the whole text.
func ExtractPayload(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty model output")
	}

	candidates := make([]string, 0, 3)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if start := strings.IndexAny(text, "{["); start >= 0 {
		if end := strings.LastIndexAny(text, "}]"); end > start {
			candidates = append(candidates, text[start:end+1])
		}
	}
	candidates = append(candidates, text)

	for _, c := range candidates {
		var v any
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			continue
		}
		return normalizePayload(v)
	}
	return nil, errors.New("no JSON object in model output")
}

// normalizePayload coerces the model's JSON into the canonical payload shape:
// an object with an "items" array and optional "confidence". A bare array is
// wrapped; the legacy "stakeholders" key is accepted as an alias for items.
func normalizePayload(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case []any:
		v = map[string]any{"items": t}
	case map[string]any:
		if _, ok := t["items"]; !ok {
			if legacy, ok := t["stakeholders"]; ok {
				t["items"] = legacy
				delete(t, "stakeholders")
			}
		}
	default:
		return nil, fmt.Errorf("unexpected payload type %T", v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}
