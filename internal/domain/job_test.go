package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		raw  string
		want Priority
		ok   bool
	}{
		{"cost", PriorityCost, true},
		{"quality", PriorityQuality, true},
		{"speed", PrioritySpeed, true},
		{"privacy", PriorityPrivacy, true},
		{"", PriorityCost, true},
		{"fast", "", false},
		{"COST", "", false},
	}
	for _, tc := range cases {
		got, ok := ParsePriority(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParsePriority(%q) = %q,%v want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if JobStatusPending.Terminal() || JobStatusRunning.Terminal() {
		t.Fatalf("live statuses must not be terminal")
	}
	if !JobStatusComplete.Terminal() || !JobStatusError.Terminal() {
		t.Fatalf("complete and error must be terminal")
	}
}

func TestCloneIsDeep(t *testing.T) {
	finished := time.Now()
	job := &Job{
		ID:         "j1",
		Options:    map[string]any{"strategy": "ollama"},
		Results:    json.RawMessage(`{"items":[1]}`),
		FinishedAt: &finished,
		Error: &JobError{
			Code:     ErrCodeExhausted,
			Attempts: []Attempt{{Model: "m1"}},
		},
	}
	cp := job.Clone()

	cp.Options["strategy"] = "other"
	cp.Results[0] = 'X'
	*cp.FinishedAt = finished.Add(time.Hour)
	cp.Error.Attempts[0].Model = "m2"

	if job.Options["strategy"] != "ollama" {
		t.Fatalf("options shared between clone and original")
	}
	if job.Results[0] != '{' {
		t.Fatalf("results shared between clone and original")
	}
	if !job.FinishedAt.Equal(finished) {
		t.Fatalf("finished_at shared between clone and original")
	}
	if job.Error.Attempts[0].Model != "m1" {
		t.Fatalf("error attempts shared between clone and original")
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)

	live := &Job{StartedAt: start}
	if got := live.Elapsed(now); got != 30*time.Second {
		t.Fatalf("live elapsed = %v, want 30s", got)
	}

	finished := start.Add(10 * time.Second)
	done := &Job{StartedAt: start, FinishedAt: &finished}
	if got := done.Elapsed(now); got != 10*time.Second {
		t.Fatalf("terminal elapsed = %v, want frozen 10s", got)
	}
}

func TestOptionString(t *testing.T) {
	job := &Job{Options: map[string]any{"model": "gpt-4o", "retries": 3}}
	if got := job.OptionString("model"); got != "gpt-4o" {
		t.Fatalf("model = %q", got)
	}
	if got := job.OptionString("retries"); got != "" {
		t.Fatalf("non-string option = %q, want empty", got)
	}
	if got := (&Job{}).OptionString("model"); got != "" {
		t.Fatalf("nil options = %q, want empty", got)
	}
}
