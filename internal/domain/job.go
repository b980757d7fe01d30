package domain

import (
	"encoding/json"
	"time"
)

// Priority is the caller's hint about which trade-off matters most for a job.
// It influences candidate ordering but is never a hard constraint.
type Priority string

const (
	PriorityCost    Priority = "cost"
	PriorityQuality Priority = "quality"
	PrioritySpeed   Priority = "speed"
	PriorityPrivacy Priority = "privacy"
)

// ParsePriority validates a raw priority string. An empty value defaults to
// cost, the cheapest path.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(raw) {
	case PriorityCost, PriorityQuality, PrioritySpeed, PriorityPrivacy:
		return Priority(raw), true
	case "":
		return PriorityCost, true
	default:
		return "", false
	}
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusError    JobStatus = "error"
)

// Terminal reports whether the status is sticky: once a job reaches a
// terminal status it never re-enters pending or running.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Attempt records the outcome of one failed candidate during fallback.
type Attempt struct {
	Strategy string `json:"strategy"`
	Model    string `json:"model"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// JobError is the structured failure description persisted with a failed job.
// Attempts lists every candidate that was tried, in attempt order, so a caller
// can tell a configuration problem apart from a transient provider outage.
type JobError struct {
	Code     string    `json:"code"`
	Summary  string    `json:"summary"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Job is the durable unit of work. Every field round-trips through the store
// as JSON; unknown fields are ignored on read and missing fields default, so
// older persisted records stay loadable as the schema grows.
type Job struct {
	ID           string          `json:"id"`
	Input        string          `json:"input"`
	Priority     Priority        `json:"priority"`
	Options      map[string]any  `json:"options,omitempty"`
	Status       JobStatus       `json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step"`
	SubStep      string          `json:"substep,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	StrategyUsed string          `json:"strategy_used,omitempty"`
	ModelUsed    string          `json:"model_used,omitempty"`
	CostEstimate float64         `json:"cost_estimate"`
	Results      json.RawMessage `json:"results,omitempty"`
	Error        *JobError       `json:"error,omitempty"`
}

// Clone returns a deep copy so callers can hand records across goroutines
// without sharing mutable state with the registry.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Options != nil {
		cp.Options = make(map[string]any, len(j.Options))
		for k, v := range j.Options {
			cp.Options[k] = v
		}
	}
	if j.Results != nil {
		cp.Results = append(json.RawMessage(nil), j.Results...)
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		e.Attempts = append([]Attempt(nil), j.Error.Attempts...)
		cp.Error = &e
	}
	return &cp
}

// Elapsed returns the wall-clock duration of the job: up to now while the job
// is still live, frozen at FinishedAt once terminal.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}

// OptionString reads a string-valued option, tolerating absent keys and
// non-string values. Options themselves are opaque and pass through to
// providers unmodified.
func (j *Job) OptionString(key string) string {
	if j.Options == nil {
		return ""
	}
	if v, ok := j.Options[key].(string); ok {
		return v
	}
	return ""
}
