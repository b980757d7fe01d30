package stats

import (
	"sync"
	"time"

	"github.com/linkenthegreat/docex/internal/domain"
)

// Snapshot is a read-only view of the process-wide performance aggregates.
type Snapshot struct {
	TotalSubmitted int64            `json:"total_submitted"`
	TotalSucceeded int64            `json:"total_succeeded"`
	TotalFailed    int64            `json:"total_failed"`
	SuccessRate    float64          `json:"success_rate"`
	AvgLatency     time.Duration    `json:"-"`
	AvgLatencySecs float64          `json:"avg_latency_seconds"`
	ByStrategy     map[string]int64 `json:"by_strategy"`
	ByModel        map[string]int64 `json:"by_model"`
	TotalCost      float64          `json:"total_cost"`
}

// Tracker aggregates counters from terminal job records. All updates are
// O(1); the full aggregate is rebuildable by replaying persisted terminal
// records, so restarts do not reset history.
type Tracker struct {
	mu         sync.Mutex
	submitted  int64
	succeeded  int64
	failed     int64
	byStrategy map[string]int64
	byModel    map[string]int64
	totalCost  float64
	latencySum time.Duration
	latencyN   int64
}

func NewTracker() *Tracker {
	return &Tracker{
		byStrategy: make(map[string]int64),
		byModel:    make(map[string]int64),
	}
}

// RecordSubmitted counts a freshly created job.
func (t *Tracker) RecordSubmitted() {
	t.mu.Lock()
	t.submitted++
	t.mu.Unlock()
}

// Record folds one terminal job into the aggregates. Non-terminal records are
// ignored.
func (t *Tracker) Record(job *domain.Job) {
	if job == nil || !job.Status.Terminal() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if job.Status == domain.JobStatusComplete {
		t.succeeded++
		t.totalCost += job.CostEstimate
		if job.StrategyUsed != "" {
			t.byStrategy[job.StrategyUsed]++
		}
		if job.ModelUsed != "" {
			t.byModel[job.ModelUsed]++
		}
	} else {
		t.failed++
	}
	if job.FinishedAt != nil {
		t.latencySum += job.FinishedAt.Sub(job.StartedAt)
		t.latencyN++
	}
}

// Rebuild resets the aggregates and replays the given records. Every record
// counts as submitted; terminal ones contribute their outcome. Used at
// startup with the store's LoadAll output.
func (t *Tracker) Rebuild(records []*domain.Job) {
	t.mu.Lock()
	t.submitted = 0
	t.succeeded = 0
	t.failed = 0
	t.totalCost = 0
	t.latencySum = 0
	t.latencyN = 0
	t.byStrategy = make(map[string]int64)
	t.byModel = make(map[string]int64)
	t.mu.Unlock()

	for _, job := range records {
		t.RecordSubmitted()
		t.Record(job)
	}
}

// Snapshot returns a copy of the current aggregates. Success rate defaults to
// 1.0 when nothing has finished yet.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	terminal := t.succeeded + t.failed
	rate := 1.0
	if terminal > 0 {
		rate = float64(t.succeeded) / float64(terminal)
	}
	var avg time.Duration
	if t.latencyN > 0 {
		avg = t.latencySum / time.Duration(t.latencyN)
	}
	snap := Snapshot{
		TotalSubmitted: t.submitted,
		TotalSucceeded: t.succeeded,
		TotalFailed:    t.failed,
		SuccessRate:    rate,
		AvgLatency:     avg,
		AvgLatencySecs: avg.Seconds(),
		ByStrategy:     make(map[string]int64, len(t.byStrategy)),
		ByModel:        make(map[string]int64, len(t.byModel)),
		TotalCost:      t.totalCost,
	}
	for k, v := range t.byStrategy {
		snap.ByStrategy[k] = v
	}
	for k, v := range t.byModel {
		snap.ByModel[k] = v
	}
	return snap
}
