package jobs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linkenthegreat/docex/internal/domain"
)

// Registry is the authoritative in-memory map of jobs, backed by a JobStore.
// For the current process lifetime memory is the source of truth: a failed
// persist is logged as a durability warning and never rolled back or surfaced
// to the caller as a job failure.
//
// Per job there is exactly one writer (the worker the registry handed the job
// to via Begin); the registry mutex only protects the map itself and the
// short mutation window, so concurrent create/update/poll calls across jobs
// are safe.
type Registry struct {
	store  domain.JobStore
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func NewRegistry(store domain.JobStore, logger zerolog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		now:    time.Now,
		jobs:   make(map[string]*domain.Job),
	}
}

// Create allocates an id, inserts a pending record, persists it, and returns
// a copy before any background work starts. It never blocks on the executor.
func (r *Registry) Create(ctx context.Context, input string, priority domain.Priority, options map[string]any) (*domain.Job, error) {
	if strings.TrimSpace(input) == "" {
		return nil, domain.ErrInvalidInput
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		Input:       input,
		Priority:    priority,
		Options:     options,
		Status:      domain.JobStatusPending,
		Progress:    0,
		CurrentStep: "Queued",
		StartedAt:   r.now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	snapshot := job.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// Get returns the record if resident, otherwise tries the store and
// re-inserts the rehydrated record into memory.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	if job, ok := r.jobs[id]; ok {
		defer r.mu.Unlock()
		return job.Clone(), nil
	}
	r.mu.Unlock()

	loaded, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have rehydrated meanwhile; keep the resident one.
	if job, ok := r.jobs[id]; ok {
		return job.Clone(), nil
	}
	r.jobs[id] = loaded
	r.logger.Info().Str("job_id", id).Msg("registry: rehydrated job from store")
	return loaded.Clone(), nil
}

// Update applies a mutation to the record and persists the result. Mutating a
// terminal job is a logged no-op, guarding against duplicate worker dispatch.
func (r *Registry) Update(ctx context.Context, id string, mutate func(*domain.Job)) (*domain.Job, error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if job.Status.Terminal() {
		snapshot := job.Clone()
		r.mu.Unlock()
		r.logger.Warn().Str("job_id", id).Str("status", string(snapshot.Status)).Msg("registry: ignoring mutation of terminal job")
		return snapshot, nil
	}
	mutate(job)
	snapshot := job.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// Begin transitions a pending job to running and hands it to the calling
// worker. A job that is already running or terminal yields
// ErrDuplicateWorker so a second worker backs off.
func (r *Registry) Begin(ctx context.Context, id string) (*domain.Job, error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if job.Status != domain.JobStatusPending {
		status := job.Status
		r.mu.Unlock()
		r.logger.Warn().Str("job_id", id).Str("status", string(status)).Msg("registry: refusing duplicate worker")
		return nil, domain.ErrDuplicateWorker
	}
	job.Status = domain.JobStatusRunning
	if job.StartedAt.IsZero() {
		job.StartedAt = r.now()
	}
	snapshot := job.Clone()
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// List returns jobs filtered by status; an empty status returns everything.
func (r *Registry) List(status domain.JobStatus) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job.Clone())
	}
	return out
}

// Restore repopulates memory from the store. Called once at startup, before
// the registry is shared.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	loaded, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range loaded {
		r.jobs[job.ID] = job
	}
	return len(loaded), nil
}

// Cleanup removes terminal jobs older than maxAge from memory and the store.
// Live jobs are never reaped, regardless of age.
func (r *Registry) Cleanup(ctx context.Context, maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	var expired []string
	for id, job := range r.jobs {
		if job.Status.Terminal() && job.StartedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	for _, id := range expired {
		if err := r.store.Delete(ctx, id); err != nil {
			r.logger.Warn().Err(err).Str("job_id", id).Msg("registry: cleanup delete failed")
		}
	}
	if len(expired) > 0 {
		r.logger.Info().Int("count", len(expired)).Msg("registry: cleaned up old jobs")
	}
	return len(expired)
}

func (r *Registry) persist(ctx context.Context, job *domain.Job) {
	if err := r.store.Save(ctx, job); err != nil {
		r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("registry: persist failed, crash recovery degraded for this job")
	}
}
