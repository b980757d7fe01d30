package domain

import "context"

// JobStore persists job records keyed by id. Save must be atomic per record:
// a crash mid-write leaves either the previous or the new version readable,
// never a torn one.
type JobStore interface {
	Save(ctx context.Context, job *Job) error
	Load(ctx context.Context, id string) (*Job, error)
	// LoadAll returns every readable record. Individually corrupt records are
	// skipped, not fatal, so one bad file cannot block startup recovery.
	LoadAll(ctx context.Context) ([]*Job, error)
	Delete(ctx context.Context, id string) error
}

// InputResolver turns the job's opaque input reference into the material to
// be processed. Implementations may fail; resolution errors are recorded on
// the job before any provider is selected.
type InputResolver interface {
	Resolve(ctx context.Context, input string) (string, error)
}
