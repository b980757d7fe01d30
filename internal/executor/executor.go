package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/linkenthegreat/docex/internal/domain"
	"github.com/linkenthegreat/docex/internal/jobs"
	"github.com/linkenthegreat/docex/internal/providers"
	"github.com/linkenthegreat/docex/internal/selector"
	"github.com/linkenthegreat/docex/internal/stats"
)

const defaultAttemptTimeout = 5 * time.Minute

// resultSchema is the minimal shape every successful extraction must satisfy:
// a non-empty item list, and a well-formed confidence when one is present.
// Anything beyond that stays opaque to the orchestration core.
var resultSchema = jsonschema.MustCompileString("result.json", `{
	"type": "object",
	"required": ["items"],
	"properties": {
		"items": {"type": "array", "minItems": 1},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// AvailabilitySource yields the model availability map and absorbs invocation
// outcomes for circuit-breaking.
type AvailabilitySource interface {
	Probe(ctx context.Context) map[string]bool
	ReportSuccess(provider string)
	ReportFailure(provider string, err error)
}

// Options wires an Executor.
type Options struct {
	Registry *jobs.Registry
	Resolver domain.InputResolver
	Selector *selector.Selector
	Prober   AvailabilitySource
	Tracker  *stats.Tracker
	// Providers maps strategy name to the adapter that executes it.
	Providers map[string]providers.Provider
	// AttemptTimeout bounds each candidate invocation. There is deliberately
	// no way to cancel a whole job from outside: a submitted job runs to a
	// terminal status or dies with the process.
	AttemptTimeout time.Duration
	Logger         zerolog.Logger
}

// Executor runs extraction jobs: one goroutine per job, launched at
// submission. It advances the job through its coarse phases, asks the
// selector for a candidate ordering, and walks the candidates in order until
// one succeeds or all are exhausted.
type Executor struct {
	registry       *jobs.Registry
	resolver       domain.InputResolver
	selector       *selector.Selector
	prober         AvailabilitySource
	tracker        *stats.Tracker
	providers      map[string]providers.Provider
	attemptTimeout time.Duration
	logger         zerolog.Logger

	baseCtx context.Context
	wg      sync.WaitGroup
}

// New builds an Executor. baseCtx is the process-lifetime context workers run
// under; it outlives any single submission call.
func New(baseCtx context.Context, opts Options) *Executor {
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &Executor{
		registry:       opts.Registry,
		resolver:       opts.Resolver,
		selector:       opts.Selector,
		prober:         opts.Prober,
		tracker:        opts.Tracker,
		providers:      opts.Providers,
		attemptTimeout: timeout,
		logger:         opts.Logger,
		baseCtx:        baseCtx,
	}
}

// Submit creates a pending job and schedules its worker. It returns as soon
// as the record is persisted; progress is observable only via polling.
func (e *Executor) Submit(ctx context.Context, input string, priority domain.Priority, options map[string]any) (*domain.Job, error) {
	job, err := e.registry.Create(ctx, input, priority, options)
	if err != nil {
		return nil, err
	}
	e.tracker.RecordSubmitted()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Run(e.baseCtx, job.ID)
	}()
	return job, nil
}

// Wait blocks until every scheduled worker has finished. Used by tests and
// shutdown paths; submissions made while waiting are not tracked.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Run executes a single job to its terminal status. Dispatching a job that is
// already running or terminal is a logged no-op.
func (e *Executor) Run(ctx context.Context, id string) {
	job, err := e.registry.Begin(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateWorker) {
			return
		}
		e.logger.Error().Err(err).Str("job_id", id).Msg("executor: begin failed")
		return
	}
	log := e.logger.With().Str("job_id", id).Logger()
	log.Info().Str("priority", string(job.Priority)).Str("input", job.Input).Msg("executor: job started")

	e.update(ctx, id, func(j *domain.Job) {
		j.Progress = 10
		j.CurrentStep = "Resolving document"
		j.SubStep = "Locating source material"
	})

	document, err := e.resolver.Resolve(ctx, job.Input)
	if err != nil {
		log.Error().Err(err).Msg("executor: input resolution failed")
		e.fail(ctx, id, &domain.JobError{
			Code:    domain.ErrCodeInvocationFailed,
			Summary: fmt.Sprintf("input resolution failed: %v", err),
		})
		return
	}

	e.update(ctx, id, func(j *domain.Job) {
		j.Progress = 20
		j.CurrentStep = "Selecting extraction strategy"
		j.SubStep = "Probing model availability"
	})

	availability := e.prober.Probe(ctx)
	candidates := e.selector.Select(
		job.Priority,
		job.OptionString("strategy"),
		job.OptionString("model"),
		availability,
	)
	if len(candidates) == 0 {
		log.Error().Msg("executor: no candidates available")
		e.fail(ctx, id, &domain.JobError{
			Code:    domain.ErrCodeNoCandidates,
			Summary: "no strategy/model candidates available for this priority",
		})
		return
	}

	attempts := make([]domain.Attempt, 0, len(candidates))
	for i, cand := range candidates {
		progress := 20 + 50*(i+1)/len(candidates)
		e.update(ctx, id, func(j *domain.Job) {
			j.Progress = progress
			j.CurrentStep = "Running extraction"
			j.SubStep = fmt.Sprintf("Invoking %s via %s", cand.Model, cand.Strategy)
		})

		result, attemptErr := e.attempt(ctx, job, document, cand)
		if attemptErr != nil {
			log.Warn().Err(attemptErr.err).
				Str("strategy", cand.Strategy).
				Str("model", cand.Model).
				Msg("executor: candidate failed, trying next")
			attempts = append(attempts, domain.Attempt{
				Strategy: cand.Strategy,
				Model:    cand.Model,
				Code:     attemptErr.code,
				Reason:   attemptErr.err.Error(),
			})
			e.prober.ReportFailure(cand.Strategy, attemptErr.err)
			continue
		}

		e.prober.ReportSuccess(cand.Strategy)
		e.complete(ctx, id, cand, result)
		log.Info().
			Str("strategy", cand.Strategy).
			Str("model", cand.Model).
			Int("attempts", i+1).
			Msg("executor: job complete")
		return
	}

	log.Error().Int("attempts", len(attempts)).Msg("executor: all candidates exhausted")
	e.fail(ctx, id, &domain.JobError{
		Code:     domain.ErrCodeExhausted,
		Summary:  fmt.Sprintf("all %d candidates failed", len(attempts)),
		Attempts: attempts,
	})
}

// attemptError pairs a candidate failure with its taxonomy code.
type attemptError struct {
	code string
	err  error
}

// attempt invokes one candidate under the per-attempt timeout and validates
// the returned payload's shape. A structurally invalid success is a failure
// of this candidate, not a job success.
func (e *Executor) attempt(ctx context.Context, job *domain.Job, document string, cand selector.Candidate) (*providers.Result, *attemptError) {
	prov, ok := e.providers[cand.Strategy]
	if !ok {
		return nil, &attemptError{
			code: domain.ErrCodeInvocationFailed,
			err:  fmt.Errorf("strategy %q has no configured provider", cand.Strategy),
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	result, err := prov.Invoke(attemptCtx, providers.Request{
		Input:    job.Input,
		Document: document,
		Model:    cand.Model,
		Options:  job.Options,
	})
	if err != nil {
		return nil, &attemptError{code: domain.ErrCodeInvocationFailed, err: err}
	}
	if err := validateResult(result); err != nil {
		return nil, &attemptError{code: domain.ErrCodeInvalidResult, err: err}
	}
	return result, nil
}

func validateResult(result *providers.Result) error {
	if result == nil || len(result.Payload) == 0 {
		return errors.New("provider returned empty payload")
	}
	var v any
	if err := json.Unmarshal(result.Payload, &v); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := resultSchema.Validate(v); err != nil {
		return fmt.Errorf("payload shape invalid: %w", err)
	}
	return nil
}

func (e *Executor) complete(ctx context.Context, id string, cand selector.Candidate, result *providers.Result) {
	cost := 0.0
	if prov, ok := e.providers[cand.Strategy]; ok {
		cost = prov.Cost(cand.Model, result.InputChars, result.OutputChars)
	}

	e.update(ctx, id, func(j *domain.Job) {
		j.Progress = 85
		j.CurrentStep = "Validating results"
		j.SubStep = "Checking extraction payload"
	})
	final, err := e.registry.Update(ctx, id, func(j *domain.Job) {
		now := time.Now()
		j.Progress = 100
		j.CurrentStep = "Extraction complete"
		j.SubStep = ""
		j.Status = domain.JobStatusComplete
		j.StrategyUsed = cand.Strategy
		j.ModelUsed = cand.Model
		j.CostEstimate = cost
		j.Results = result.Payload
		j.FinishedAt = &now
	})
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", id).Msg("executor: finalize failed")
		return
	}
	e.tracker.Record(final)
}

func (e *Executor) fail(ctx context.Context, id string, jobErr *domain.JobError) {
	final, err := e.registry.Update(ctx, id, func(j *domain.Job) {
		now := time.Now()
		j.CurrentStep = "Extraction failed"
		j.SubStep = ""
		j.Status = domain.JobStatusError
		j.Error = jobErr
		j.FinishedAt = &now
	})
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", id).Msg("executor: finalize failed")
		return
	}
	e.tracker.Record(final)
}

func (e *Executor) update(ctx context.Context, id string, mutate func(*domain.Job)) {
	if _, err := e.registry.Update(ctx, id, mutate); err != nil {
		e.logger.Warn().Err(err).Str("job_id", id).Msg("executor: progress update failed")
	}
}
