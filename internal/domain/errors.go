package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNotReady        = errors.New("results not ready")
	ErrInvalidInput    = errors.New("invalid submission")
	ErrDuplicateWorker = errors.New("worker already assigned")
)

// Machine-readable failure codes carried in JobError and Attempt records.
const (
	ErrCodeNoCandidates     = "no_available_candidates"
	ErrCodeInvocationFailed = "provider_invocation_failed"
	ErrCodeInvalidResult    = "result_validation_failed"
	ErrCodeExhausted        = "all_candidates_exhausted"
)
