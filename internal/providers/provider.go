package providers

import (
	"context"
	"encoding/json"
)

// Request carries one extraction attempt to a provider. Document is the
// resolved material; Options passes through from the job untouched.
type Request struct {
	Input    string
	Document string
	Model    string
	Options  map[string]any
}

// Result is the opaque payload returned by a provider. The orchestration core
// never inspects Payload beyond minimal shape validation; the char counts
// feed the metered cost model.
type Result struct {
	Payload     json.RawMessage
	InputChars  int
	OutputChars int
}

// Provider is a pluggable extraction backend hosting one or more models.
type Provider interface {
	Name() string
	Models() []string
	Invoke(ctx context.Context, req Request) (*Result, error)
	// Ping is a cheap, bounded-latency reachability check used by the
	// availability prober. It must not perform real work.
	Ping(ctx context.Context) error
	// Cost estimates the charge for a finished invocation. Local providers
	// return zero; metered providers apply a linear per-size rate.
	Cost(model string, inputChars, outputChars int) float64
}
