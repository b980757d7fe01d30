package prober

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/linkenthegreat/docex/internal/providers"
)

const (
	defaultTTL     = 30 * time.Second
	defaultTimeout = 5 * time.Second
)

// Options configures a Prober.
type Options struct {
	// TTL bounds how long a ping result is reused before providers are
	// re-probed. Keep it short so a provider coming back online is picked up
	// without a restart.
	TTL     time.Duration
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Prober determines which models are currently usable. Reachability comes
// from each provider's cheap Ping, cached with a TTL and deduplicated with
// singleflight so concurrent selections trigger one probe round. On top of
// raw reachability, a per-provider circuit breaker fed by invocation outcomes
// masks a provider out after consecutive failures until its cool-down
// elapses.
type Prober struct {
	providers []providers.Provider
	ttl       time.Duration
	timeout   time.Duration
	logger    zerolog.Logger

	group    singleflight.Group
	breakers map[string]*gobreaker.CircuitBreaker

	mu      sync.Mutex
	pinged  map[string]bool // provider name -> last ping succeeded
	expires time.Time
	now     func() time.Time
}

func New(provs []providers.Provider, opts Options) *Prober {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(provs))
	for _, p := range provs {
		settings := gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}
		breakers[p.Name()] = gobreaker.NewCircuitBreaker(settings)
	}
	return &Prober{
		providers: provs,
		ttl:       ttl,
		timeout:   timeout,
		logger:    opts.Logger,
		breakers:  breakers,
		pinged:    map[string]bool{},
		now:       time.Now,
	}
}

// Probe returns a fresh model availability map. It never returns an error:
// any probe failure marks that provider's models unavailable and nothing
// else.
func (p *Prober) Probe(ctx context.Context) map[string]bool {
	p.mu.Lock()
	fresh := p.now().Before(p.expires)
	p.mu.Unlock()

	if !fresh {
		// Collapse concurrent refreshes into a single probe round.
		_, _, _ = p.group.Do("probe", func() (any, error) {
			p.refresh(ctx)
			return nil, nil
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool)
	for _, prov := range p.providers {
		ok := p.pinged[prov.Name()] && !p.breakerOpen(prov.Name())
		for _, m := range prov.Models() {
			out[m] = ok
		}
	}
	return out
}

func (p *Prober) refresh(ctx context.Context) {
	results := make(map[string]bool, len(p.providers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, prov := range p.providers {
		wg.Add(1)
		go func(prov providers.Provider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			err := prov.Ping(pingCtx)
			if err != nil {
				p.logger.Debug().Err(err).Str("provider", prov.Name()).Msg("prober: ping failed")
			}
			mu.Lock()
			results[prov.Name()] = err == nil
			mu.Unlock()
		}(prov)
	}
	wg.Wait()

	p.mu.Lock()
	p.pinged = results
	p.expires = p.now().Add(p.ttl)
	p.mu.Unlock()
}

func (p *Prober) breakerOpen(provider string) bool {
	cb, ok := p.breakers[provider]
	if !ok {
		return false
	}
	return cb.State() == gobreaker.StateOpen
}

// ReportSuccess feeds a successful invocation into the provider's breaker.
func (p *Prober) ReportSuccess(provider string) {
	if cb, ok := p.breakers[provider]; ok {
		_, _ = cb.Execute(func() (any, error) { return nil, nil })
	}
}

// ReportFailure feeds a failed invocation into the provider's breaker. Three
// consecutive failures open the breaker and mask the provider's models out of
// subsequent availability maps until the cool-down elapses.
func (p *Prober) ReportFailure(provider string, err error) {
	if cb, ok := p.breakers[provider]; ok {
		_, _ = cb.Execute(func() (any, error) { return nil, err })
	}
}

// Invalidate drops the cached probe results so the next Probe hits providers
// again.
func (p *Prober) Invalidate() {
	p.mu.Lock()
	p.expires = time.Time{}
	p.mu.Unlock()
}
