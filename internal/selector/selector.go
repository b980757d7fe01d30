package selector

import (
	"sort"
	"strings"
	"time"

	"github.com/linkenthegreat/docex/internal/domain"
)

// Strategy describes one execution strategy: a name and its statically
// ordered list of applicable models. The list order is the deterministic
// tie-break when the priority affinity ranks two models equally.
type Strategy struct {
	Name   string
	Models []string
	// Local marks strategies whose models run offline. Privacy-priority
	// selection considers local strategies exclusively.
	Local bool
}

// Candidate is one (strategy, model) pair the executor should attempt.
type Candidate struct {
	Strategy string
	Model    string
}

// modelAffinity ranks well-known models under each priority. Models absent
// from a list rank after all listed ones, keeping their static order.
var modelAffinity = map[domain.Priority][]string{
	domain.PriorityQuality: {"gpt-4o", "deepseek-v3"},
	domain.PrioritySpeed:   {"deepseek-v3", "gpt-4o"},
	domain.PriorityCost:    {"deepseek-v3"},
}

// localFirst reports whether the priority prefers local strategies ahead of
// remote ones.
func localFirst(p domain.Priority) bool {
	return p == domain.PriorityCost || p == domain.PriorityPrivacy
}

// Selector ranks strategy/model candidates. It carries only static strategy
// descriptors; Select itself is a pure function of its arguments.
type Selector struct {
	strategies      []Strategy
	defaultStrategy string
}

// New builds a selector over the given strategies. defaultStrategy names the
// optimistic last resort returned when no model is available at all.
func New(strategies []Strategy, defaultStrategy string) *Selector {
	return &Selector{strategies: strategies, defaultStrategy: defaultStrategy}
}

// Select returns the ordered candidate list for one job.
//
// An explicit (strategy, model) pair bypasses priority logic entirely when
// the model is available; an unavailable explicit pair falls through to the
// normal ranking so the job still has a chance to run. A strategy none of
// whose models are available is dropped, never offered. When nothing is
// available the designated default strategy's first model is returned as a
// single optimistic candidate.
func (s *Selector) Select(priority domain.Priority, explicitStrategy, explicitModel string, availability map[string]bool) []Candidate {
	if explicitStrategy != "" && explicitModel != "" {
		if st := s.find(explicitStrategy); st != nil && contains(st.Models, explicitModel) && availability[explicitModel] {
			return []Candidate{{Strategy: st.Name, Model: explicitModel}}
		}
	}

	ordered := s.orderStrategies(priority, explicitStrategy)

	var candidates []Candidate
	for _, st := range ordered {
		models := rankModels(st.Models, priority, availability)
		for _, m := range models {
			if explicitModel != "" && m != explicitModel {
				continue
			}
			candidates = append(candidates, Candidate{Strategy: st.Name, Model: m})
		}
	}
	if len(candidates) > 0 {
		return candidates
	}

	// Last resort: offer the default strategy regardless of availability.
	// Its invocation is expected to fail fast if truly unreachable, which
	// surfaces a clear error instead of silently doing nothing.
	if st := s.find(s.defaultStrategy); st != nil && len(st.Models) > 0 {
		if priority == domain.PriorityPrivacy && !st.Local {
			return nil
		}
		return []Candidate{{Strategy: st.Name, Model: st.Models[0]}}
	}
	return nil
}

func (s *Selector) find(name string) *Strategy {
	for i := range s.strategies {
		if s.strategies[i].Name == name {
			return &s.strategies[i]
		}
	}
	return nil
}

// orderStrategies returns strategies in priority order: privacy restricts to
// local strategies, cost prefers local first, quality and speed prefer remote
// first. Within a class, constructor order is preserved.
func (s *Selector) orderStrategies(priority domain.Priority, explicitStrategy string) []Strategy {
	var pool []Strategy
	for _, st := range s.strategies {
		if explicitStrategy != "" && st.Name != explicitStrategy {
			continue
		}
		if priority == domain.PriorityPrivacy && !st.Local {
			continue
		}
		pool = append(pool, st)
	}
	preferLocal := localFirst(priority)
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Local != pool[j].Local {
			if preferLocal {
				return pool[i].Local
			}
			return pool[j].Local
		}
		return false
	})
	return pool
}

// rankModels filters a strategy's models to available ones and orders them by
// the priority affinity, falling back to static list order.
func rankModels(models []string, priority domain.Priority, availability map[string]bool) []string {
	affinity := modelAffinity[priority]
	rank := func(m string) int {
		for i, a := range affinity {
			if a == m {
				return i
			}
		}
		return len(affinity)
	}
	var out []string
	for _, m := range models {
		if availability[m] {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

func contains(list []string, v string) bool {
	for _, m := range list {
		if m == v {
			return true
		}
	}
	return false
}

// RecommendPriority suggests a submission priority from the current
// availability map: free local processing when it is up, otherwise the cheap
// fast remote model, otherwise the high-capability one.
func RecommendPriority(availability map[string]bool) domain.Priority {
	switch {
	case hasAvailable(availability, "llama"):
		return domain.PriorityCost
	case availability["deepseek-v3"]:
		return domain.PrioritySpeed
	case availability["gpt-4o"]:
		return domain.PriorityQuality
	default:
		return domain.PriorityCost
	}
}

// hasAvailable matches on a model-name fragment so locally configured model
// tags (llama3.1:8b-instruct-q8_0 and friends) are recognized.
func hasAvailable(availability map[string]bool, fragment string) bool {
	for m, ok := range availability {
		if ok && strings.Contains(strings.ToLower(m), fragment) {
			return true
		}
	}
	return false
}

// EstimatedDuration is the rough wall-clock estimate returned at submission
// time, by priority. Local inference dominates the cost and privacy paths.
func EstimatedDuration(priority domain.Priority) time.Duration {
	switch priority {
	case domain.PriorityQuality:
		return 90 * time.Second
	case domain.PrioritySpeed:
		return 45 * time.Second
	case domain.PriorityCost, domain.PriorityPrivacy:
		return 4 * time.Minute
	default:
		return 2 * time.Minute
	}
}

// PlannedModel names the model a priority is expected to land on when
// everything is available, with its flat per-document cost estimate. Used for
// the pre-submission cost table on the status endpoint.
func PlannedModel(priority domain.Priority) (string, float64) {
	switch priority {
	case domain.PriorityQuality:
		return "gpt-4o", 0.008
	case domain.PrioritySpeed:
		return "deepseek-v3", 0.002
	default:
		return "llama3.1:8b-instruct-q8_0", 0
	}
}
