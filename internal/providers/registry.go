// Package providers implements the AI backends (Anthropic, OpenAI-compatible,
// Ollama and the in-process Offline fallback) and the ordered registry the
// router routes over.
package providers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// Registry is the ordered, immutable set of providers. It is built once at
// startup and passed by reference.
type Registry struct {
	ordered  []contracts.Provider
	terminal contracts.Provider
	byID     map[string]contracts.Provider
}

// NewRegistry creates a registry. ordered is the preference order; terminal
// is always tried last and must not also appear in ordered.
func NewRegistry(terminal contracts.Provider, ordered ...contracts.Provider) (*Registry, error) {
	if terminal == nil {
		return nil, fmt.Errorf("registry: terminal provider is required")
	}
	r := &Registry{
		terminal: terminal,
		byID:     make(map[string]contracts.Provider, len(ordered)+1),
	}
	r.byID[terminal.Descriptor().ID] = terminal
	for _, p := range ordered {
		id := p.Descriptor().ID
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("registry: duplicate provider id %q", id)
		}
		r.byID[id] = p
		r.ordered = append(r.ordered, p)
	}
	return r, nil
}

// Ordered returns the non-terminal providers in preference order.
func (r *Registry) Ordered() []contracts.Provider {
	return append([]contracts.Provider(nil), r.ordered...)
}

// Terminal returns the last-resort provider.
func (r *Registry) Terminal() contracts.Provider { return r.terminal }

// All returns every provider, terminal last.
func (r *Registry) All() []contracts.Provider {
	return append(r.Ordered(), r.terminal)
}

// Get looks up a provider by id.
func (r *Registry) Get(id string) (contracts.Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// IsTerminal reports whether id is the terminal provider.
func (r *Registry) IsTerminal(id string) bool {
	return r.terminal.Descriptor().ID == id
}

// ProbeProvider refreshes one provider. Providers without a probe report
// their plain availability.
func ProbeProvider(ctx context.Context, p contracts.Provider) models.ProviderTestResult {
	start := time.Now()
	res := models.ProviderTestResult{Provider: p.Descriptor().ID}

	if pr, ok := p.(contracts.Prober); ok {
		if err := pr.Probe(ctx); err != nil {
			res.Error = err.Error()
		} else {
			res.Healthy = true
		}
	} else {
		res.Healthy = p.IsAvailable(ctx)
		if !res.Healthy {
			res.Error = ErrUnavailable.Error()
		}
	}
	res.LatencyMs = time.Since(start).Milliseconds()
	res.Models = p.Descriptor().Models
	return res
}

// ProbeAll probes every provider concurrently. Results follow All() order.
func (r *Registry) ProbeAll(ctx context.Context) []models.ProviderTestResult {
	all := r.All()
	results := make([]models.ProviderTestResult, len(all))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range all {
		g.Go(func() error {
			results[i] = ProbeProvider(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
