// Package embeddings provides the embedding driver registry and the Ollama
// and OpenAI drivers used by the semantic index.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cliphaven/cliphaven/pkg/contracts"
)

// ErrDriverNotFound means CLIPHAVEN_EMBEDDINGS names no registered driver.
var ErrDriverNotFound = errors.New("embedding driver not found")

// Registry maps CLIPHAVEN_EMBEDDINGS values to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]contracts.EmbeddingDriver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]contracts.EmbeddingDriver)}
}

// Register makes driver selectable as name. A later call with the same name
// replaces the earlier driver.
func (r *Registry) Register(name string, driver contracts.EmbeddingDriver) {
	r.mu.Lock()
	r.drivers[name] = driver
	r.mu.Unlock()
	log.Info().Str("name", name).Str("kind", driver.Kind()).Int("dims", driver.Dimensions()).Msg("Embedding driver registered")
}

// Get resolves a configured driver name. The error lists the known names.
func (r *Registry) Get(name string) (contracts.EmbeddingDriver, error) {
	r.mu.RLock()
	d, ok := r.drivers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrDriverNotFound, name, strings.Join(r.List(), ", "))
	}
	return d, nil
}

// List returns the driver names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HealthCheckAll checks every driver concurrently. A nil entry means healthy.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	names := r.List()
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		d, err := r.Get(name)
		if err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			errs[i] = d.HealthCheck(ctx)
			return nil
		})
	}
	g.Wait()

	out := make(map[string]error, len(names))
	for i, name := range names {
		out[name] = errs[i]
	}
	return out
}
