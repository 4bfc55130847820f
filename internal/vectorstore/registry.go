// Package vectorstore holds the vector store drivers (embedded brute-force
// and pgvector) and the semantic index built on top of them.
package vectorstore

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

// ErrDriverNotFound means CLIPHAVEN_VECTOR_STORE names no registered store.
var ErrDriverNotFound = errors.New("vector store driver not found")

// Registry maps CLIPHAVEN_VECTOR_STORE values to stores. pgvector is only
// present when a connection URL was configured.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]contracts.VectorStoreDriver
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]contracts.VectorStoreDriver)}
}

// Register makes store selectable as name, replacing any earlier one.
func (r *Registry) Register(name string, store contracts.VectorStoreDriver) {
	r.mu.Lock()
	r.stores[name] = store
	r.mu.Unlock()
	log.Info().Str("name", name).Str("kind", store.Kind()).Msg("Vector store registered")
}

// Get resolves a configured store name.
func (r *Registry) Get(name string) (contracts.VectorStoreDriver, error) {
	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrDriverNotFound, name, strings.Join(r.List(), ", "))
	}
	return s, nil
}

// List returns the store names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HealthCheckAll pings every store concurrently. A nil entry means healthy.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	stores := make(map[string]contracts.VectorStoreDriver, len(r.stores))
	for name, s := range r.stores {
		stores[name] = s
	}
	r.mu.RUnlock()

	var (
		mu  sync.Mutex
		out = make(map[string]error, len(stores))
		g   errgroup.Group
	)
	for name, s := range stores {
		g.Go(func() error {
			err := s.HealthCheck(ctx)
			mu.Lock()
			out[name] = err
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}
