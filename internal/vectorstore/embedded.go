package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// DefaultMaxVectors caps the embedded store.
const DefaultMaxVectors = 50_000

// ErrCapacity is returned when an upsert would exceed the store's cap.
var ErrCapacity = errors.New("vector store capacity exceeded")

// EmbeddedStore is an in-memory vector store using brute-force cosine
// similarity. It suits a single user's clipboard history.
type EmbeddedStore struct {
	mu         sync.RWMutex
	docs       map[string]*models.VectorDoc
	maxVectors int
}

// EmbeddedOption configures the embedded store.
type EmbeddedOption func(*EmbeddedStore)

// WithMaxVectors sets the maximum number of vectors.
func WithMaxVectors(max int) EmbeddedOption {
	return func(s *EmbeddedStore) { s.maxVectors = max }
}

// NewEmbeddedStore creates an in-memory vector store.
func NewEmbeddedStore(opts ...EmbeddedOption) *EmbeddedStore {
	s := &EmbeddedStore{
		docs:       make(map[string]*models.VectorDoc),
		maxVectors: DefaultMaxVectors,
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Info().Int("max_vectors", s.maxVectors).Msg("Embedded vector store initialized")
	return s
}

func (s *EmbeddedStore) Kind() string { return "embedded" }

func (s *EmbeddedStore) Upsert(_ context.Context, docs []models.VectorDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, d := range docs {
		if d.ID == "" {
			return errors.New("vector doc without id")
		}
		if _, exists := s.docs[d.ID]; !exists {
			added++
		}
	}
	total := len(s.docs) + added
	if total > s.maxVectors {
		return fmt.Errorf("%w: %d > %d", ErrCapacity, total, s.maxVectors)
	}
	if total > s.maxVectors*9/10 {
		log.Warn().Int("count", total).Int("max", s.maxVectors).Msg("Embedded vector store nearing capacity")
	}

	now := time.Now()
	for _, d := range docs {
		cp := d
		cp.Vector = append([]float64(nil), d.Vector...)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		s.docs[cp.ID] = &cp
	}
	return nil
}

// Search returns up to topK documents ordered by descending cosine
// similarity. Documents of a different dimension are skipped.
func (s *EmbeddedStore) Search(_ context.Context, vector []float64, topK int) ([]models.VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]models.VectorMatch, 0, len(s.docs))
	for _, d := range s.docs {
		if len(d.Vector) != len(vector) {
			continue
		}
		candidates = append(candidates, models.VectorMatch{Doc: *d, Score: cosineSimilarity(vector, d.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Doc.ID < candidates[j].Doc.ID
	})
	if topK < len(candidates) {
		candidates = candidates[:max(topK, 0)]
	}
	return candidates, nil
}

func (s *EmbeddedStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *EmbeddedStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *EmbeddedStore) HealthCheck(_ context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
