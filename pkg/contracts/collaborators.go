package contracts

import (
	"context"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// ── Secret Store ────────────────────────────────────────────

// SecretStore keeps provider credentials.
// Implementations: internal/store.FileSecretStore, MemorySecretStore.
type SecretStore interface {
	Save(key, value string) bool
	Load(key string) (string, bool)
	Delete(key string) bool
}

// ── Blob Store ──────────────────────────────────────────────

// BlobStore is an opaque key-value store used for usage persistence.
// Get returns (nil, nil) when the key does not exist.
// Implementations: internal/store.SQLiteBlobStore, FileBlobStore, MemoryBlobStore.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// ── Search Collaborators ────────────────────────────────────

// ItemSource returns the live working set, most recent first.
// Implementation: internal/store.ItemStore
type ItemSource interface {
	Items() []*models.Item
}

// SemanticSearcher ranks items by meaning. Results are advisory.
// Implementation: internal/vectorstore.SemanticIndex
type SemanticSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SemanticHit, error)
}

// ── Embeddings & Vector Store ───────────────────────────────

// EmbeddingDriver turns text into vectors.
// Implementations: internal/embeddings.OllamaDriver, OpenAIDriver.
type EmbeddingDriver interface {
	Kind() string
	Dimensions() int
	MaxBatchSize() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	HealthCheck(ctx context.Context) error
}

// VectorStoreDriver stores and searches embedded documents.
// Implementations: internal/vectorstore.EmbeddedStore, PgvectorStore.
type VectorStoreDriver interface {
	Kind() string
	Upsert(ctx context.Context, docs []models.VectorDoc) error
	Search(ctx context.Context, vector []float64, topK int) ([]models.VectorMatch, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}
