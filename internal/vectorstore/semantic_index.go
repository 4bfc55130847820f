package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// ErrSkipped is returned by Index when an item is deliberately not indexed.
var ErrSkipped = errors.New("item not indexed")

// maxEmbedChars bounds the text sent to the embedding driver per item.
const maxEmbedChars = 8000

// SemanticIndex embeds items into a vector store and answers semantic
// queries with ranked item identities.
type SemanticIndex struct {
	driver contracts.EmbeddingDriver
	store  contracts.VectorStoreDriver
}

// NewSemanticIndex pairs an embedding driver with a vector store.
func NewSemanticIndex(driver contracts.EmbeddingDriver, store contracts.VectorStoreDriver) *SemanticIndex {
	return &SemanticIndex{driver: driver, store: store}
}

// local reports whether the driver keeps content on the machine.
func (x *SemanticIndex) local() bool {
	return x.driver.Kind() == "ollama"
}

// Index embeds the item and upserts it under its SemanticKey. Sensitive
// items are only indexed by a local driver; images and empty content are
// skipped.
func (x *SemanticIndex) Index(ctx context.Context, item *models.Item) error {
	text := strings.TrimSpace(item.Title + "\n" + item.Content)
	switch {
	case item.Kind == models.ItemKindImage || text == "":
		return ErrSkipped
	case item.Sensitive && !x.local():
		return fmt.Errorf("%w: sensitive item %s with %s embeddings", ErrSkipped, item.ID, x.driver.Kind())
	}
	if r := []rune(text); len(r) > maxEmbedChars {
		text = string(r[:maxEmbedChars])
	}

	vectors, err := x.driver.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed item %s: %w", item.ID, err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embed item %s: got %d vectors", item.ID, len(vectors))
	}

	doc := models.VectorDoc{
		ID:        item.SemanticKey(),
		Content:   item.Content,
		Metadata:  map[string]string{"item_id": item.ID, "kind": string(item.Kind)},
		Vector:    vectors[0],
		CreatedAt: item.CreatedAt,
	}
	if err := x.store.Upsert(ctx, []models.VectorDoc{doc}); err != nil {
		return fmt.Errorf("index item %s: %w", item.ID, err)
	}
	log.Debug().Str("item", item.ID).Str("key", doc.ID).Msg("Item indexed")
	return nil
}

// Remove drops the item's vector.
func (x *SemanticIndex) Remove(ctx context.Context, item *models.Item) error {
	return x.store.Delete(ctx, []string{item.SemanticKey()})
}

// Search embeds the query and returns up to limit hits by descending score.
func (x *SemanticIndex) Search(ctx context.Context, query string, limit int) ([]models.SemanticHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	vectors, err := x.driver.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	matches, err := x.store.Search(ctx, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]models.SemanticHit, len(matches))
	for i, m := range matches {
		hits[i] = models.SemanticHit{ExternalID: m.Doc.ID, Score: m.Score}
	}
	return hits, nil
}

// Count returns the number of indexed items.
func (x *SemanticIndex) Count(ctx context.Context) (int, error) {
	return x.store.Count(ctx)
}
