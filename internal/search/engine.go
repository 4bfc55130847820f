// Package search implements the hybrid search engine: an instant lexical
// filter over the live item set merged with debounced, cancellable semantic
// retrieval.
package search

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// Defaults.
const (
	DefaultDebounce        = 300 * time.Millisecond
	DefaultSemanticTimeout = 10 * time.Second

	// MinSemanticRunes is the shortest trimmed query sent to the semantic index.
	MinSemanticRunes = 2
)

// Config configures the engine and its sessions.
type Config struct {
	Debounce        time.Duration
	Limit           int
	SemanticTimeout time.Duration
}

// Engine creates search sessions and serves one-shot searches.
type Engine struct {
	source   contracts.ItemSource
	searcher contracts.SemanticSearcher // nil = lexical only
	cfg      Config
}

// NewEngine creates an engine. searcher may be nil.
func NewEngine(source contracts.ItemSource, searcher contracts.SemanticSearcher, cfg Config) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Limit <= 0 {
		cfg.Limit = models.DefaultSearchLimit
	}
	if cfg.SemanticTimeout <= 0 {
		cfg.SemanticTimeout = DefaultSemanticTimeout
	}
	return &Engine{source: source, searcher: searcher, cfg: cfg}
}

// Result is the outcome of a one-shot search.
type Result struct {
	Query models.SearchQuery `json:"query"`
	Items []*models.Item     `json:"items"`
	// Degraded is set when the semantic lookup failed and only lexical
	// matches are returned.
	Degraded bool `json:"degraded,omitempty"`
}

// Search runs one non-debounced lexical+semantic search.
func (e *Engine) Search(ctx context.Context, raw string, limit int) Result {
	if limit <= 0 {
		limit = e.cfg.Limit
	}
	q := models.NewSearchQuery(raw, limit)
	live := e.source.Items()
	lexical := Filter(live, q.Text)

	res := Result{Query: q}
	var hits []models.SemanticHit
	if e.wantsSemantic(q) {
		sctx, cancel := context.WithTimeout(ctx, e.cfg.SemanticTimeout)
		var err error
		hits, err = e.searcher.Search(sctx, q.Text, q.Limit)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("query", q.Text).Msg("Semantic search failed, returning lexical results")
			hits = nil
			res.Degraded = true
		} else {
			// Items may have changed while the index was queried.
			live = e.source.Items()
		}
	}
	res.Items = Merge(lexical, hits, live, q.Limit)
	return res
}

func (e *Engine) wantsSemantic(q models.SearchQuery) bool {
	return e.searcher != nil && utf8.RuneCountInString(q.Text) >= MinSemanticRunes
}

// NewSession opens an interactive session with the given id.
func (e *Engine) NewSession(id string) *Session {
	return newSession(id, e)
}
