package models

import (
	"strings"
	"time"
)

// ── Clipboard Item ───────────────────────────────────────────

// ItemKind classifies captured clipboard content.
type ItemKind string

const (
	ItemKindText  ItemKind = "text"
	ItemKindURL   ItemKind = "url"
	ItemKindCode  ItemKind = "code"
	ItemKindImage ItemKind = "image"
	ItemKindFile  ItemKind = "file"
)

// Item is a captured clipboard entry. The item store owns items; the AI and
// search layers only read them.
type Item struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Title       string    `json:"title,omitempty"`
	SourceApp   string    `json:"source_app,omitempty"`
	Kind        ItemKind  `json:"kind"`
	Tags        []string  `json:"tags,omitempty"`
	Sensitive   bool      `json:"sensitive"`
	CreatedAt   time.Time `json:"created_at"`
	EmbeddingID string    `json:"embedding_id,omitempty"`
}

// SemanticKey returns the identity used by the semantic index for this item.
func (i *Item) SemanticKey() string {
	if i.EmbeddingID != "" {
		return i.EmbeddingID
	}
	return i.ID
}

// Matches reports whether the folded query is a substring of the item's
// content, title, any tag, or source app name. An empty query matches.
func (i *Item) Matches(folded string) bool {
	if folded == "" {
		return true
	}
	if strings.Contains(strings.ToLower(i.Content), folded) ||
		strings.Contains(strings.ToLower(i.Title), folded) ||
		strings.Contains(strings.ToLower(i.SourceApp), folded) {
		return true
	}
	for _, tag := range i.Tags {
		if strings.Contains(strings.ToLower(tag), folded) {
			return true
		}
	}
	return false
}

// ── Search ───────────────────────────────────────────────────

// DefaultSearchLimit is the number of results shown to the user.
const DefaultSearchLimit = 7

// SearchQuery is a normalized search request.
type SearchQuery struct {
	Text  string `json:"text"`
	Limit int    `json:"limit"`
}

// NewSearchQuery trims and case-folds raw input. A non-positive limit falls
// back to DefaultSearchLimit.
func NewSearchQuery(raw string, limit int) SearchQuery {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return SearchQuery{Text: strings.ToLower(strings.TrimSpace(raw)), Limit: limit}
}

// SemanticHit is one ranked candidate returned by the semantic index.
type SemanticHit struct {
	ExternalID string  `json:"external_id"`
	Score      float64 `json:"score"`
}
