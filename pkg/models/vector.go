package models

import "time"

// ── Vector Index ─────────────────────────────────────────────

// VectorDoc is an embedded item stored in the vector index. ID is the item's
// embedding-space identifier, not its store ID.
type VectorDoc struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Vector    []float64         `json:"vector"`
	CreatedAt time.Time         `json:"created_at"`
}

// VectorMatch is a single vector search result.
type VectorMatch struct {
	Doc   VectorDoc `json:"doc"`
	Score float64   `json:"score"`
}
