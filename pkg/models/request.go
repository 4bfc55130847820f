package models

// ── Router Requests ──────────────────────────────────────────

// AskRequest asks a question about clipboard items.
type AskRequest struct {
	Question string   `json:"question"`
	ItemIDs  []string `json:"item_ids,omitempty"`
	Provider string   `json:"provider,omitempty"` // overrides the configured preference
	Items    []Item   `json:"-"`                  // resolved context, filled by the caller
	// LocalOnly restricts routing to local providers.
	LocalOnly bool `json:"local_only,omitempty"`
}

// TagRequest asks for tags for a piece of content.
type TagRequest struct {
	Content   string `json:"content"`
	Provider  string `json:"provider,omitempty"`
	LocalOnly bool   `json:"local_only,omitempty"`
}

// ImageRequest asks a vision-capable provider to describe an image.
type ImageRequest struct {
	Image     []byte `json:"image"`
	MediaType string `json:"media_type"`
	Provider  string `json:"provider,omitempty"`
}
