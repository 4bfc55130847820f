package models

import "time"

// ── AI Provider ──────────────────────────────────────────────

// Locality tells whether a provider runs in the cloud or on the user's side.
type Locality string

const (
	LocalityCloud Locality = "cloud"
	LocalityLocal Locality = "local"
)

// Capability is a feature a provider can serve.
type Capability string

const (
	CapTextGeneration Capability = "text-generation"
	CapStreaming      Capability = "streaming"
	CapTagging        Capability = "tagging"
	CapVision         Capability = "vision"
)

// ProviderDescriptor identifies a registered provider. Only Models changes
// after registration, and only through an explicit probe.
type ProviderDescriptor struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Locality     Locality     `json:"locality"`
	Capabilities []Capability `json:"capabilities"`
	Models       []string     `json:"models,omitempty"`
}

// Supports reports whether the descriptor lists the capability.
func (d ProviderDescriptor) Supports(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ProviderStatus is the runtime view of a provider returned by the router.
type ProviderStatus struct {
	ProviderDescriptor
	Available    bool    `json:"available"`
	CircuitState string  `json:"circuit_state"`
	Failures     int     `json:"failures"`
	TokensLeft   float64 `json:"tokens_left"`
	IsPreferred  bool    `json:"is_preferred"`
	IsTerminal   bool    `json:"is_terminal"`
}

// ProviderTestResult is returned by a probe.
type ProviderTestResult struct {
	Provider  string   `json:"provider"`
	Healthy   bool     `json:"healthy"`
	LatencyMs int64    `json:"latency_ms"`
	Models    []string `json:"models,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ── Completions ──────────────────────────────────────────────

// TokenUsage holds token counts and the estimated cost of one call.
type TokenUsage struct {
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	TotalTokens   int64   `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

// Completion is the text produced by a provider call.
type Completion struct {
	ID        string     `json:"id"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model,omitempty"`
	Content   string     `json:"content"`
	Usage     TokenUsage `json:"usage"`
	LatencyMs int64      `json:"latency_ms"`
}

// TagResult is the normalized tag set produced for a piece of content.
type TagResult struct {
	Provider string     `json:"provider"`
	Tags     []string   `json:"tags"`
	Usage    TokenUsage `json:"usage"`
}

// StreamChunk is a single delta from a streamed answer.
type StreamChunk struct {
	Content  string `json:"content,omitempty"`
	Provider string `json:"provider,omitempty"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// ── Usage ────────────────────────────────────────────────────

// UsageRecord is one completed provider call. Records are never mutated.
type UsageRecord struct {
	ProviderID      string    `json:"provider_id"`
	Timestamp       time.Time `json:"timestamp"`
	EstimatedTokens int       `json:"estimated_tokens"`
	EstimatedCost   float64   `json:"estimated_cost_usd"`
}

// ProviderUsage aggregates calls for one provider.
type ProviderUsage struct {
	Calls  int     `json:"calls"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost_usd"`
}

// UsageStats aggregates calls over a period.
type UsageStats struct {
	From       time.Time                `json:"from"`
	To         time.Time                `json:"to"`
	Calls      int                      `json:"calls"`
	Tokens     int                      `json:"tokens"`
	Cost       float64                  `json:"cost_usd"`
	ByProvider map[string]ProviderUsage `json:"by_provider"`
}
