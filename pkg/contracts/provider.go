// Package contracts defines the service interfaces for the ClipHaven core.
//
// These interfaces form the boundary between the AI access layer, the search
// engine and their collaborators. internal/ ships concrete implementations;
// embedders can swap any of them at wiring time (pkg/server).
package contracts

import (
	"context"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// ── AI Provider ─────────────────────────────────────────────

// Provider is a pluggable AI backend.
// Implementations: internal/providers.Anthropic, OpenAI, Ollama, Offline.
//
// Providers return raw failures; the router decides whether to fall back.
type Provider interface {
	// Descriptor returns identity, locality and capabilities.
	Descriptor() models.ProviderDescriptor

	// IsAvailable reports whether the provider can currently serve calls.
	// It may perform I/O (e.g. probing a local daemon).
	IsAvailable(ctx context.Context) bool

	// GenerateAnswer answers a question using clipboard items as context.
	GenerateAnswer(ctx context.Context, question string, contextItems []models.Item) (*models.Completion, error)

	// GenerateTags returns short lowercase tags for the content.
	GenerateTags(ctx context.Context, content string) (*models.TagResult, error)
}

// StreamingProvider is implemented by providers that stream natively.
// sink is called once per delta; returning an error aborts the stream.
type StreamingProvider interface {
	Provider
	StreamAnswer(ctx context.Context, question string, contextItems []models.Item, sink func(models.StreamChunk) error) (*models.Completion, error)
}

// VisionProvider is implemented by providers that can describe images.
type VisionProvider interface {
	Provider
	AnalyzeImage(ctx context.Context, image []byte, mediaType string) (*models.Completion, error)
}

// Prober is implemented by providers whose availability or model list is
// refreshed by an explicit probe.
type Prober interface {
	Probe(ctx context.Context) error
}

// ── Router Service ──────────────────────────────────────────

// RouterService is the only entry point for AI calls.
// Implementation: internal/router.Router
type RouterService interface {
	Answer(ctx context.Context, req *models.AskRequest) (*models.Completion, error)
	StreamAnswer(ctx context.Context, req *models.AskRequest, sink func(models.StreamChunk) error) (*models.Completion, error)
	Tags(ctx context.Context, req *models.TagRequest) (*models.TagResult, error)
	Providers(ctx context.Context) []models.ProviderStatus
}
