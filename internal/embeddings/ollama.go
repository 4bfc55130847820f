package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaModel is the embedding model pulled by default.
const DefaultOllamaModel = "nomic-embed-text"

// OllamaDriver embeds text with a local Ollama daemon via /api/embed.
// Known dimensions: nomic-embed-text (768), mxbai-embed-large (1024),
// all-minilm (384).
type OllamaDriver struct {
	endpoint   string
	model      string
	dimensions int
	batchSize  int
	client     *http.Client
}

// OllamaOption configures the Ollama driver.
type OllamaOption func(*OllamaDriver)

// WithOllamaBatchSize sets the max texts per Embed call.
func WithOllamaBatchSize(size int) OllamaOption {
	return func(d *OllamaDriver) { d.batchSize = size }
}

// WithOllamaClient replaces the HTTP client.
func WithOllamaClient(c *http.Client) OllamaOption {
	return func(d *OllamaDriver) { d.client = c }
}

// NewOllamaDriver creates an Ollama embedding driver. Empty endpoint and
// model fall back to the local daemon and DefaultOllamaModel.
func NewOllamaDriver(endpoint, model string, opts ...OllamaOption) *OllamaDriver {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	dims := 768
	switch model {
	case "mxbai-embed-large":
		dims = 1024
	case "all-minilm", "all-minilm:l6-v2":
		dims = 384
	}

	d := &OllamaDriver{
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		dimensions: dims,
		batchSize:  512,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OllamaDriver) Kind() string      { return "ollama" }
func (d *OllamaDriver) Dimensions() int   { return d.dimensions }
func (d *OllamaDriver) MaxBatchSize() int { return d.batchSize }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns one vector per text, in input order.
func (d *OllamaDriver) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := checkBatch(len(texts), d.batchSize); err != nil {
		return nil, err
	}

	var result ollamaEmbedResponse
	err := post(ctx, d.client, d.Kind(), d.endpoint+"/api/embed", nil,
		ollamaEmbedRequest{Model: d.model, Input: texts}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

// HealthCheck verifies Ollama is reachable and the model is pulled.
func (d *OllamaDriver) HealthCheck(ctx context.Context) error {
	_, err := d.Embed(ctx, []string{"health check"})
	return err
}
