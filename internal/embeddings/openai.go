package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cliphaven/cliphaven/internal/providers"
	"github.com/cliphaven/cliphaven/pkg/contracts"
)

// DefaultOpenAIModel is the default OpenAI embedding model.
const DefaultOpenAIModel = "text-embedding-3-small"

// ErrMissingAPIKey is returned when no OpenAI key is stored.
var ErrMissingAPIKey = errors.New("openai api key not configured")

// OpenAIDriver embeds text with OpenAI's /v1/embeddings API. The API key is
// read from the secret store on every call so credential changes apply
// without a restart.
type OpenAIDriver struct {
	secrets    contracts.SecretStore
	model      string
	endpoint   string
	dimensions int
	batchSize  int
	client     *http.Client
}

// OpenAIOption configures the OpenAI driver.
type OpenAIOption func(*OpenAIDriver)

// WithOpenAIEndpoint sets the API base URL (e.g. for proxies). Empty keeps
// the default.
func WithOpenAIEndpoint(endpoint string) OpenAIOption {
	return func(d *OpenAIDriver) {
		if endpoint != "" {
			d.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithOpenAIBatchSize sets the max texts per Embed call.
func WithOpenAIBatchSize(size int) OpenAIOption {
	return func(d *OpenAIDriver) { d.batchSize = size }
}

// WithOpenAIClient replaces the HTTP client.
func WithOpenAIClient(c *http.Client) OpenAIOption {
	return func(d *OpenAIDriver) { d.client = c }
}

// NewOpenAIDriver creates an OpenAI embedding driver.
func NewOpenAIDriver(secrets contracts.SecretStore, model string, opts ...OpenAIOption) *OpenAIDriver {
	if model == "" {
		model = DefaultOpenAIModel
	}
	dims := 1536
	if model == "text-embedding-3-large" {
		dims = 3072
	}

	d := &OpenAIDriver{
		secrets:    secrets,
		model:      model,
		endpoint:   providers.DefaultOpenAIEndpoint,
		dimensions: dims,
		batchSize:  2048,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OpenAIDriver) Kind() string      { return "openai" }
func (d *OpenAIDriver) Dimensions() int   { return d.dimensions }
func (d *OpenAIDriver) MaxBatchSize() int { return d.batchSize }

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data []openAIEmbedData `json:"data"`
}

type openAIEmbedData struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// Embed returns one vector per text, in input order.
func (d *OpenAIDriver) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := checkBatch(len(texts), d.batchSize); err != nil {
		return nil, err
	}
	key, ok := "", false
	if d.secrets != nil {
		key, ok = d.secrets.Load(providers.OpenAISecretKey)
	}
	if !ok || key == "" {
		return nil, ErrMissingAPIKey
	}

	var result openAIEmbedResponse
	err := post(ctx, d.client, d.Kind(), d.endpoint+"/embeddings",
		map[string]string{"Authorization": "Bearer " + key},
		openAIEmbedRequest{Input: texts, Model: d.model}, &result)
	if err != nil {
		return nil, err
	}

	// Reorder by index
	vectors := make([][]float64, len(texts))
	for _, e := range result.Data {
		if e.Index >= 0 && e.Index < len(vectors) {
			vectors[e.Index] = e.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai embeddings: missing vector for input %d", i)
		}
	}
	return vectors, nil
}

// HealthCheck verifies the API key by embedding a test string.
func (d *OpenAIDriver) HealthCheck(ctx context.Context) error {
	_, err := d.Embed(ctx, []string{"health check"})
	return err
}
