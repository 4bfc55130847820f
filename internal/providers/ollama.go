package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// Ollama defaults.
const (
	OllamaID              = "ollama"
	DefaultOllamaEndpoint = "http://localhost:11434"
	DefaultOllamaModel    = "llama3.2"

	// AvailabilityTTL is how long a discovery result is reused.
	AvailabilityTTL = 30 * time.Second

	discoveryTimeout = 3 * time.Second
)

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	Endpoint string
	Model    string
	// ProbeRetries bounds the retries of an explicit Probe. Zero means 3.
	ProbeRetries uint64
}

// Ollama talks to a local Ollama daemon.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client

	mu        sync.Mutex
	available bool
	checkedAt time.Time
	models    []string
	now       func() time.Time
}

// NewOllama creates the backend. A nil client uses a 60s-timeout client.
func NewOllama(cfg OllamaConfig, client *http.Client) *Ollama {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.ProbeRetries == 0 {
		cfg.ProbeRetries = 3
	}
	return &Ollama{cfg: cfg, client: defaultClient(client), now: time.Now}
}

func (o *Ollama) Descriptor() models.ProviderDescriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	return models.ProviderDescriptor{
		ID:           OllamaID,
		DisplayName:  "Ollama",
		Locality:     models.LocalityLocal,
		Capabilities: []models.Capability{models.CapTextGeneration, models.CapStreaming, models.CapTagging},
		Models:       append([]string(nil), o.models...),
	}
}

// IsAvailable reports whether the daemon answered GET /api/tags with at
// least one model. Results are cached for AvailabilityTTL.
func (o *Ollama) IsAvailable(ctx context.Context) bool {
	o.mu.Lock()
	if !o.checkedAt.IsZero() && o.now().Sub(o.checkedAt) < AvailabilityTTL {
		ok := o.available
		o.mu.Unlock()
		return ok
	}
	o.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	err := o.discover(dctx)
	if err != nil {
		log.Debug().Err(err).Msg("Ollama not available")
	}
	return err == nil
}

// Probe refreshes availability and the model list, retrying with
// exponential backoff.
func (o *Ollama) Probe(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 10 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, o.cfg.ProbeRetries), ctx)

	return backoff.Retry(func() error {
		err := o.discover(ctx)
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// discover lists installed models and updates the cached availability.
func (o *Ollama) discover(ctx context.Context) error {
	var resp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	err := getJSON(ctx, o.client, OllamaID, o.cfg.Endpoint+"/api/tags", nil, &resp)

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	if err == nil && len(names) == 0 {
		err = fmt.Errorf("ollama: no models installed: %w", ErrUnavailable)
	}

	o.mu.Lock()
	o.checkedAt = o.now()
	o.available = err == nil
	if err == nil {
		o.models = names
	}
	o.mu.Unlock()
	return err
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
	Error           string `json:"error"`
}

func (o *Ollama) GenerateAnswer(ctx context.Context, question string, contextItems []models.Item) (*models.Completion, error) {
	return o.generate(ctx, answerSystemPrompt, answerPrompt(question, contextItems))
}

func (o *Ollama) GenerateTags(ctx context.Context, content string) (*models.TagResult, error) {
	c, err := o.generate(ctx, tagSystemPrompt, tagPrompt(content))
	if err != nil {
		return nil, err
	}
	return &models.TagResult{Provider: OllamaID, Tags: ParseTags(c.Content), Usage: c.Usage}, nil
}

func (o *Ollama) generate(ctx context.Context, system, prompt string) (*models.Completion, error) {
	req := ollamaGenerateRequest{Model: o.cfg.Model, Prompt: prompt, System: system, Stream: false}

	start := time.Now()
	var resp ollamaGenerateResponse
	if err := postJSON(ctx, o.client, OllamaID, o.cfg.Endpoint+"/api/generate", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, malformedErr(OllamaID, errors.New(resp.Error))
	}
	// A non-streaming reply always arrives complete.
	if !resp.Done {
		return nil, malformedErr(OllamaID, errors.New("reply missing done"))
	}
	return o.completion(resp.Model, resp.Response, prompt, resp.PromptEvalCount, resp.EvalCount, start), nil
}

// StreamAnswer streams NDJSON deltas from /api/generate to sink.
func (o *Ollama) StreamAnswer(ctx context.Context, question string, contextItems []models.Item, sink func(models.StreamChunk) error) (*models.Completion, error) {
	prompt := answerPrompt(question, contextItems)
	body, err := json.Marshal(ollamaGenerateRequest{Model: o.cfg.Model, Prompt: prompt, System: answerSystemPrompt, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := do(o.client, OllamaID, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var (
		text              strings.Builder
		model             string
		inTokens, outToks int64
		done              bool
	)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, malformedErr(OllamaID, err)
		}
		if chunk.Error != "" {
			return nil, malformedErr(OllamaID, errors.New(chunk.Error))
		}
		if chunk.Response != "" {
			text.WriteString(chunk.Response)
			if err := sink(models.StreamChunk{Content: chunk.Response, Provider: OllamaID}); err != nil {
				return nil, err
			}
		}
		if chunk.Done {
			model, inTokens, outToks, done = chunk.Model, chunk.PromptEvalCount, chunk.EvalCount, true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, transportErr(OllamaID, err)
	}
	if !done {
		return nil, malformedErr(OllamaID, errors.New("stream ended before done"))
	}
	return o.completion(model, text.String(), prompt, inTokens, outToks, start), nil
}

func (o *Ollama) completion(model, content, prompt string, in, out int64, start time.Time) *models.Completion {
	if model == "" {
		model = o.cfg.Model
	}
	usage := models.TokenUsage{InputTokens: in, OutputTokens: out}
	fillUsage(&usage, prompt, content)
	return &models.Completion{
		ID:        uuid.New().String(),
		Provider:  OllamaID,
		Model:     model,
		Content:   content,
		Usage:     usage,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
