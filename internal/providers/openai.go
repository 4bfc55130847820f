package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// OpenAI defaults.
const (
	OpenAIID              = "openai"
	OpenAISecretKey       = "openai_api_key"
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	Endpoint string
	Model    string
}

// OpenAI calls any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	cfg     OpenAIConfig
	secrets contracts.SecretStore
	client  *http.Client

	mu     sync.RWMutex
	models []string
}

// NewOpenAI creates the backend. A nil client uses a 60s-timeout client.
func NewOpenAI(secrets contracts.SecretStore, cfg OpenAIConfig, client *http.Client) *OpenAI {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOpenAIEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAI{cfg: cfg, secrets: secrets, client: defaultClient(client), models: []string{cfg.Model}}
}

func (o *OpenAI) Descriptor() models.ProviderDescriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return models.ProviderDescriptor{
		ID:           OpenAIID,
		DisplayName:  "OpenAI",
		Locality:     models.LocalityCloud,
		Capabilities: []models.Capability{models.CapTextGeneration, models.CapTagging},
		Models:       append([]string(nil), o.models...),
	}
}

func (o *OpenAI) IsAvailable(_ context.Context) bool {
	_, ok := o.apiKey()
	return ok
}

func (o *OpenAI) apiKey() (string, bool) {
	if o.secrets == nil {
		return "", false
	}
	key, ok := o.secrets.Load(OpenAISecretKey)
	return key, ok && key != ""
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) GenerateAnswer(ctx context.Context, question string, contextItems []models.Item) (*models.Completion, error) {
	return o.chat(ctx, answerSystemPrompt, answerPrompt(question, contextItems))
}

func (o *OpenAI) GenerateTags(ctx context.Context, content string) (*models.TagResult, error) {
	c, err := o.chat(ctx, tagSystemPrompt, tagPrompt(content))
	if err != nil {
		return nil, err
	}
	return &models.TagResult{Provider: OpenAIID, Tags: ParseTags(c.Content), Usage: c.Usage}, nil
}

func (o *OpenAI) chat(ctx context.Context, system, prompt string) (*models.Completion, error) {
	key, ok := o.apiKey()
	if !ok {
		return nil, fmt.Errorf("openai: api key not configured: %w", ErrUnavailable)
	}

	req := openAIRequest{
		Model: o.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + key}

	start := time.Now()
	var resp openAIResponse
	if err := postJSON(ctx, o.client, OpenAIID, o.cfg.Endpoint+"/chat/completions", headers, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, malformedErr(OpenAIID, fmt.Errorf("no choices"))
	}

	content := resp.Choices[0].Message.Content
	usage := models.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	fillUsage(&usage, prompt, content)

	id := resp.ID
	if id == "" {
		id = uuid.New().String()
	}
	model := resp.Model
	if model == "" {
		model = o.cfg.Model
	}
	return &models.Completion{
		ID:        id,
		Provider:  OpenAIID,
		Model:     model,
		Content:   content,
		Usage:     usage,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Probe validates the credential and refreshes the model list via GET /models.
func (o *OpenAI) Probe(ctx context.Context) error {
	key, ok := o.apiKey()
	if !ok {
		return fmt.Errorf("openai: api key not configured: %w", ErrUnavailable)
	}
	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := getJSON(ctx, o.client, OpenAIID, o.cfg.Endpoint+"/models", map[string]string{"Authorization": "Bearer " + key}, &resp); err != nil {
		return err
	}

	names := []string{o.cfg.Model}
	for _, m := range resp.Data {
		if m.ID != "" && m.ID != o.cfg.Model {
			names = append(names, m.ID)
		}
	}
	o.mu.Lock()
	o.models = names
	o.mu.Unlock()
	return nil
}
