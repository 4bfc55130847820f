package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// Anthropic defaults.
const (
	AnthropicID              = "anthropic"
	AnthropicSecretKey       = "anthropic_api_key"
	DefaultAnthropicEndpoint = "https://api.anthropic.com"
	DefaultAnthropicModel    = "claude-3-5-haiku-20241022"
	anthropicVersion         = "2023-06-01"
)

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	Endpoint  string
	Model     string
	MaxTokens int
}

// Anthropic calls the Anthropic Messages API. The API key is read from the
// secret store on every call so credential changes apply immediately.
type Anthropic struct {
	cfg     AnthropicConfig
	secrets contracts.SecretStore
	client  *http.Client
}

// NewAnthropic creates the backend. A nil client uses a 60s-timeout client.
func NewAnthropic(secrets contracts.SecretStore, cfg AnthropicConfig, client *http.Client) *Anthropic {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultAnthropicEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Anthropic{cfg: cfg, secrets: secrets, client: defaultClient(client)}
}

func (a *Anthropic) Descriptor() models.ProviderDescriptor {
	return models.ProviderDescriptor{
		ID:           AnthropicID,
		DisplayName:  "Anthropic Claude",
		Locality:     models.LocalityCloud,
		Capabilities: []models.Capability{models.CapTextGeneration, models.CapTagging, models.CapVision},
		Models:       []string{a.cfg.Model},
	}
}

func (a *Anthropic) IsAvailable(_ context.Context) bool {
	_, ok := a.apiKey()
	return ok
}

func (a *Anthropic) apiKey() (string, bool) {
	if a.secrets == nil {
		return "", false
	}
	key, ok := a.secrets.Load(AnthropicSecretKey)
	return key, ok && key != ""
}

// ── Wire types ──────────────────────────────────────────────

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// ── Operations ──────────────────────────────────────────────

func (a *Anthropic) GenerateAnswer(ctx context.Context, question string, contextItems []models.Item) (*models.Completion, error) {
	prompt := answerPrompt(question, contextItems)
	return a.complete(ctx, answerSystemPrompt, prompt, []anthropicBlock{{Type: "text", Text: prompt}})
}

func (a *Anthropic) GenerateTags(ctx context.Context, content string) (*models.TagResult, error) {
	prompt := tagPrompt(content)
	c, err := a.complete(ctx, tagSystemPrompt, prompt, []anthropicBlock{{Type: "text", Text: prompt}})
	if err != nil {
		return nil, err
	}
	return &models.TagResult{Provider: AnthropicID, Tags: ParseTags(c.Content), Usage: c.Usage}, nil
}

func (a *Anthropic) AnalyzeImage(ctx context.Context, image []byte, mediaType string) (*models.Completion, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("anthropic: empty image")
	}
	if mediaType == "" {
		mediaType = "image/png"
	}
	blocks := []anthropicBlock{
		{Type: "image", Source: &anthropicSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      base64.StdEncoding.EncodeToString(image),
		}},
		{Type: "text", Text: imagePrompt},
	}
	return a.complete(ctx, "", imagePrompt, blocks)
}

func (a *Anthropic) complete(ctx context.Context, system, prompt string, blocks []anthropicBlock) (*models.Completion, error) {
	key, ok := a.apiKey()
	if !ok {
		return nil, fmt.Errorf("anthropic: api key not configured: %w", ErrUnavailable)
	}

	req := anthropicRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: blocks}},
	}
	headers := map[string]string{
		"x-api-key":         key,
		"anthropic-version": anthropicVersion,
	}

	start := time.Now()
	var resp anthropicResponse
	if err := postJSON(ctx, a.client, AnthropicID, a.cfg.Endpoint+"/v1/messages", headers, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Content) == 0 {
		return nil, malformedErr(AnthropicID, fmt.Errorf("no content blocks"))
	}

	var text strings.Builder
	found := false
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
			found = true
		}
	}
	if !found {
		return nil, malformedErr(AnthropicID, fmt.Errorf("no text block"))
	}

	id := resp.ID
	if id == "" {
		id = uuid.New().String()
	}
	model := resp.Model
	if model == "" {
		model = a.cfg.Model
	}
	usage := models.TokenUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	fillUsage(&usage, prompt, text.String())

	return &models.Completion{
		ID:        id,
		Provider:  AnthropicID,
		Model:     model,
		Content:   text.String(),
		Usage:     usage,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
