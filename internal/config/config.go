// Package config loads the ClipHaven daemon configuration from the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the ClipHaven daemon.
type Config struct {
	Port     int
	Version  string
	LogLevel string
	DataDir  string

	Telemetry   TelemetryConfig
	Auth        AuthConfig
	AI          AIConfig
	Anthropic   AnthropicConfig
	OpenAI      OpenAIConfig
	Ollama      OllamaConfig
	Search      SearchConfig
	Embeddings  EmbeddingsConfig
	VectorStore VectorStoreConfig
	Storage     StorageConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	SampleRatio  float64
}

type AuthConfig struct {
	// APIKeys enables key auth on /api/v1 when non-empty.
	APIKeys []string
}

// AIConfig configures the router, its limiters and breakers.
type AIConfig struct {
	Preferred        string
	CallTimeout      time.Duration
	RateCapacity     int
	RefillRate       float64
	BreakerThreshold int
	BreakerReset     time.Duration
	// Prices overrides the per-1K-token price table, keyed by provider id.
	Prices map[string]float64
}

type AnthropicConfig struct {
	Endpoint  string
	Model     string
	MaxTokens int
}

type OpenAIConfig struct {
	Endpoint string
	Model    string
}

type OllamaConfig struct {
	Endpoint     string
	Model        string
	ProbeRetries int
}

type SearchConfig struct {
	Debounce        time.Duration
	Limit           int
	SemanticTimeout time.Duration
	SessionIdle     time.Duration
}

type EmbeddingsConfig struct {
	// Driver is "ollama", "openai" or "none".
	Driver string
	Model  string
}

type VectorStoreConfig struct {
	// Kind is "embedded" or "pgvector".
	Kind        string
	PgvectorURL string
	MaxVectors  int
}

type StorageConfig struct {
	// Usage is "sqlite", "file" or "memory".
	Usage string
	// Secrets is "file" or "memory".
	Secrets      string
	ItemCapacity int
	PersistItems bool
	// RetentionDays purges items older than this many days. Zero keeps all.
	RetentionDays int
	// ArchiveExpired writes purged items to <data dir>/archive first.
	ArchiveExpired bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	dataDir := envStr("CLIPHAVEN_DATA_DIR", defaultDataDir())
	return &Config{
		Port:     envInt("CLIPHAVEN_PORT", 7424),
		Version:  envStr("CLIPHAVEN_VERSION", "0.1.0"),
		LogLevel: envStr("CLIPHAVEN_LOG_LEVEL", "info"),
		DataDir:  dataDir,
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "cliphaven"),
			SampleRatio:  envFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		Auth: AuthConfig{
			APIKeys: envList("CLIPHAVEN_API_KEYS"),
		},
		AI: AIConfig{
			Preferred:        envStr("CLIPHAVEN_PREFERRED_PROVIDER", ""),
			CallTimeout:      envDuration("CLIPHAVEN_CALL_TIMEOUT", 60*time.Second),
			RateCapacity:     envInt("CLIPHAVEN_RATE_CAPACITY", 10),
			RefillRate:       envFloat("CLIPHAVEN_RATE_REFILL", 2.0),
			BreakerThreshold: envInt("CLIPHAVEN_BREAKER_THRESHOLD", 5),
			BreakerReset:     envDuration("CLIPHAVEN_BREAKER_RESET", 60*time.Second),
			Prices:           envPrices("CLIPHAVEN_PRICES"),
		},
		Anthropic: AnthropicConfig{
			Endpoint:  envStr("CLIPHAVEN_ANTHROPIC_ENDPOINT", ""),
			Model:     envStr("CLIPHAVEN_ANTHROPIC_MODEL", ""),
			MaxTokens: envInt("CLIPHAVEN_ANTHROPIC_MAX_TOKENS", 1024),
		},
		OpenAI: OpenAIConfig{
			Endpoint: envStr("CLIPHAVEN_OPENAI_ENDPOINT", ""),
			Model:    envStr("CLIPHAVEN_OPENAI_MODEL", ""),
		},
		Ollama: OllamaConfig{
			Endpoint:     envStr("OLLAMA_HOST", ""),
			Model:        envStr("CLIPHAVEN_OLLAMA_MODEL", ""),
			ProbeRetries: envInt("CLIPHAVEN_OLLAMA_PROBE_RETRIES", 3),
		},
		Search: SearchConfig{
			Debounce:        envDuration("CLIPHAVEN_SEARCH_DEBOUNCE", 300*time.Millisecond),
			Limit:           envInt("CLIPHAVEN_SEARCH_LIMIT", 7),
			SemanticTimeout: envDuration("CLIPHAVEN_SEMANTIC_TIMEOUT", 10*time.Second),
			SessionIdle:     envDuration("CLIPHAVEN_SESSION_IDLE", 10*time.Minute),
		},
		Embeddings: EmbeddingsConfig{
			Driver: envStr("CLIPHAVEN_EMBEDDINGS", "ollama"),
			Model:  envStr("CLIPHAVEN_EMBEDDING_MODEL", ""),
		},
		VectorStore: VectorStoreConfig{
			Kind:        envStr("CLIPHAVEN_VECTOR_STORE", "embedded"),
			PgvectorURL: envStr("CLIPHAVEN_PGVECTOR_URL", ""),
			MaxVectors:  envInt("CLIPHAVEN_MAX_VECTORS", 50_000),
		},
		Storage: StorageConfig{
			Usage:        envStr("CLIPHAVEN_USAGE_STORE", "sqlite"),
			Secrets:      envStr("CLIPHAVEN_SECRET_STORE", "file"),
			ItemCapacity: envInt("CLIPHAVEN_ITEM_CAPACITY", 1000),
			PersistItems: envBool("CLIPHAVEN_PERSIST_ITEMS", true),

			RetentionDays:  envInt("CLIPHAVEN_RETENTION_DAYS", 0),
			ArchiveExpired: envBool("CLIPHAVEN_ARCHIVE_EXPIRED", false),
		},
	}
}

// Path joins name onto the data directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.DataDir, name)
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cliphaven")
	}
	return ".cliphaven"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envPrices parses "anthropic=0.003,openai=0.0025". Malformed pairs are skipped.
func envPrices(key string) map[string]float64 {
	out := map[string]float64{}
	for _, pair := range envList(key) {
		id, price, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
		if err != nil || f < 0 {
			continue
		}
		out[strings.TrimSpace(id)] = f
	}
	return out
}
