package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cliphaven/cliphaven/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.DataDir = t.TempDir()
	cfg.LogLevel = "warn"
	cfg.Telemetry.Enabled = false
	cfg.Storage.Secrets = "memory"
	cfg.Ollama.Endpoint = "http://127.0.0.1:1"
	cfg.Ollama.ProbeRetries = 0
	return cfg
}

func TestNew_ServesHealth(t *testing.T) {
	cfg := testConfig(t)
	srv, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Shutdown(context.Background())

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", w.Code)
	}
	if got := srv.Embeddings.List(); strings.Join(got, ",") != "ollama,openai" {
		t.Errorf("embedding drivers = %v", got)
	}
	if got := srv.VectorStores.List(); strings.Join(got, ",") != "embedded" {
		t.Errorf("vector stores = %v", got)
	}
}

func TestNew_SemanticDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embeddings.Driver = "none"
	cfg.Storage.Usage = "memory"
	cfg.Storage.RetentionDays = 30
	cfg.Storage.ArchiveExpired = true
	srv, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer srv.Shutdown(context.Background())

	if n := len(srv.Embeddings.List()); n != 0 {
		t.Errorf("embedding drivers = %d, want 0", n)
	}
	res := srv.Search.Search(context.Background(), "anything", 0)
	if res.Degraded {
		t.Error("lexical-only search should not report degraded")
	}
}

func TestNew_RejectsBadDrivers(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown embeddings": func(c *config.Config) { c.Embeddings.Driver = "word2vec" },
		"unknown store":      func(c *config.Config) { c.VectorStore.Kind = "faiss" },
		"pgvector no url":    func(c *config.Config) { c.VectorStore.Kind = "pgvector"; c.VectorStore.PgvectorURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Storage.Usage = "memory"
			mutate(cfg)
			if srv, err := New(context.Background(), cfg); err == nil {
				srv.Shutdown(context.Background())
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetLogLevel("debug")
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", got)
	}
	SetLogLevel("loud")
	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %v, want info fallback", got)
	}
}
