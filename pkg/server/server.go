// Package server provides the public entry point for initializing the
// ClipHaven daemon.
//
// This package exists in pkg/ (not internal/) so that a desktop shell can
// embed the core and serve the same handler in-process.
//
// Usage:
//
//	srv, err := server.New(ctx, config.Load())
//	http.ListenAndServe(":7424", srv.Handler)
//	defer srv.Shutdown(ctx)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/internal/api"
	"github.com/cliphaven/cliphaven/internal/api/handlers"
	"github.com/cliphaven/cliphaven/internal/api/middleware"
	"github.com/cliphaven/cliphaven/internal/breaker"
	"github.com/cliphaven/cliphaven/internal/config"
	"github.com/cliphaven/cliphaven/internal/embeddings"
	"github.com/cliphaven/cliphaven/internal/providers"
	"github.com/cliphaven/cliphaven/internal/retention"
	"github.com/cliphaven/cliphaven/internal/router"
	"github.com/cliphaven/cliphaven/internal/search"
	"github.com/cliphaven/cliphaven/internal/sessions"
	"github.com/cliphaven/cliphaven/internal/store"
	"github.com/cliphaven/cliphaven/internal/telemetry"
	"github.com/cliphaven/cliphaven/internal/usage"
	"github.com/cliphaven/cliphaven/internal/vectorstore"
	"github.com/cliphaven/cliphaven/pkg/contracts"
)

const (
	usageDB          = "usage.db"
	itemsFile        = "items.json"
	secretsFile      = "secrets.json"
	blobsDir         = "blobs"
	archiveDir       = "archive"
	sessionSweep     = time.Minute
	startupProbeTime = 10 * time.Second
)

// Server holds the initialized ClipHaven core.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Router is the AI access layer. The CLI calls it in-process.
	Router *router.Router

	Items    *store.ItemStore
	Search   *search.Engine
	Sessions *sessions.Manager
	Secrets  contracts.SecretStore

	Embeddings   *embeddings.Registry
	VectorStores *vectorstore.Registry

	Config *config.Config

	handlers *handlers.Handlers
	stopBg   context.CancelFunc
	closers  []func() error
	shutdown func(context.Context) error
}

// SetLogLevel applies a zerolog level name. Unknown names keep info.
func SetLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

// New initializes every component from cfg and returns a ready Server.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	SetLogLevel(cfg.LogLevel)
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s := &Server{Config: cfg, shutdown: shutdown}

	if err := s.initStorage(); err != nil {
		s.Shutdown(ctx)
		return nil, err
	}
	if err := s.initRouter(ctx); err != nil {
		s.Shutdown(ctx)
		return nil, err
	}
	index, err := s.initSemantic(ctx)
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}

	var searcher contracts.SemanticSearcher
	var indexer handlers.Indexer
	if index != nil {
		searcher, indexer = index, index
	}
	s.Search = search.NewEngine(s.Items, searcher, search.Config{
		Debounce:        cfg.Search.Debounce,
		Limit:           cfg.Search.Limit,
		SemanticTimeout: cfg.Search.SemanticTimeout,
	})
	log.Info().Bool("semantic", searcher != nil).Msg("✅ Search engine initialized")

	s.Sessions = sessions.NewManager(s.Search, cfg.Search.SessionIdle)
	go s.Sessions.Run(sessionSweep)

	s.handlers = handlers.New(s.Router, s.Items, s.Secrets, s.Search, s.Sessions, indexer)
	var auth *middleware.APIKeyAuth
	if len(cfg.Auth.APIKeys) > 0 {
		auth = middleware.NewAPIKeyAuth(cfg.Auth.APIKeys)
		log.Info().Int("keys", len(cfg.Auth.APIKeys)).Msg("🔒 API key auth enabled")
	}
	s.Handler = api.NewRouter(cfg, s.handlers, auth)

	if err := s.startRetention(indexer); err != nil {
		s.Shutdown(ctx)
		return nil, err
	}

	// Refresh local provider state without delaying startup.
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), startupProbeTime)
		defer cancel()
		for _, res := range s.Router.ProbeAll(pctx) {
			log.Debug().Str("provider", res.Provider).Bool("healthy", res.Healthy).Msg("Startup probe")
		}
		if index == nil {
			return
		}
		for name, err := range s.Embeddings.HealthCheckAll(pctx) {
			if err != nil {
				log.Debug().Str("driver", name).Err(err).Msg("Embedding driver not ready")
			}
		}
		for name, err := range s.VectorStores.HealthCheckAll(pctx) {
			if err != nil {
				log.Warn().Str("store", name).Err(err).Msg("Vector store health check failed")
			}
		}
	}()

	return s, nil
}

func (s *Server) initStorage() error {
	cfg := s.Config
	switch cfg.Storage.Secrets {
	case "memory":
		s.Secrets = store.NewMemorySecretStore()
	default:
		s.Secrets = store.NewFileSecretStore(cfg.Path(secretsFile))
	}

	opts := []store.ItemOption{store.WithItemCapacity(cfg.Storage.ItemCapacity)}
	if cfg.Storage.PersistItems {
		opts = append(opts, store.WithSnapshot(cfg.Path(itemsFile)))
	}
	s.Items = store.NewItemStore(opts...)
	s.closers = append(s.closers, s.Items.Close)
	log.Info().Int("items", s.Items.Len()).Str("secrets", cfg.Storage.Secrets).Msg("✅ Item store initialized")
	return nil
}

func (s *Server) usageBlobs() (contracts.BlobStore, error) {
	cfg := s.Config
	switch cfg.Storage.Usage {
	case "memory":
		return store.NewMemoryBlobStore(), nil
	case "file":
		return store.NewFileBlobStore(cfg.Path(blobsDir))
	default:
		db, err := store.NewSQLiteBlobStore(cfg.Path(usageDB))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		return db, nil
	}
}

func (s *Server) initRouter(ctx context.Context) error {
	cfg := s.Config
	blobs, err := s.usageBlobs()
	if err != nil {
		return fmt.Errorf("init usage store: %w", err)
	}
	tracker := usage.NewTracker(ctx, blobs, usage.WithPrices(usage.DefaultPrices.Merge(cfg.AI.Prices)))

	client := &http.Client{}
	reg, err := providers.NewRegistry(providers.NewOffline(),
		providers.NewAnthropic(s.Secrets, providers.AnthropicConfig{
			Endpoint:  cfg.Anthropic.Endpoint,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}, client),
		providers.NewOpenAI(s.Secrets, providers.OpenAIConfig{
			Endpoint: cfg.OpenAI.Endpoint,
			Model:    cfg.OpenAI.Model,
		}, client),
		providers.NewOllama(providers.OllamaConfig{
			Endpoint:     cfg.Ollama.Endpoint,
			Model:        cfg.Ollama.Model,
			ProbeRetries: uint64(max(cfg.Ollama.ProbeRetries, 0)),
		}, client),
	)
	if err != nil {
		return fmt.Errorf("init providers: %w", err)
	}

	s.Router = router.New(reg, tracker, router.Config{
		Preferred:   cfg.AI.Preferred,
		CallTimeout: cfg.AI.CallTimeout,
		Limit:       router.Limit{Capacity: cfg.AI.RateCapacity, RefillRate: cfg.AI.RefillRate},
		Breaker: []breaker.Option{
			breaker.WithThreshold(cfg.AI.BreakerThreshold),
			breaker.WithResetTimeout(cfg.AI.BreakerReset),
		},
	})
	log.Info().Int("providers", len(reg.All())).Str("preferred", cfg.AI.Preferred).Msg("✅ Provider router initialized")
	return nil
}

// initSemantic registers the embedding and vector store drivers and returns
// the configured semantic index, or nil when semantic search is disabled.
func (s *Server) initSemantic(ctx context.Context) (*vectorstore.SemanticIndex, error) {
	cfg := s.Config
	s.Embeddings = embeddings.NewRegistry()
	s.VectorStores = vectorstore.NewRegistry()
	if cfg.Embeddings.Driver == "none" {
		log.Info().Msg("Semantic search disabled")
		return nil, nil
	}

	// The configured model only applies to the selected driver.
	modelFor := func(name string) string {
		if name == cfg.Embeddings.Driver {
			return cfg.Embeddings.Model
		}
		return ""
	}
	s.Embeddings.Register("ollama", embeddings.NewOllamaDriver(cfg.Ollama.Endpoint, modelFor("ollama")))
	s.Embeddings.Register("openai", embeddings.NewOpenAIDriver(s.Secrets, modelFor("openai"),
		embeddings.WithOpenAIEndpoint(cfg.OpenAI.Endpoint)))
	driver, err := s.Embeddings.Get(cfg.Embeddings.Driver)
	if err != nil {
		return nil, fmt.Errorf("init embeddings: %w", err)
	}

	s.VectorStores.Register("embedded", vectorstore.NewEmbeddedStore(vectorstore.WithMaxVectors(cfg.VectorStore.MaxVectors)))
	if cfg.VectorStore.Kind == "pgvector" {
		if cfg.VectorStore.PgvectorURL == "" {
			return nil, errors.New("init vector store: CLIPHAVEN_PGVECTOR_URL is required for pgvector")
		}
		pg, err := vectorstore.NewPgvectorStore(ctx, cfg.VectorStore.PgvectorURL, driver.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("init vector store: %w", err)
		}
		s.closers = append(s.closers, func() error { pg.Close(); return nil })
		s.VectorStores.Register("pgvector", pg)
	}
	vs, err := s.VectorStores.Get(cfg.VectorStore.Kind)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	log.Info().Str("embeddings", driver.Kind()).Str("vector_store", vs.Kind()).Msg("✅ Semantic index initialized")
	return vectorstore.NewSemanticIndex(driver, vs), nil
}

func (s *Server) startRetention(index handlers.Indexer) error {
	cfg := s.Config.Storage
	if cfg.RetentionDays <= 0 {
		return nil
	}
	var opts []retention.Option
	if index != nil {
		opts = append(opts, retention.WithIndex(index))
	}
	if cfg.ArchiveExpired {
		archive, err := store.NewFileBlobStore(s.Config.Path(archiveDir))
		if err != nil {
			return fmt.Errorf("init archive: %w", err)
		}
		opts = append(opts, retention.WithArchive(archive))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopBg = cancel
	j := retention.NewJanitor(s.Items, time.Duration(cfg.RetentionDays)*24*time.Hour, opts...)
	go j.Start(ctx)
	return nil
}

// Shutdown stops background work, flushes stores and telemetry. Safe to call
// on a partially initialized Server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.stopBg != nil {
		s.stopBg()
	}
	if s.handlers != nil {
		s.handlers.Wait()
	}
	if s.Sessions != nil {
		s.Sessions.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.shutdown = nil
	}
	return errors.Join(errs...)
}
