// Package cli implements the cliphaven command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cliphaven/cliphaven/internal/config"
	"github.com/cliphaven/cliphaven/pkg/server"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the 'serve' command that runs the HTTP daemon.
func NewServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ClipHaven HTTP daemon",
		Long: `Start the local ClipHaven API: item capture, AI routing with
fallback, usage tracking and hybrid search sessions.`,
		Example: `  cliphaven serve
  cliphaven serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port > 0 {
				cfg.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides CLIPHAVEN_PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("version", cfg.Version).Msg("📋 ClipHaven starting...")

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:     srv.Handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: SSE streams stay open.
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("🔥 ClipHaven is ready")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		srv.Shutdown(context.Background())
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("🛑 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	return srv.Shutdown(shutdownCtx)
}
