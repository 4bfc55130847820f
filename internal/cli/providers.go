package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cliphaven/cliphaven/internal/config"
	"github.com/cliphaven/cliphaven/pkg/models"
	"github.com/cliphaven/cliphaven/pkg/server"
)

const probeTimeout = 30 * time.Second

// newCore builds the in-process core for one-shot commands. Semantic search
// is not needed there.
func newCore(ctx context.Context) (*server.Server, error) {
	cfg := config.Load()
	cfg.Embeddings.Driver = "none"
	return server.New(ctx, cfg)
}

// NewProvidersCmd creates the 'providers' command that probes and lists providers.
func NewProvidersCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "providers",
		Aliases: []string{"ls"},
		Short:   "Probe and list AI providers",
		Long:    `Probe every configured AI provider and show availability, circuit state and models.`,
		Example: `  cliphaven providers
  cliphaven providers --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			core, err := newCore(ctx)
			if err != nil {
				return err
			}
			defer core.Shutdown(context.Background())

			results := core.Router.ProbeAll(ctx)
			statuses := core.Router.Providers(ctx)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"providers": statuses, "probes": results})
			}
			printProviders(cmd.OutOrStdout(), statuses, results)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func printProviders(w io.Writer, statuses []models.ProviderStatus, probes []models.ProviderTestResult) {
	byID := make(map[string]models.ProviderTestResult, len(probes))
	for _, p := range probes {
		byID[p.Provider] = p
	}

	fmt.Fprintf(w, "AI Providers (%d):\n\n", len(statuses))
	for _, st := range statuses {
		marker := ""
		switch {
		case st.IsPreferred:
			marker = " (preferred)"
		case st.IsTerminal:
			marker = " (fallback)"
		}
		fmt.Fprintf(w, "  %s%s\n", st.ID, marker)
		fmt.Fprintf(w, "    Locality: %s\n", st.Locality)
		fmt.Fprintf(w, "    Circuit:  %s\n", st.CircuitState)
		if p, ok := byID[st.ID]; ok {
			if p.Healthy {
				fmt.Fprintf(w, "    Status:   ✓ %dms\n", p.LatencyMs)
			} else {
				fmt.Fprintf(w, "    Status:   ✗ %s\n", p.Error)
			}
		}
		if len(st.Models) > 0 {
			fmt.Fprintf(w, "    Models:   %v\n", st.Models)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
