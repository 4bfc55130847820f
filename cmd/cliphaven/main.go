/*
Package main is the entry point for the cliphaven CLI and daemon.

Usage:

	cliphaven [command]

Available Commands:

	serve       Run the ClipHaven HTTP daemon
	providers   Probe and list AI providers
	usage       Show AI usage and estimated cost
	ask         Ask the AI router a question
	version     Print the version
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cliphaven/cliphaven/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:   "cliphaven",
		Short: "Local clipboard memory with resilient multi-provider AI",
		Long: `cliphaven keeps a searchable history of clipboard items and answers
questions about them through a chain of AI providers (Anthropic, OpenAI,
Ollama) with rate limiting, circuit breaking and an offline fallback.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewProvidersCmd())
	rootCmd.AddCommand(cli.NewUsageCmd())
	rootCmd.AddCommand(cli.NewAskCmd())
	rootCmd.AddCommand(cli.NewVersionCmd(version, commit, date))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
