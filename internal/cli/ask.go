package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cliphaven/cliphaven/internal/router"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// NewAskCmd creates the 'ask' command that streams an answer through the router.
func NewAskCmd() *cobra.Command {
	var provider string
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the AI router a question",
		Long: `Route a question through the provider chain in-process and stream the
answer. No clipboard items are attached as context.`,
		Example: `  cliphaven ask "what is a circuit breaker?"
  cliphaven ask --local "summarize rate limiting"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := newCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Shutdown(context.Background())

			out := cmd.OutOrStdout()
			req := &models.AskRequest{
				Question:  strings.Join(args, " "),
				Provider:  provider,
				LocalOnly: localOnly,
			}
			c, err := core.Router.StreamAnswer(cmd.Context(), req, func(ch models.StreamChunk) error {
				_, err := fmt.Fprint(out, ch.Content)
				return err
			})
			fmt.Fprintln(out)
			if err != nil {
				return errors.New(router.UserMessage(err))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "(%s, %d tokens)\n", c.Provider, c.Usage.TotalTokens)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to try first")
	cmd.Flags().BoolVar(&localOnly, "local", false, "Only use local providers")
	return cmd
}
