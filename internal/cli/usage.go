package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cliphaven/cliphaven/pkg/models"
)

const dateLayout = "2006-01-02"

// NewUsageCmd creates the 'usage' command that prints AI usage statistics.
func NewUsageCmd() *cobra.Command {
	var from, to string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show AI usage and estimated cost",
		Long:  `Print today's AI calls, tokens and estimated cost, or those of an inclusive date range.`,
		Example: `  cliphaven usage
  cliphaven usage --from 2024-05-01 --to 2024-05-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			core, err := newCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Shutdown(context.Background())

			stats := core.Router.Usage().Today()
			if !start.IsZero() {
				stats = core.Router.Usage().Range(start, end)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printUsage(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, inclusive (YYYY-MM-DD, defaults to --from)")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// parseRange turns inclusive local dates into a half-open [start, end)
// range. Both zero means today.
func parseRange(from, to string) (time.Time, time.Time, error) {
	if from == "" {
		if to != "" {
			return time.Time{}, time.Time{}, fmt.Errorf("--to requires --from")
		}
		return time.Time{}, time.Time{}, nil
	}
	start, err := time.ParseInLocation(dateLayout, from, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: want YYYY-MM-DD", from)
	}
	last := start
	if to != "" {
		if last, err = time.ParseInLocation(dateLayout, to, time.Local); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: want YYYY-MM-DD", to)
		}
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return start, last.AddDate(0, 0, 1), nil
}

func printUsage(w io.Writer, s models.UsageStats) {
	fmt.Fprintf(w, "Usage %s → %s\n\n", s.From.Format(dateLayout), s.To.Add(-time.Nanosecond).Format(dateLayout))
	fmt.Fprintf(w, "  Calls:  %d\n", s.Calls)
	fmt.Fprintf(w, "  Tokens: %d\n", s.Tokens)
	fmt.Fprintf(w, "  Cost:   $%.4f\n", s.Cost)

	ids := make([]string, 0, len(s.ByProvider))
	for id := range s.ByProvider {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		fmt.Fprintln(w)
	}
	for _, id := range ids {
		p := s.ByProvider[id]
		fmt.Fprintf(w, "  %-10s %5d calls %8d tokens  $%.4f\n", id, p.Calls, p.Tokens, p.Cost)
	}
}
