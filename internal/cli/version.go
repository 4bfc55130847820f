package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCmd creates the 'version' command.
func NewVersionCmd(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cliphaven %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
