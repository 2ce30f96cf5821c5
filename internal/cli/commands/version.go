package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BuildInfo identifies a build. Fields left empty are not printed.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display pinpoint-analytics version, commit and build date.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "pinpoint-analytics v%s\n", info.Version)
			if info.GitCommit != "" {
				_, _ = fmt.Fprintf(out, "commit: %s\n", info.GitCommit)
			}
			if info.BuildDate != "" {
				_, _ = fmt.Fprintf(out, "built:  %s\n", info.BuildDate)
			}
			_, _ = fmt.Fprintln(out, "Pinpoint event analytics on Athena and QuickSight")
		},
	}
}
