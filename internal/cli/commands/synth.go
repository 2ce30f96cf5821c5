package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pinpoint-analytics/internal/cfn"
	"github.com/leapstack-labs/pinpoint-analytics/internal/cli/config"
)

// SynthOptions holds options for the synth command.
type SynthOptions struct {
	Format string
	Out    string
}

// NewSynthCommand creates the synth command.
func NewSynthCommand() *cobra.Command {
	opts := &SynthOptions{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Emit the CloudFormation template",
		Long: `Build the provisioning graph and write it as a CloudFormation template.

The template declares the lookup database, the Athena DynamoDB connector,
the view named queries and their materializer, the QuickSight data source,
datasets and refresh schedules, and the analysis. Stage ordering is encoded
with DependsOn.`,
		Example: `  # Print the template as JSON
  pinpoint-analytics synth

  # Write YAML to a file
  pinpoint-analytics synth --format yaml --out template.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynth(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Template format: json, yaml (default json)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the template to a file instead of stdout")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputJSON, config.OutputYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runSynth(cmd *cobra.Command, opts *SynthOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	s, err := cmdCtx.BuildStack()
	if err != nil {
		return err
	}

	format := opts.Format
	if format == "" && cmdCtx.Cfg.OutputFormat == config.OutputYAML {
		format = config.OutputYAML
	}
	body, err := render(s.Template, format)
	if err != nil {
		return err
	}

	if len(body) > cfn.MaxBodySize {
		cmdCtx.Logger.Warn("template exceeds the inline body limit; deploy will upload it",
			slog.Int("bytes", len(body)),
			slog.Int("limit", cfn.MaxBodySize))
	}

	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, body, 0o644); err != nil {
			return fmt.Errorf("failed to write template: %w", err)
		}
		cmdCtx.Logger.Info("template written",
			slog.String("path", opts.Out),
			slog.Int("resources", len(s.Template.Resources)))
		return nil
	}
	_, err = cmdCtx.Out.Write(body)
	return err
}

func render(tpl *cfn.Template, format string) ([]byte, error) {
	switch format {
	case "", config.OutputJSON:
		return tpl.JSON()
	case config.OutputYAML:
		return tpl.YAML()
	}
	return nil, fmt.Errorf("unknown template format %q (want json or yaml)", format)
}
