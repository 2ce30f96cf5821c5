package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pinpoint-analytics/internal/stack"
)

// checkClock dates the lookback window reported by check.
var checkClock clockwork.Clock = clockwork.NewRealClock()

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Strict bool
}

// CheckOutput summarizes a successful build.
type CheckOutput struct {
	Resources int            `json:"resources" yaml:"resources"`
	Stages    map[string]int `json:"stages" yaml:"stages"`
	Views     int            `json:"views" yaml:"views"`
	Datasets  []string       `json:"datasets" yaml:"datasets"`
	// WindowStart is the first day of events the views keep if deployed now.
	WindowStart string   `json:"window_start" yaml:"window_start"`
	Undeclared  []string `json:"undeclared_identifiers,omitempty" yaml:"undeclared_identifiers,omitempty"`
	Unused      []string `json:"unused_identifiers,omitempty" yaml:"unused_identifiers,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration, views, grants and analysis",
		Long: `Build the stack without emitting it and report what was verified:

  - every dataset's columns match the projection of the view it reads
  - every reference in the template resolves and the graph is acyclic
  - IAM policies name specific actions and resources
  - the analysis definition's dataset identifiers match the datasets

Identifier mismatches are warnings unless --strict is set.`,
		Example: `  # Validate before deploying
  pinpoint-analytics check

  # Fail on unknown dataset identifiers in the analysis
  pinpoint-analytics check --strict`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Treat analysis identifier mismatches as errors")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	s, err := cmdCtx.BuildStack()
	if err != nil {
		return err
	}

	out := CheckOutput{
		Resources:   len(s.Template.Resources),
		Stages:      map[string]int{},
		Views:       len(s.Views.All()),
		WindowStart: s.Views.WindowStart(checkClock).Format(time.DateOnly),
		Undeclared:  s.Identifiers.Undeclared,
		Unused:      s.Identifiers.Unused,
	}
	for _, stage := range stack.Stages() {
		out.Stages[stage.String()] = len(s.Resources(stage))
	}
	for _, ds := range s.Datasets {
		out.Datasets = append(out.Datasets, ds.Identifier)
	}

	if ok, err := cmdCtx.Structured(out); ok {
		if err != nil {
			return err
		}
	} else {
		w := cmdCtx.Out
		_, _ = fmt.Fprintf(w, "%d resources in %d stages\n", out.Resources, len(out.Stages))
		for _, stage := range stack.Stages() {
			_, _ = fmt.Fprintf(w, "  %-9s %d\n", stage, out.Stages[stage.String()])
		}
		_, _ = fmt.Fprintf(w, "%d views, datasets: %s\n", out.Views, strings.Join(out.Datasets, ", "))
		_, _ = fmt.Fprintf(w, "views keep events since %s\n", out.WindowStart)
		for _, id := range out.Undeclared {
			_, _ = fmt.Fprintf(w, "warning: analysis references undeclared dataset identifier %q\n", id)
		}
		for _, id := range out.Unused {
			_, _ = fmt.Fprintf(w, "warning: dataset identifier %q is declared but never used\n", id)
		}
	}

	if opts.Strict && !s.Identifiers.Empty() {
		return fmt.Errorf("analysis identifiers do not match datasets (undeclared: %v, unused: %v)",
			s.Identifiers.Undeclared, s.Identifiers.Unused)
	}
	return nil
}
