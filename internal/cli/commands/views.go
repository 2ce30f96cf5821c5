package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pinpoint-analytics/internal/views"
)

// ViewOutput is the structured form of one view.
type ViewOutput struct {
	Name      string   `json:"name" yaml:"name"`
	Category  string   `json:"category" yaml:"category"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Columns   []string `json:"columns" yaml:"columns"`
	SQL       string   `json:"sql,omitempty" yaml:"sql,omitempty"`
}

// NewViewsCommand creates the views command.
func NewViewsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "views [name]",
		Short: "List the Athena views or print one view's SQL",
		Long: `List every view the stack creates, in dependency order, with its category
and output columns. With a view name, print the statement that creates it.

Lookup table names are shown as CloudFormation substitutions because they are
only known once the lookup database stack exists.`,
		Example: `  # List all views
  pinpoint-analytics views

  # Show the SQL of the joined email view
  pinpoint-analytics views pinpoint_analytics_email_all_events_with_pinpoint_camp_jour_data`,
		Args: cobra.MaximumNArgs(1),
		RunE: runViews,
	}
}

func runViews(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	s, err := cmdCtx.BuildStack()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		d, err := s.Views.Get(args[0])
		if err != nil {
			return err
		}
		if ok, err := cmdCtx.Structured(viewOutput(d, true)); ok {
			return err
		}
		_, err = fmt.Fprintln(cmdCtx.Out, d.SQL())
		return err
	}

	all := s.Views.All()
	out := make([]ViewOutput, 0, len(all))
	for _, d := range all {
		out = append(out, viewOutput(d, false))
	}
	if ok, err := cmdCtx.Structured(out); ok {
		return err
	}

	t := cmdCtx.Table("VIEW", "CATEGORY", "DEPENDS ON", "COLUMNS")
	for _, v := range out {
		t.AppendRow([]any{v.Name, v.Category, strings.Join(v.DependsOn, ", "), len(v.Columns)})
	}
	t.Render()
	return nil
}

func viewOutput(d views.Definition, withSQL bool) ViewOutput {
	v := ViewOutput{
		Name:      d.Name,
		Category:  string(d.Category),
		DependsOn: d.DependsOn,
		Columns:   make([]string, len(d.Columns)),
	}
	for i, c := range d.Columns {
		v.Columns[i] = c.Name
	}
	if withSQL {
		v.SQL = d.SQL()
	}
	return v
}
