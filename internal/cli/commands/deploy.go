package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
)

// DeployOutput is the structured result of a deployment.
type DeployOutput struct {
	Stack       string            `json:"stack" yaml:"stack"`
	Action      string            `json:"action" yaml:"action"`
	StackID     string            `json:"stack_id,omitempty" yaml:"stack_id,omitempty"`
	TemplateURL string            `json:"template_url,omitempty" yaml:"template_url,omitempty"`
	Outputs     map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the CloudFormation stack",
		Long: `Build the template and hand it to CloudFormation. The stack is created
if it does not exist and updated otherwise; an update with no changes is not
an error. Templates over the inline size limit are uploaded to
deploy.artifact_bucket first.

The command waits for the stack to settle and prints its outputs, including
the analysis URL.`,
		Example: `  # Deploy with the configured stack name
  pinpoint-analytics deploy

  # Deploy a second copy under another prefix
  pinpoint-analytics deploy --prefix staging_ --stack-name PinpointAnalyticsStaging`,
		RunE: runDeploy,
	}
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cmdCtx.Cfg.ValidateDeploy(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s, err := cmdCtx.BuildStack()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	d, err := newDeployer(ctx, cmdCtx)
	if err != nil {
		return err
	}

	cmdCtx.Logger.Info("deploying stack",
		slog.String("stack", cmdCtx.Cfg.Deploy.StackName),
		slog.Int("resources", len(s.Template.Resources)))
	result, err := d.Deploy(ctx, s.Template)
	if err != nil {
		return err
	}

	out := DeployOutput{
		Stack:       cmdCtx.Cfg.Deploy.StackName,
		Action:      string(result.Action),
		StackID:     result.StackID,
		TemplateURL: result.TemplateURL,
		Outputs:     result.Outputs,
	}
	if ok, err := cmdCtx.Structured(out); ok {
		return err
	}

	_, _ = fmt.Fprintf(cmdCtx.Out, "%s: %s\n", out.Stack, out.Action)
	if len(out.Outputs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(out.Outputs))
	for k := range out.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := cmdCtx.Table("OUTPUT", "VALUE")
	for _, k := range keys {
		t.AppendRow([]any{k, out.Outputs[k]})
	}
	t.Render()
	return nil
}
