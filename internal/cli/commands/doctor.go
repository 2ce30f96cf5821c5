package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pinpoint-analytics/internal/preflight"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check AWS account prerequisites",
		Long: `Verify that the account is ready for a deployment:

  - credentials resolve (and match the configured account, if any)
  - the event and artifact buckets are reachable
  - the Athena workgroup is enabled and the event database exists
  - the QuickSight user exists, is active and can author analyses

Checks run concurrently. The command fails if any check fails.`,
		Example: `  # Run all checks
  pinpoint-analytics doctor

  # Machine-readable report
  pinpoint-analytics doctor --output json`,
		RunE: runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	checker, err := newPreflight(cmd.Context(), cmdCtx)
	if err != nil {
		return err
	}
	report, err := checker.Run(cmd.Context())
	if err != nil {
		return err
	}

	if ok, err := cmdCtx.Structured(report); ok {
		if err != nil {
			return err
		}
		return report.Err()
	}

	t := cmdCtx.Table("CHECK", "STATUS", "DETAIL")
	for _, c := range report.Checks {
		t.AppendRow([]any{c.Name, statusLabel(c.Status), c.Detail})
	}
	t.Render()
	return report.Err()
}

func statusLabel(s preflight.Status) string {
	switch s {
	case preflight.StatusPass:
		return "ok"
	case preflight.StatusFail:
		return "FAIL"
	}
	return string(s)
}
