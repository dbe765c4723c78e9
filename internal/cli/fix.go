package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFixUnassignedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix-unassigned",
		Short: "Run the assignment engine over every unassigned task",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			report, err := svc.FixUnassigned(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Assigned %d of %d unassigned tasks\n", report.Fixed, report.TotalUnassigned)
			for _, r := range report.Results {
				if r.Assignee != nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %d %q -> %s\n", r.TaskID, r.Title, *r.Assignee)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %d %q unmatched\n", r.TaskID, r.Title)
				}
			}
			return nil
		},
	}
	return cmd
}
