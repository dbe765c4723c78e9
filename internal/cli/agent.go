package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}
	cmd.AddCommand(newAgentAddCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentStatusCmd())
	return cmd
}

func newAgentAddCmd() *cobra.Command {
	var (
		name  string
		role  string
		level string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			a, err := svc.Store.CreateAgent(cmd.Context(), models.Agent{Name: name, Role: role, Level: level})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added agent %q (role=%s)\n", a.Name, a.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Agent name")
	cmd.Flags().StringVar(&role, "role", "specialist", "Agent role (used by assignment rules)")
	cmd.Flags().StringVar(&level, "level", "", "Agent level")
	return cmd
}

func newAgentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			agents, err := svc.Store.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No agents.")
				return nil
			}
			for _, a := range agents {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s, %s)\n", a.Name, a.Role, a.Status)
			}
			return nil
		},
	}
	return cmd
}

func newAgentStatusCmd() *cobra.Command {
	var (
		name   string
		status string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Set an agent's status (idle, active, blocked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || status == "" {
				return errors.New("--name and --status are required")
			}
			svc, done, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			agent, err := svc.SetAgentStatus(cmd.Context(), name, status)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", agent.Name, agent.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Agent name (matched tolerantly)")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	return cmd
}
