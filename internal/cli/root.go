// Package cli wires the missionctl command tree.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/salzamar/openclaw-mission-control/internal/assign"
	"github.com/salzamar/openclaw-mission-control/internal/board"
	"github.com/salzamar/openclaw-mission-control/internal/config"
	"github.com/salzamar/openclaw-mission-control/internal/store"
)

func NewRootCmd(version string) *cobra.Command {
	var homeOverride string

	cmd := &cobra.Command{
		Use:          "missionctl",
		Short:        "Mission Control: a coordination board for agent teams",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override Mission Control home directory (default: ~/.missionctl, env: MISSIONCTL_HOME)")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newFixUnassignedCmd())
	cmd.AddCommand(newApikeyCmd())

	// Hidden internal subcommand used by `missionctl start` for background mode.
	cmd.AddCommand(newDaemonCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}

// openService opens the local store and builds a board service the way the
// server does, for CLI commands that mutate the board directly.
func openService(ctx context.Context) (*board.Service, func(), error) {
	home := config.MustHomeFrom(ctx)
	cfg, err := config.Load(home)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(home)
	if err != nil {
		return nil, nil, err
	}
	engine, err := assign.New(cfg.Rules, cfg.Fallback)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	svc := board.New(st, engine, cfg.Owner, nil, nil)
	return svc, func() { _ = st.Close() }, nil
}
