package cmd

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/BioHazard786/huddle/internal/client"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/spf13/cobra"
)

const fetchTimeout = 5 * time.Second

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"who"},
	Short:   "List online users",
	Long: `Connect, fetch the online users once and print them as a table.

Examples:
  huddle users --user alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(true)
		if err != nil {
			return err
		}
		c, err := NewClient(cfg)
		if err != nil {
			return err
		}
		defer c.Stop()

		ctx := cmd.Context()
		if err := StartClient(ctx, c, cfg.Server); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		s, err := WaitFor(ctx, c, func(s client.Snapshot) (bool, error) {
			return slices.ContainsFunc(s.Users, func(u protocol.User) bool {
				return u.Username == cfg.Username
			}), nil
		})
		if err != nil && len(s.Users) == 0 {
			ui.PrintWarning("Server did not send the user list")
			return nil
		}

		ui.RenderUsers(os.Stdout, s.Users, cfg.Username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
}
