package cmd

import (
	"github.com/BioHazard786/huddle/internal/logging"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/spf13/cobra"
)

var flagJoin string

var connectCmd = &cobra.Command{
	Use:     "connect",
	Aliases: []string{"c"},
	Short:   "Open the interactive dashboard",
	Long: `Connect to the server and open a full-screen dashboard showing rooms,
online users, chat, notifications and calls.

Logs are written to HUDDLE_LOG_FILE while the dashboard is open.

Examples:
  huddle connect --user alice
  huddle connect --user alice --join tech --server wss://huddle.example.com/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(true)
		if err != nil {
			return err
		}

		if cfg.LogFile != "" {
			f, err := logging.InitFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer f.Close()
		} else {
			logging.Discard()
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
		if flagJoin != "" {
			if err := c.JoinRoom(ctx, flagJoin); err != nil {
				return err
			}
		}

		return ui.RunDashboard(c)
	},
}

func init() {
	connectCmd.Flags().StringVarP(&flagJoin, "join", "j", "", "room to join on start")
	rootCmd.AddCommand(connectCmd)
}
