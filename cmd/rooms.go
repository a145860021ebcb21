package cmd

import (
	"context"
	"os"
	"time"

	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/spf13/cobra"
)

// roomSettle is how long rooms waits for presence replies to arrive.
const roomSettle = 1500 * time.Millisecond

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms and their members",
	Long: `Connect, ask the server for the members of every known room and print
them as a table.

Examples:
  huddle rooms --user alice`,
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

		s, err := c.Snapshot(ctx)
		if err != nil {
			return err
		}
		for _, r := range s.Rooms {
			if err := c.RefreshRoom(ctx, r.ID); err != nil {
				return err
			}
		}

		select {
		case <-time.After(roomSettle):
		case <-ctx.Done():
			return ctx.Err()
		}

		sctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		s, err = c.Snapshot(sctx)
		if err != nil {
			return err
		}
		ui.RenderRooms(os.Stdout, s.Rooms, s.CurrentRoom)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}
