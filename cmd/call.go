package cmd

import (
	"context"
	"fmt"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/client"
	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/spf13/cobra"
)

var flagVideo bool

var callCmd = &cobra.Command{
	Use:   "call <user>",
	Short: "Call another user",
	Long: `Place an audio call, or a video call with --video, and stay on the line
until either side hangs up. Press ctrl+c to hang up.

Examples:
  huddle call bob --user alice
  huddle call bob --user alice --video --relay --turn turn.example.com`,
	Args: cobra.ExactArgs(1),
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

		kind := protocol.MediaAudio
		if flagVideo {
			kind = protocol.MediaVideo
		}
		if err := c.StartCall(ctx, args[0], kind); err != nil {
			return err
		}
		return followCall(ctx, c)
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Wait for an incoming call and accept it",
	Long: `Stay online until someone calls, accept the call and stay on the line
until either side hangs up. Press ctrl+c to hang up.

Examples:
  huddle answer --user bob --media synthetic`,
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

		sp := ui.NewWaitingSpinner("Waiting for a call...")
		sp.Start()
		s, err := WaitFor(ctx, c, func(s client.Snapshot) (bool, error) {
			return s.Call.State == call.Ringing, nil
		})
		sp.Stop()
		if err != nil {
			return err
		}

		ui.PrintInfof("Incoming %s call from %s", s.Call.Media, s.Call.Counterpart)
		if err := c.Accept(ctx); err != nil {
			return err
		}
		return followCall(ctx, c)
	},
}

// followCall prints call transitions and notifications until the call is
// back to idle. It is only called once a call is under way. Cancelling ctx
// hangs up.
func followCall(ctx context.Context, c *client.Client) error {
	var (
		last = call.State(-1)
		seen = map[string]bool{}
	)

	_, err := WaitFor(ctx, c, func(s client.Snapshot) (bool, error) {
		for i := len(s.Notifications) - 1; i >= 0; i-- {
			n := s.Notifications[i]
			if !seen[n.ID] {
				seen[n.ID] = true
				ui.PrintNotification(n)
			}
		}

		if s.Call.State != last {
			last = s.Call.State
			if banner := ui.CallView(s.Call); banner != "" {
				fmt.Println(banner)
			}
		}
		return s.Call.State == call.Idle && !s.Call.Pending, nil
	})

	if ctx.Err() != nil {
		hctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		if err := c.EndCall(hctx); err != nil {
			return err
		}
		ui.PrintInfo("Hung up")
		return nil
	}
	if err != nil {
		return err
	}
	ui.PrintInfo("Call ended")
	return nil
}

func init() {
	callCmd.Flags().BoolVar(&flagVideo, "video", false, "send camera video as well as audio")
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(answerCmd)
}
