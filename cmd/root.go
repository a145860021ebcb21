package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/BioHazard786/huddle/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagServer   string
	flagUser     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagCodec    string
	flagMedia    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Presence, rooms, chat and calls from the terminal",
	Long: `huddle connects to a presence server, shows who is online, lets you join
rooms and chat, and places audio or video calls to other users over WebRTC.`,
	Version: version.Version,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagServer, "server", "s", "", "presence server URL (env HUDDLE_SERVER)")
	pf.StringVarP(&flagUser, "user", "u", "", "username to log in as (env HUDDLE_USERNAME)")
	pf.StringVar(&flagSTUN, "stun", "", "STUN server URL (env HUDDLE_STUN_SERVER)")
	pf.StringVar(&flagTURN, "turn", "", "TURN server host or URL (env HUDDLE_TURN_SERVER)")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username (env HUDDLE_TURN_USERNAME)")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env HUDDLE_TURN_PASSWORD)")
	pf.BoolVar(&flagRelay, "relay", false, "force media through the TURN relay")
	pf.StringVar(&flagCodec, "codec", "", "wire codec: json or msgpack (env HUDDLE_CODEC)")
	pf.StringVar(&flagMedia, "media", "", "media backend: device or synthetic (env HUDDLE_MEDIA)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
