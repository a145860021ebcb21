package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BioHazard786/huddle/internal/call"
	"github.com/BioHazard786/huddle/internal/client"
	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/connection"
	"github.com/BioHazard786/huddle/internal/media"
	"github.com/BioHazard786/huddle/internal/media/device"
	"github.com/BioHazard786/huddle/internal/rtc"
	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/pion/webrtc/v4"
)

const connectTimeout = 30 * time.Second

// LoadConfig resolves flags, environment and defaults, then validates.
func LoadConfig(requireUser bool) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Server:     flagServer,
		Username:   flagUser,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
		Codec:      flagCodec,
		Media:      flagMedia,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireUser); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewClient builds a client for cfg with the configured media backend.
func NewClient(cfg *config.Config) (*client.Client, error) {
	codec, err := cfg.WireCodec()
	if err != nil {
		return nil, err
	}

	var (
		source call.MediaSource
		codecs func(*webrtc.MediaEngine)
	)
	switch cfg.Media {
	case config.MediaSynthetic:
		source = media.Synthetic{}
	default:
		dev, err := device.New(device.Options{Logger: slog.Default()})
		if err != nil {
			return nil, fmt.Errorf("open capture devices: %w", err)
		}
		source, codecs = dev, dev.Populate
	}

	turnUser, turnPass := cfg.GetTURNCredentials()
	peers, err := rtc.NewFactory(rtc.Config{
		STUNServers: cfg.GetSTUNServers(),
		TURNServers: cfg.GetTURNServers(),
		TURNUser:    turnUser,
		TURNPass:    turnPass,
		ForceRelay:  cfg.ForceRelay,
		DetectRelay: true,
		Codecs:      codecs,
		Logger:      slog.Default(),
	})
	if err != nil {
		return nil, err
	}

	return client.New(client.Config{
		URL:                  cfg.Server,
		Username:             cfg.Username,
		Codec:                codec,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		NotificationCapacity: cfg.Notifications,
		ChatHistory:          cfg.ChatHistory,
		Logger:               slog.Default(),
	}, client.Deps{Media: source, Peers: peers})
}

// StartClient starts c and waits for the first successful connection.
func StartClient(ctx context.Context, c *client.Client, server string) error {
	sp := ui.NewConnectionSpinner(fmt.Sprintf("Connecting to %s...", server))
	sp.Start()
	defer sp.Stop()

	if err := c.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	_, err := WaitFor(ctx, c, func(s client.Snapshot) (bool, error) {
		switch s.Connection.Status {
		case connection.Connected:
			return true, nil
		case connection.Reconnecting:
			sp.UpdateMessage(fmt.Sprintf("Reconnecting to %s (attempt %d)...", server, s.Connection.ReconnectAttempt+1))
		case connection.Disconnected:
			return false, fmt.Errorf("could not connect to %s", server)
		}
		return false, nil
	})
	return err
}

// WaitFor re-evaluates cond on every state change until it reports done,
// fails, or ctx ends.
func WaitFor(ctx context.Context, c *client.Client, cond func(client.Snapshot) (bool, error)) (client.Snapshot, error) {
	for {
		s, err := c.Snapshot(ctx)
		if err != nil {
			return s, err
		}
		done, err := cond(s)
		if err != nil || done {
			return s, err
		}

		select {
		case <-c.Changes():
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}
