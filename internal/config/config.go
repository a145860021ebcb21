package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BioHazard786/huddle/internal/protocol"
	"github.com/BioHazard786/huddle/internal/transport"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable. Defaults live in the
// envDefault tags below.
const EnvPrefix = "HUDDLE_"

// Media backends
const (
	MediaDevice    = "device"
	MediaSynthetic = "synthetic"
)

var (
	ErrNoUsername    = errors.New("username is required (use --user or HUDDLE_USERNAME)")
	ErrRelayNoTURN   = errors.New("relay-only mode needs a TURN server")
	ErrUnknownMedia  = errors.New("unknown media backend")
	ErrBadInterval   = errors.New("intervals must be positive")
	ErrBadCapacities = errors.New("capacities must be positive")
)

// Config holds application configuration
type Config struct {
	Server   string `env:"SERVER" envDefault:"ws://localhost:8080/ws"`
	Username string `env:"USERNAME"`

	// ICE servers for WebRTC
	STUNServer string `env:"STUN_SERVER" envDefault:"stun:stun.l.google.com:19302"`
	TURNServer string `env:"TURN_SERVER"`
	TURNUser   string `env:"TURN_USERNAME"`
	TURNPass   string `env:"TURN_PASSWORD"`
	ForceRelay bool   `env:"FORCE_RELAY"`

	Codec string `env:"CODEC" envDefault:"json"`
	Media string `env:"MEDIA" envDefault:"device"`

	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	ReconnectDelay       time.Duration `env:"RECONNECT_DELAY" envDefault:"3s"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	Notifications        int           `env:"NOTIFICATIONS" envDefault:"50"`
	ChatHistory          int           `env:"CHAT_HISTORY" envDefault:"100"`

	LogFile string `env:"LOG_FILE"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	Username   string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	Codec      string
	Media      string
	// EnvFile is loaded before the environment is read. Missing files are
	// ignored. Defaults to ".env".
	EnvFile string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables, including a .env file
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	override(&cfg.Server, opts.Server)
	override(&cfg.Username, opts.Username)
	override(&cfg.STUNServer, opts.STUNServer)
	override(&cfg.TURNServer, opts.TURNServer)
	override(&cfg.TURNUser, opts.TURNUser)
	override(&cfg.TURNPass, opts.TURNPass)
	override(&cfg.Codec, opts.Codec)
	override(&cfg.Media, opts.Media)
	if opts.ForceRelay {
		cfg.ForceRelay = true
	}

	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Codec = strings.ToLower(strings.TrimSpace(cfg.Codec))
	cfg.Media = strings.ToLower(strings.TrimSpace(cfg.Media))

	url, err := transport.NormalizeURL(cfg.Server)
	if err != nil {
		return nil, err
	}
	cfg.Server = url

	return cfg, nil
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

// Validate checks the configuration. requireUser is set by commands that log
// in to the server.
func (c *Config) Validate(requireUser bool) error {
	if requireUser && c.Username == "" {
		return ErrNoUsername
	}
	if _, err := protocol.ParseCodec(c.Codec); err != nil {
		return err
	}
	if c.Media != MediaDevice && c.Media != MediaSynthetic {
		return fmt.Errorf("%w %q (want %s or %s)", ErrUnknownMedia, c.Media, MediaDevice, MediaSynthetic)
	}
	if c.HeartbeatInterval <= 0 || c.ReconnectDelay <= 0 {
		return ErrBadInterval
	}
	if c.MaxReconnectAttempts <= 0 || c.Notifications <= 0 || c.ChatHistory <= 0 {
		return ErrBadCapacities
	}
	if c.ForceRelay && c.TURNServer == "" {
		return ErrRelayNoTURN
	}
	return nil
}

// WireCodec returns the envelope codec selected by Codec.
func (c *Config) WireCodec() (protocol.Codec, error) {
	return protocol.ParseCodec(c.Codec)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to UDP, TCP and TLS variants; a full URL is used as given.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?") || strings.Count(c.TURNServer, ":") > 1 {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
