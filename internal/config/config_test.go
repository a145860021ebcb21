package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// noEnvFile points Load at a file that does not exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{EnvFile: noEnvFile(t)})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server != "ws://localhost:8080/ws" || cfg.STUNServer != "stun:stun.l.google.com:19302" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Codec != "json" || cfg.Media != MediaDevice {
		t.Fatalf("codec/media = %q/%q", cfg.Codec, cfg.Media)
	}
	if cfg.HeartbeatInterval != 30*time.Second || cfg.ReconnectDelay != 3*time.Second || cfg.MaxReconnectAttempts != 5 {
		t.Fatalf("timings = %+v", cfg)
	}
	if cfg.Notifications != 50 || cfg.ChatHistory != 100 {
		t.Fatalf("capacities = %d/%d", cfg.Notifications, cfg.ChatHistory)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HUDDLE_USERNAME", "from-env")
	t.Setenv("HUDDLE_SERVER", "https://chat.example.com/ws")
	t.Setenv("HUDDLE_RECONNECT_DELAY", "750ms")

	cfg, err := Load(Options{EnvFile: noEnvFile(t), Username: "from-flag"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Username != "from-flag" {
		t.Fatalf("username = %q", cfg.Username)
	}
	if cfg.Server != "wss://chat.example.com/ws" {
		t.Fatalf("server = %q", cfg.Server)
	}
	if cfg.ReconnectDelay != 750*time.Millisecond {
		t.Fatalf("reconnect delay = %s", cfg.ReconnectDelay)
	}
}

func TestDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huddle.env")
	if err := os.WriteFile(path, []byte("HUDDLE_CODEC=msgpack\nHUDDLE_MEDIA=synthetic\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("HUDDLE_CODEC")
		os.Unsetenv("HUDDLE_MEDIA")
	})

	cfg, err := Load(Options{EnvFile: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Codec != "msgpack" || cfg.Media != MediaSynthetic {
		t.Fatalf("codec/media = %q/%q", cfg.Codec, cfg.Media)
	}
	if _, err := cfg.WireCodec(); err != nil {
		t.Fatalf("wire codec: %v", err)
	}
}

func TestLoadRejectsBadServer(t *testing.T) {
	if _, err := Load(Options{EnvFile: noEnvFile(t), Server: "ftp://example.com"}); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(Options{EnvFile: noEnvFile(t), Username: "alice"})
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		user   bool
		want   error
	}{
		{"valid", func(*Config) {}, true, nil},
		{"no user", func(c *Config) { c.Username = "" }, true, ErrNoUsername},
		{"no user allowed", func(c *Config) { c.Username = "" }, false, nil},
		{"bad media", func(c *Config) { c.Media = "webcam" }, true, ErrUnknownMedia},
		{"bad interval", func(c *Config) { c.ReconnectDelay = 0 }, true, ErrBadInterval},
		{"bad capacity", func(c *Config) { c.ChatHistory = 0 }, true, ErrBadCapacities},
		{"relay without turn", func(c *Config) { c.ForceRelay = true }, true, ErrRelayNoTURN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate(tt.user)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	cfg := base()
	cfg.Codec = "xml"
	if err := cfg.Validate(true); err == nil {
		t.Fatal("expected codec error")
	}
}

func TestTURNServers(t *testing.T) {
	cfg := &Config{TURNServer: "turn.example.com"}
	want := []string{
		"turn:turn.example.com:3478?transport=udp",
		"turn:turn.example.com:3478?transport=tcp",
		"turns:turn.example.com:5349?transport=tcp",
	}
	if got := cfg.GetTURNServers(); !slices.Equal(got, want) {
		t.Fatalf("servers = %v", got)
	}

	cfg.TURNServer = "turn:relay.example.com:3478?transport=udp"
	if got := cfg.GetTURNServers(); len(got) != 1 || got[0] != cfg.TURNServer {
		t.Fatalf("servers = %v", got)
	}

	if (&Config{}).GetTURNServers() != nil {
		t.Fatal("no TURN server should yield nil")
	}
}
