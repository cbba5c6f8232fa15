package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 5000 || cfg.Discovery.Port != 30001 || cfg.Media.Port != 0 {
		t.Errorf("ports = %d/%d/%d", cfg.Port, cfg.Discovery.Port, cfg.Media.Port)
	}
	if cfg.Discovery.HeartbeatInterval != 5*time.Second || cfg.Discovery.PeerTimeout != 15*time.Second {
		t.Errorf("discovery timings = %s/%s", cfg.Discovery.HeartbeatInterval, cfg.Discovery.PeerTimeout)
	}
	if cfg.Relay.QueueSize != 10 || cfg.Relay.Tick != 33*time.Millisecond || cfg.Relay.QueuePolicy != "drop_incoming" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if cfg.Media.Quality != 70 || cfg.Lifecycle.StopTimeout != 2*time.Second {
		t.Errorf("media quality %d, stop timeout %s", cfg.Media.Quality, cfg.Lifecycle.StopTimeout)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := []byte("port: 5100\ndiscovery:\n  port: 31000\n  peer_timeout: 20s\nrelay:\n  queue_policy: evict_oldest\n")
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("HUDDLE_DISCOVERY_PEER_TIMEOUT", "30s")

	fs := Flags()
	if err := fs.Parse([]string{"--port", "6000", "--log-level", "debug"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 6000 {
		t.Errorf("flag did not win: port = %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.Discovery.Port != 31000 {
		t.Errorf("file value lost: discovery.port = %d", cfg.Discovery.Port)
	}
	if cfg.Discovery.PeerTimeout != 30*time.Second {
		t.Errorf("env did not win over file: peer_timeout = %s", cfg.Discovery.PeerTimeout)
	}
	if cfg.Relay.QueuePolicy != "evict_oldest" {
		t.Errorf("queue_policy = %q", cfg.Relay.QueuePolicy)
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero queue", func(c *Config) { c.Relay.QueueSize = 0 }},
		{"quality high", func(c *Config) { c.Media.Quality = 101 }},
		{"negative tick", func(c *Config) { c.Relay.Tick = -time.Millisecond }},
		{"timeout below heartbeat", func(c *Config) { c.Discovery.PeerTimeout = time.Second }},
		{"bad media port", func(c *Config) { c.Media.Port = 70000 }},
		{"unknown policy", func(c *Config) { c.Relay.QueuePolicy = "drop_random" }},
		{"zero stop timeout", func(c *Config) { c.Lifecycle.StopTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}
