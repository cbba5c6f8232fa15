package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid config")

type DiscoveryConfig struct {
	Port              int           `mapstructure:"port"`
	BroadcastAddr     string        `mapstructure:"broadcast_addr"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	PeerTimeout       time.Duration `mapstructure:"peer_timeout"`
	RecvTimeout       time.Duration `mapstructure:"recv_timeout"`
}

type MediaConfig struct {
	// Port 0 picks an ephemeral port on first join and keeps it.
	Port         int           `mapstructure:"port"`
	Width        int           `mapstructure:"width"`
	Height       int           `mapstructure:"height"`
	Quality      int           `mapstructure:"quality"`
	MaxFPS       int           `mapstructure:"max_fps"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	RecvTimeout  time.Duration `mapstructure:"recv_timeout"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	CaptureRetry time.Duration `mapstructure:"capture_retry"`
	Device       string        `mapstructure:"device"`
}

type RelayConfig struct {
	QueueSize      int           `mapstructure:"queue_size"`
	QueuePolicy    string        `mapstructure:"queue_policy"`
	Tick           time.Duration `mapstructure:"tick"`
	ObserverBuffer int           `mapstructure:"observer_buffer"`
}

type LifecycleConfig struct {
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

type SelfFeedConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

type Config struct {
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	Port            int           `mapstructure:"port"`
	StaticPath      string        `mapstructure:"static_path"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	KeepalivePeriod time.Duration `mapstructure:"keepalive_period"`
	Secret          string        `mapstructure:"secret"`

	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Media     MediaConfig     `mapstructure:"media"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	SelfFeed  SelfFeedConfig  `mapstructure:"self_feed"`
}

// Flags declares the command line overrides understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("huddle", pflag.ContinueOnError)
	fs.Int("port", 5000, "HTTP UI port")
	fs.Int("media-port", 0, "publish port, 0 for ephemeral")
	fs.Int("discovery-port", 30001, "UDP discovery port")
	fs.String("log-level", "info", "log level")
	return fs
}

var flagKeys = map[string]string{
	"port":           "port",
	"media-port":     "media.port",
	"discovery-port": "discovery.port",
	"log-level":      "log_level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 5000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("keepalive_period", "30s")
	v.SetDefault("secret", "")

	v.SetDefault("discovery.port", 30001)
	v.SetDefault("discovery.broadcast_addr", "255.255.255.255")
	v.SetDefault("discovery.heartbeat_interval", "5s")
	v.SetDefault("discovery.peer_timeout", "15s")
	v.SetDefault("discovery.recv_timeout", "1s")

	v.SetDefault("media.port", 0)
	v.SetDefault("media.width", 640)
	v.SetDefault("media.height", 480)
	v.SetDefault("media.quality", 70)
	v.SetDefault("media.max_fps", 25)
	v.SetDefault("media.send_buffer", 4)
	v.SetDefault("media.recv_timeout", "1s")
	v.SetDefault("media.dial_timeout", "1s")
	v.SetDefault("media.capture_retry", "100ms")
	v.SetDefault("media.device", "testpattern")

	v.SetDefault("relay.queue_size", 10)
	v.SetDefault("relay.queue_policy", "drop_incoming")
	v.SetDefault("relay.tick", "33ms")
	v.SetDefault("relay.observer_buffer", 50)

	v.SetDefault("lifecycle.stop_timeout", "2s")

	v.SetDefault("self_feed.width", 320)
	v.SetDefault("self_feed.height", 240)
	v.SetDefault("self_feed.fps", 20)
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults, then
// HUDDLE_* environment variables, then flags. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Discovery: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.Discovery.Port, cfg.StaticPath)
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}
	validPort := func(p int) bool { return p >= 1 && p <= 65535 }

	check(validPort(c.Port), "port %d", c.Port)
	check(validPort(c.Discovery.Port), "discovery.port %d", c.Discovery.Port)
	check(c.Media.Port == 0 || validPort(c.Media.Port), "media.port %d", c.Media.Port)
	check(c.Discovery.HeartbeatInterval > 0, "discovery.heartbeat_interval must be positive")
	check(c.Discovery.RecvTimeout > 0, "discovery.recv_timeout must be positive")
	check(c.Discovery.PeerTimeout >= c.Discovery.HeartbeatInterval,
		"discovery.peer_timeout %s shorter than heartbeat %s", c.Discovery.PeerTimeout, c.Discovery.HeartbeatInterval)
	check(c.Discovery.BroadcastAddr != "", "discovery.broadcast_addr empty")
	check(c.Media.Width > 0 && c.Media.Height > 0, "media size %dx%d", c.Media.Width, c.Media.Height)
	check(c.Media.Quality >= 1 && c.Media.Quality <= 100, "media.quality %d", c.Media.Quality)
	check(c.Media.MaxFPS > 0, "media.max_fps must be positive")
	check(c.Media.SendBuffer > 0, "media.send_buffer must be positive")
	check(c.Media.RecvTimeout > 0, "media.recv_timeout must be positive")
	check(c.Relay.QueueSize >= 1, "relay.queue_size %d", c.Relay.QueueSize)
	check(c.Relay.QueuePolicy == "" || c.Relay.QueuePolicy == "drop_incoming" || c.Relay.QueuePolicy == "evict_oldest",
		"relay.queue_policy %q", c.Relay.QueuePolicy)
	check(c.Relay.Tick > 0, "relay.tick must be positive")
	check(c.Relay.ObserverBuffer >= 1, "relay.observer_buffer %d", c.Relay.ObserverBuffer)
	check(c.Lifecycle.StopTimeout > 0, "lifecycle.stop_timeout must be positive")
	check(c.SelfFeed.Width > 0 && c.SelfFeed.Height > 0 && c.SelfFeed.FPS > 0, "self_feed %dx%d@%d", c.SelfFeed.Width, c.SelfFeed.Height, c.SelfFeed.FPS)
	check(c.PingPeriod > 0 && c.KeepalivePeriod > 0, "ping/keepalive periods must be positive")
	return errors.Join(errs...)
}
