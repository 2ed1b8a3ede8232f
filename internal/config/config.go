package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// feedPath is the fixed route of the live feed on the API host. Used
// when no explicit feed_url override is configured.
const feedPath = "/live"

// Default values
const (
	DefaultLogLevel           = "info"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultReconnectBaseDelay = time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultCacheSize          = 1024
	DefaultGateInterval       = 10 * time.Second
)

// DefaultLiveRoutes are the route prefixes of the live-data section of
// the application; the gate keeps the connection open only while the
// current route matches one of them.
var DefaultLiveRoutes = []string{"/live", "/inplay", "/match"}

// Config holds the live feed configuration
type Config struct {
	// BaseURL is the HTTP(S) API base the feed endpoint is derived from
	BaseURL string `mapstructure:"base_url"`
	// FeedURL, when set, overrides the derived endpoint outright
	FeedURL string `mapstructure:"feed_url"`

	LogLevel string `mapstructure:"log_level"`

	HandshakeTimeout   time.Duration `mapstructure:"handshake_timeout"`
	ReconnectBaseDelay time.Duration `mapstructure:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `mapstructure:"reconnect_max_delay"`

	// CacheSize bounds the last-value cache; 0 disables caching
	CacheSize int `mapstructure:"cache_size"`

	GateInterval time.Duration `mapstructure:"gate_interval"`
	LiveRoutes   []string      `mapstructure:"live_routes"`
}

// Load reads the configuration file at path, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("handshake_timeout", DefaultHandshakeTimeout)
	v.SetDefault("reconnect_base_delay", DefaultReconnectBaseDelay)
	v.SetDefault("reconnect_max_delay", DefaultReconnectMaxDelay)
	v.SetDefault("cache_size", DefaultCacheSize)
	v.SetDefault("gate_interval", DefaultGateInterval)
	v.SetDefault("live_routes", DefaultLiveRoutes)
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.BaseURL == "" && cfg.FeedURL == "" {
		return errors.New("one of base_url or feed_url is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	if cfg.HandshakeTimeout < 0 {
		return errors.New("handshake_timeout must be non-negative")
	}
	if cfg.ReconnectBaseDelay <= 0 {
		return errors.New("reconnect_base_delay must be positive")
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		return errors.New("reconnect_max_delay must be at least reconnect_base_delay")
	}
	if cfg.CacheSize < 0 {
		return errors.New("cache_size must be non-negative")
	}
	if cfg.GateInterval <= 0 {
		return errors.New("gate_interval must be positive")
	}
	return nil
}

// FeedEndpoint returns the WebSocket address of the live feed: the
// explicit feed_url if configured, otherwise the base URL with its
// scheme switched to the duplex equivalent and the feed path appended.
func (c *Config) FeedEndpoint() (string, error) {
	if c.FeedURL != "" {
		return c.FeedURL, nil
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base_url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + feedPath
	return u.String(), nil
}
