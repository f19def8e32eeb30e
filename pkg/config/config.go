// Package config loads settings for the gateway, the review client and the
// batch tools.
//
// Configuration is loaded from:
// 1. config.yaml (optional; ".", "./config" or an explicit path)
// 2. Environment variables, nested keys joined by "_" (UPSTREAM_BASE_URL)
// 3. Default values
//
// PORT and MDN_BASE_URL are honoured as well since deployments already set them.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Suspects SuspectsConfig `mapstructure:"suspects"`
	Review   ReviewConfig   `mapstructure:"review"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StaticRoot      string        `mapstructure:"static_root"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UpstreamConfig describes the wiki the gateway proxies.
type UpstreamConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ViewURL      string        `mapstructure:"view_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	UserAgent    string        `mapstructure:"user_agent"`
	Bots         []string      `mapstructure:"bots"`
}

// SuspectsConfig points at the suspect store.
type SuspectsConfig struct {
	Root string `mapstructure:"root"`
	// Strict turns data invariant violations into hard failures.
	Strict bool `mapstructure:"strict"`
}

// ReviewConfig contains settings for the terminal review client.
type ReviewConfig struct {
	SubsetSize      int           `mapstructure:"subset_size"`
	IgnoreRetention time.Duration `mapstructure:"ignore_retention"`
	StateDB         string        `mapstructure:"state_db"`
	MirrorInterval  time.Duration `mapstructure:"mirror_interval"`
}

// SweepConfig contains verification sweep settings.
type SweepConfig struct {
	ChecksPerLocale int           `mapstructure:"checks_per_locale"`
	MaxLocales      int           `mapstructure:"max_locales"`
	RecheckAfter    time.Duration `mapstructure:"recheck_after"`
	Delay           time.Duration `mapstructure:"delay"`
	Workers         int           `mapstructure:"workers"`
	JournalDB       string        `mapstructure:"journal_db"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Load reads configuration from file and environment variables. path may be
// empty to search the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL", "MDN_BASE_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	cfg.Upstream.ViewURL = strings.TrimRight(cfg.Upstream.ViewURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks for configuration errors that would only surface later.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Suspects.Root == "" {
		return fmt.Errorf("suspects.root must not be empty")
	}
	if c.Review.SubsetSize <= 0 {
		return fmt.Errorf("review.subset_size must be positive")
	}
	if c.Review.IgnoreRetention <= 0 {
		return fmt.Errorf("review.ignore_retention must be positive")
	}
	if c.Sweep.ChecksPerLocale <= 0 {
		return fmt.Errorf("sweep.checks_per_locale must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.static_root", "build")
	v.SetDefault("server.cors_origins", []string{})

	// Upstream
	v.SetDefault("upstream.base_url", "https://wiki.developer.mozilla.org")
	v.SetDefault("upstream.view_url", "https://developer.mozilla.org")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("upstream.max_body_bytes", 10*1024*1024)
	v.SetDefault("upstream.user_agent", "nottranslated/1.0")
	v.SetDefault("upstream.bots", []string{"mdnwebdocs-bot"})

	// Suspects
	v.SetDefault("suspects.root", "public/suspects")
	v.SetDefault("suspects.strict", false)

	// Review
	v.SetDefault("review.subset_size", 25)
	v.SetDefault("review.ignore_retention", "72h")
	v.SetDefault("review.state_db", "nottranslated.db")
	v.SetDefault("review.mirror_interval", "100ms")

	// Sweep
	v.SetDefault("sweep.checks_per_locale", 10)
	v.SetDefault("sweep.max_locales", 10)
	v.SetDefault("sweep.recheck_after", "1h")
	v.SetDefault("sweep.delay", "1s")
	v.SetDefault("sweep.workers", 2)
	v.SetDefault("sweep.journal_db", "sweep.db")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
