// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything both binaries need. Each binary reads the
// subset that applies to it.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// IdentityConfig configures verification of member identity assertions.
// Exactly one of PublicKeyPEM or HMACSecret must be set; HMAC is intended
// for development and tests.
type IdentityConfig struct {
	Issuer       string `mapstructure:"issuer"`
	PublicKeyPEM string `mapstructure:"public_key_pem"`
	HMACSecret   string `mapstructure:"hmac_secret"`
}

// RecorderConfig is how the issuer reaches the ballot recorder, and how the
// recorder authenticates the issuer. S2SToken must match on both sides.
type RecorderConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	S2SToken string        `mapstructure:"s2s_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Burst     int `mapstructure:"burst"`
	PerSecond int `mapstructure:"per_second"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads the file at path and applies BALLOTBOX_* environment overrides,
// e.g. BALLOTBOX_POSTGRES_DSN overrides postgres.dsn.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BALLOTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("recorder.timeout", 5*time.Second)
	v.SetDefault("rate_limit.burst", 50)
	v.SetDefault("rate_limit.per_second", 25)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Identity.PublicKeyPEM == "" && c.Identity.HMACSecret == "" {
		return errors.New("config: identity.public_key_pem or identity.hmac_secret is required")
	}
	if c.Identity.PublicKeyPEM != "" && c.Identity.HMACSecret != "" {
		return errors.New("config: identity.public_key_pem and identity.hmac_secret are mutually exclusive")
	}
	return nil
}
