// Package config loads slacklet configuration from the environment, with an
// optional YAML file overlay for deployments that prefer a checked-in config.
// Environment variables win over the file.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// HTTP
	ListenAddr string `env:"SLACKLET_LISTEN_ADDR" yaml:"listen_addr"`

	// Slack app credentials
	ClientID          string `env:"SLACK_CLIENT_ID" yaml:"client_id"`
	ClientSecret      string `env:"SLACK_CLIENT_SECRET" yaml:"client_secret"`
	ClientScopes      string `env:"SLACK_CLIENT_SCOPES" yaml:"client_scopes"`
	VerificationToken string `env:"SLACK_VERIFICATION_TOKEN" yaml:"verification_token"`

	// OAuth install flow
	InstallRedirect string `env:"SLACKLET_INSTALL_REDIRECT" yaml:"install_redirect"`
	OAuthRedirect   string `env:"SLACKLET_OAUTH_REDIRECT" yaml:"oauth_redirect"`

	// Storage
	DatabasePath string `env:"SLACKLET_DB" yaml:"database_path"`

	// Scripts
	ScriptsDir string `env:"SLACKLET_SCRIPTS_DIR" yaml:"scripts_dir"`

	// Fan-out bus
	BusWorkers int `env:"SLACKLET_BUS_WORKERS" yaml:"bus_workers"`

	// Logging
	LogLevel string `env:"SLACKLET_LOG_LEVEL" yaml:"log_level"`
}

// Default returns a Config with the built-in defaults applied.
func Default() *Config {
	return &Config{
		ListenAddr:   ":8080",
		ClientScopes: "bot,commands",
		DatabasePath: "slacklet.db",
		BusWorkers:   4,
		LogLevel:     "info",
	}
}

// Load builds the configuration. When path is non-empty the YAML file is
// read first, then environment variables are applied on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.BusWorkers <= 0 {
		cfg.BusWorkers = 1
	}

	return cfg, nil
}

// Validate checks that the fields required to talk to Slack are present.
// The receive path only needs the verification token; the install flow
// additionally needs the OAuth client credentials.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("config: SLACK_CLIENT_ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("config: SLACK_CLIENT_SECRET is required")
	}
	return nil
}
