// Package config loads runtime settings from an optional blueprint.yaml
// plus BLUEPRINT_* environment variables, environment winning.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/velonis/blueprint/internal/domain/deploy"
)

// Config holds everything the CLI and server need at startup.
type Config struct {
	// ClickUp connection.
	Token  string `mapstructure:"token"`
	TeamID string `mapstructure:"team_id"`

	// Template sources.
	TemplatesDir   string `mapstructure:"templates_dir"`
	RegistryListID string `mapstructure:"registry_list_id"`

	// HTTP server.
	ServerAddr   string   `mapstructure:"server_addr"`
	APIKey       string   `mapstructure:"api_key"`
	EmailDomains []string `mapstructure:"email_domains"`

	// Conversational interpreter. The rule-based fallback is used when no
	// OpenAI key is set.
	OpenAIKey   string `mapstructure:"openai_key"`
	OpenAIModel string `mapstructure:"openai_model"`

	// Deployment behavior.
	Delay               time.Duration `mapstructure:"delay"`
	StopOnMissingFields bool          `mapstructure:"stop_on_missing_fields"`
	CreateNewList       bool          `mapstructure:"create_new_list"`
	EnableRollback      bool          `mapstructure:"enable_rollback"`
}

// Load reads configuration from path (optional, "" means only defaults and
// environment) and the BLUEPRINT_* environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLUEPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("templates_dir", "templates")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("delay", deploy.DefaultDelay)
	v.SetDefault("stop_on_missing_fields", false)
	v.SetDefault("create_new_list", true)
	v.SetDefault("enable_rollback", false)

	// Explicit binds so AutomaticEnv sees keys that never appear in a file.
	for _, key := range []string{
		"token", "team_id", "templates_dir", "registry_list_id",
		"server_addr", "api_key", "email_domains",
		"openai_key", "openai_model",
		"delay", "stop_on_missing_fields", "create_new_list", "enable_rollback",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.EmailDomains = splitDomains(cfg.EmailDomains)
	return &cfg, nil
}

// splitDomains normalizes the domain list: env values arrive as one or more
// comma-separated, possibly padded elements.
func splitDomains(raw []string) []string {
	var out []string
	for _, el := range raw {
		for _, p := range strings.Split(el, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the fields every deployment needs.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("missing ClickUp token (BLUEPRINT_TOKEN)")
	}
	if c.TeamID == "" {
		return errors.New("missing workspace team id (BLUEPRINT_TEAM_ID)")
	}
	return nil
}

// DeployOptions translates the configured behavior into per-run options.
func (c *Config) DeployOptions() deploy.Options {
	return deploy.Options{
		StopOnMissingFields:   c.StopOnMissingFields,
		CreateNewListIfNeeded: c.CreateNewList,
		DelayBetweenCalls:     c.Delay,
		EnableRollback:        c.EnableRollback,
	}
}
