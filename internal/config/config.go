// Package config reads the action configuration from INPUT_* and
// GitHub context environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTitle      = "Interactive Inputs"
	DefaultBoreServer = "bore.pub"
	DefaultTimeout    = 300 * time.Second
)

type Slack struct {
	Enabled  bool
	Token    string
	Channel  string
	ThreadTS string
	BotName  string
}

type Discord struct {
	Enabled    bool
	WebhookURL string
	ThreadID   string
	Username   string
}

type Config struct {
	Title   string
	Timeout time.Duration
	Fields  fields.Set

	BoreServer string
	BorePort   int
	BoreSecret string

	Repository string
	RunID      string
	Workflow   string
	ServerURL  string

	Slack   Slack
	Discord Discord
}

// fieldsDoc is the YAML front end: either a bare list of fields or a
// document with a top-level fields key.
type fieldsDoc struct {
	Fields fields.Set `yaml:"fields"`
}

// ParseFields decodes the interactive field schema from YAML.
func ParseFields(blob string) (fields.Set, error) {
	if blob == "" {
		return nil, nil
	}

	var doc fieldsDoc
	if err := yaml.Unmarshal([]byte(blob), &doc); err == nil && len(doc.Fields) > 0 {
		return doc.Fields, nil
	}

	var set fields.Set
	if err := yaml.Unmarshal([]byte(blob), &set); err != nil {
		return nil, fmt.Errorf("parsing interactive fields: %w", err)
	}
	return set, nil
}

// FromEnv builds the configuration the way the composite action
// passes it: INPUT_* for action inputs, GITHUB_* for run context.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Title:      envOr("INPUT_TITLE", DefaultTitle),
		BoreServer: envOr("INPUT_BORE_SERVER", DefaultBoreServer),
		BoreSecret: os.Getenv("INPUT_BORE_SECRET"),

		Repository: os.Getenv("GITHUB_REPOSITORY"),
		RunID:      os.Getenv("GITHUB_RUN_ID"),
		Workflow:   os.Getenv("GITHUB_WORKFLOW"),
		ServerURL:  envOr("GITHUB_SERVER_URL", "https://github.com"),

		Slack: Slack{
			Enabled:  envBool("INPUT_NOTIFIER_SLACK_ENABLED"),
			Token:    os.Getenv("INPUT_NOTIFIER_SLACK_TOKEN"),
			Channel:  envOr("INPUT_NOTIFIER_SLACK_CHANNEL", "#notifications"),
			ThreadTS: os.Getenv("INPUT_NOTIFIER_SLACK_THREAD_TS"),
			BotName:  envOr("INPUT_NOTIFIER_SLACK_BOT", "Bore Interactive Inputs"),
		},
		Discord: Discord{
			Enabled:    envBool("INPUT_NOTIFIER_DISCORD_ENABLED"),
			WebhookURL: os.Getenv("INPUT_NOTIFIER_DISCORD_WEBHOOK"),
			ThreadID:   os.Getenv("INPUT_NOTIFIER_DISCORD_THREAD_ID"),
			Username:   envOr("INPUT_NOTIFIER_DISCORD_USERNAME", "Bore Interactive Inputs"),
		},
	}

	timeout, err := envInt("INPUT_TIMEOUT", int(DefaultTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeout) * time.Second

	cfg.BorePort, err = envInt("INPUT_BORE_PORT", 0)
	if err != nil {
		return nil, err
	}

	cfg.Fields, err = ParseFields(os.Getenv("INPUT_INTERACTIVE"))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Fields.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.BoreServer == "" {
		errs = append(errs, errors.New("bore server address is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Slack.Enabled && c.Slack.Token == "" {
		errs = append(errs, errors.New("slack token is required when slack notifications are enabled"))
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		errs = append(errs, errors.New("discord webhook is required when discord notifications are enabled"))
	}

	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
