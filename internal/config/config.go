// Package config resolves the mission control home directory and loads the
// optional config.yaml that tunes routing and integrations.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AssignmentRule is one ordered entry in the auto-assignment table: the role
// to route to and the patterns that select it. Order in the file is
// significant (first match wins).
type AssignmentRule struct {
	Role     string   `yaml:"role"`
	Patterns []string `yaml:"patterns"`
}

// SeedAgent is a roster entry created on first start if the directory is empty.
type SeedAgent struct {
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	Level        string `yaml:"level"`
	SystemPrompt string `yaml:"system_prompt"`
	Character    string `yaml:"character"`
	Lore         string `yaml:"lore"`
}

// Config holds settings from <home>/config.yaml. All fields are optional;
// zero values fall back to built-in defaults.
type Config struct {
	// Owner is the admin identity whose task comments trigger
	// "awaiting your response" notifications to assignees.
	Owner string `yaml:"owner"`
	// Fallback is the agent name that receives tasks no assignment rule
	// matches.
	Fallback string `yaml:"fallback"`
	// Rules overrides the built-in assignment rule table when non-empty.
	Rules []AssignmentRule `yaml:"rules"`
	// Seed is the roster created on first start when the directory is empty.
	Seed []SeedAgent `yaml:"seed"`
	// TriggerURL is the agent-execution webhook notified (best effort) when
	// a task moves to in_progress.
	TriggerURL string `yaml:"trigger_url"`
	// SlackWebhookURL mirrors trigger events to a Slack incoming webhook.
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// DefaultOwner is the admin identity when config.yaml does not set one.
const DefaultOwner = "commander"

// DefaultFallback is the catch-all agent when config.yaml does not set one.
const DefaultFallback = "atlas"

// Path returns the config file location under home.
func Path(home string) string { return filepath.Join(home, "config.yaml") }

// Load reads <home>/config.yaml. A missing file yields a Config of defaults
// and nil error.
func Load(home string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(Path(home))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to <home>/config.yaml.
func Save(home string, cfg *Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(home), data, 0o644)
}

func (c *Config) applyDefaults() {
	if c.Owner == "" {
		c.Owner = DefaultOwner
	}
	if c.Fallback == "" {
		c.Fallback = DefaultFallback
	}
	if os.Getenv("MISSIONCTL_TRIGGER_URL") != "" {
		c.TriggerURL = os.Getenv("MISSIONCTL_TRIGGER_URL")
	}
	if os.Getenv("SLACK_WEBHOOK_URL") != "" {
		c.SlackWebhookURL = os.Getenv("SLACK_WEBHOOK_URL")
	}
}
