package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models approval.yml.
type Config struct {
	Advertiser struct {
		ID          string `yaml:"id"`
		CompanyName string `yaml:"company_name"`
	} `yaml:"advertiser"`
	Review struct {
		// ResumeTier is the tier review restarts from after a resubmission.
		// Only "first" is supported: the creative snapshot changed, so every
		// tier reviews again.
		ResumeTier        string `yaml:"resume_tier"`
		DefaultExpiryDays int    `yaml:"default_expiry_days"`
	} `yaml:"review"`
	Share struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"share"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Advertiser.ID == "" {
		return fmt.Errorf("config.advertiser.id is required")
	}
	if c.Review.ResumeTier != "" && c.Review.ResumeTier != "first" {
		return fmt.Errorf("config.review.resume_tier must be 'first'")
	}
	if c.Review.DefaultExpiryDays < 0 {
		return fmt.Errorf("config.review.default_expiry_days must not be negative")
	}
	if c.Share.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Share.BaseURL); err != nil {
			return fmt.Errorf("config.share.base_url is not a valid URL: %w", err)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// FileName is the config file name inside a workspace.
const FileName = "approval.yml"

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the default Config struct for an advertiser.
func Default(advertiserID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, advertiserID))).Decode(&cfg)
	cfg.Advertiser.ID = advertiserID
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(advertiserID string) string {
	return fmt.Sprintf(defaultTemplate, advertiserID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `advertiser:
  id: %s
  company_name: ""

review:
  resume_tier: first
  default_expiry_days: 14

share:
  base_url: "http://localhost:5173/review"

webhooks: []
`
