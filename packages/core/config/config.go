package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects which client implementation the CLI uses.
type Mode string

const (
	ModeHTTP   Mode = "http"
	ModeKernel Mode = "kernel"
)

// Config represents the testclient configuration
type Config struct {
	Mode            Mode              `yaml:"mode,omitempty"`
	BaseURL         string            `yaml:"baseURL,omitempty"`
	Timeout         int               `yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"` // sent with every request
	Fixtures        []string          `yaml:"fixtures,omitempty"`
	Verbose         *bool             `yaml:"verbose,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// TimeoutDuration returns Timeout as a time.Duration
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeHTTP:
	case ModeKernel:
		if len(c.Fixtures) == 0 {
			return fmt.Errorf("mode %q requires at least one fixtures file", c.Mode)
		}
	default:
		return fmt.Errorf("unknown mode %q (expected %q or %q)", c.Mode, ModeHTTP, ModeKernel)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative")
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".testclient.yaml",
	"testclient.yaml",
	".testclient.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	// Relative fixture paths are relative to the config file.
	dir := filepath.Dir(path)
	for i, f := range config.Fixtures {
		if !filepath.IsAbs(f) {
			config.Fixtures[i] = filepath.Join(dir, f)
		}
	}

	return config, nil
}

// Parse decodes a YAML document over the defaults. ${VAR} references are
// expanded from the environment first.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, err
	}
	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Mode != "" {
		result.Mode = other.Mode
	}
	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if len(other.Fixtures) > 0 {
		result.Fixtures = other.Fixtures
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
