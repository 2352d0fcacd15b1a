// Package config provides YAML configuration parsing for statuswatch.
//
// Example configuration:
//
//	port: 8000
//	poll_interval: 30s
//	request_timeout: 10s
//	queue_capacity: 256
//	failure_threshold: 3
//	console: true
//
//	providers:
//	  - name: GitHub
//	    url: https://www.githubstatus.com/api/v2
//	  - name: OpenAI
//	    url: https://status.openai.com/api/v2
//	    poll_interval: 1m
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental DoS of providers with overly aggressive polling.
const minPollInterval = 1 * time.Second

// Defaults applied by [Parse] for unset fields.
const (
	DefaultPort             = 8000
	DefaultPollInterval     = 30 * time.Second
	DefaultRequestTimeout   = 10 * time.Second
	DefaultQueueCapacity    = 256
	DefaultFailureThreshold = 3
)

// Config is the root configuration structure for statuswatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8000.
	Port int `yaml:"port"`

	// PollInterval is the default time between polls for providers
	// that do not set their own. Defaults to 30s.
	PollInterval Duration `yaml:"poll_interval"`

	// RequestTimeout is the default per-request deadline for
	// providers that do not set their own. Must be strictly shorter
	// than the poll interval it applies with. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// QueueCapacity is the bounded event queue size given to each
	// bus subscriber. Defaults to 256.
	QueueCapacity int `yaml:"queue_capacity"`

	// FailureThreshold is how many consecutive failed polls make a
	// provider report unknown. Defaults to 3.
	FailureThreshold int `yaml:"failure_threshold"`

	// Console enables the terminal event renderer.
	Console bool `yaml:"console"`

	// Providers defines the status pages to track.
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig defines a single status-page provider.
type ProviderConfig struct {
	// Name is the unique provider key shown in events and the API.
	Name string `yaml:"name"`

	// URL is the base URL of the provider's status API, e.g.
	// "https://www.githubstatus.com/api/v2".
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// PollInterval overrides the global poll interval for this
	// provider. Must be at least 1s.
	PollInterval Duration `yaml:"poll_interval"`

	// Timeout overrides the global request timeout for this provider.
	// Must be strictly shorter than the effective poll interval.
	Timeout Duration `yaml:"timeout"`
}

// EffectiveInterval returns the provider's poll interval, falling back
// to the global default.
func (p ProviderConfig) EffectiveInterval(c *Config) time.Duration {
	if p.PollInterval != 0 {
		return p.PollInterval.Duration()
	}
	return c.PollInterval.Duration()
}

// EffectiveTimeout returns the provider's request timeout, falling
// back to the global default.
func (p ProviderConfig) EffectiveTimeout(c *Config) time.Duration {
	if p.Timeout != 0 {
		return p.Timeout.Duration()
	}
	return c.RequestTimeout.Duration()
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults, expands
// environment variables in provider URLs, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.RequestTimeout.Duration() <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout.Duration())
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity cannot be negative, got %d", c.QueueCapacity)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", c.FailureThreshold)
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	names := make(map[string]struct{}, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]

		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		names[p.Name] = struct{}{}

		if p.URL == "" {
			return fmt.Errorf("providers[%d] (%s): url is required", i, p.Name)
		}
		expanded, err := expandEnvVars(p.URL)
		if err != nil {
			return fmt.Errorf("providers[%d] (%s): url: %w", i, p.Name, err)
		}
		p.URL = expanded

		parsedURL, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("providers[%d] (%s): invalid url: %w", i, p.Name, err)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("providers[%d] (%s): url scheme must be http or https, got %q", i, p.Name, parsedURL.Scheme)
		}

		if p.PollInterval != 0 && p.PollInterval.Duration() < minPollInterval {
			return fmt.Errorf("providers[%d] (%s): poll_interval must be at least %s, got %s",
				i, p.Name, minPollInterval, p.PollInterval.Duration())
		}
		if p.Timeout != 0 && p.Timeout.Duration() <= 0 {
			return fmt.Errorf("providers[%d] (%s): timeout must be positive, got %s",
				i, p.Name, p.Timeout.Duration())
		}

		// a stalled request must never outlive the poll cycle that
		// issued it, or requests to one provider could overlap
		if p.EffectiveTimeout(c) >= p.EffectiveInterval(c) {
			return fmt.Errorf("providers[%d] (%s): timeout %s must be shorter than poll interval %s",
				i, p.Name, p.EffectiveTimeout(c), p.EffectiveInterval(c))
		}
	}

	return nil
}
