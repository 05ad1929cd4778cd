// Package config loads the declarative startup configuration: which
// tool servers to spawn, where the local model lives, and optional
// pricing and telemetry settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "boardpilot.yaml"
	homeConfigDir     = ".boardpilot"
	homeConfigName    = "config.yaml"

	// EnvConfigPath overrides config discovery.
	EnvConfigPath = "BOARDPILOT_CONFIG"
	// EnvOllamaURL overrides the Ollama base URL.
	EnvOllamaURL = "BOARDPILOT_OLLAMA_URL"
	// EnvOllamaModel overrides the model name.
	EnvOllamaModel = "BOARDPILOT_OLLAMA_MODEL"
	// EnvNexarToken enables live distributor pricing.
	EnvNexarToken = "NEXAR_TOKEN"
)

// ServerConfig declares one tool server subprocess.
type ServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// OllamaConfig locates the local model daemon. Timeout is a Go
// duration string like "90s" or "5m".
type OllamaConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// TimeoutDuration parses the timeout, falling back to five minutes.
func (c OllamaConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// PricingConfig carries distributor API credentials.
type PricingConfig struct {
	NexarToken string `yaml:"nexar_token,omitempty"`
}

// HealthConfig controls server liveness probing.
type HealthConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
}

// RestartConfig bounds how hard a dead tool server is respawned.
// Backoff is a Go duration string like "200ms" and doubles per attempt.
type RestartConfig struct {
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	Backoff     string `yaml:"backoff,omitempty"`
}

// BackoffDuration parses the backoff, falling back to 200ms.
func (c RestartConfig) BackoffDuration() time.Duration {
	d, err := time.ParseDuration(c.Backoff)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// TelemetryConfig points traces at an OTLP collector.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Config is the full startup configuration.
type Config struct {
	Servers   []ServerConfig  `yaml:"servers,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	Pricing   PricingConfig   `yaml:"pricing,omitempty"`
	Health    HealthConfig    `yaml:"health,omitempty"`
	Restart   RestartConfig   `yaml:"restart,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// Default returns the configuration used when no file is present: the
// three bundled tool servers and a local Ollama daemon.
func Default() Config {
	return Config{
		Servers: []ServerConfig{
			{Name: "kicad-tools", Command: "boardpilot-kicad"},
			{Name: "component-database", Command: "boardpilot-catalog"},
			{Name: "octopart-api", Command: "boardpilot-pricing"},
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2:3b",
			Timeout: "5m",
		},
		Health:  HealthConfig{Schedule: "@every 30s"},
		Restart: RestartConfig{MaxAttempts: 3, Backoff: "200ms"},
	}
}

// Discover resolves the config path: explicit argument, then
// BOARDPILOT_CONFIG, then ./boardpilot.yaml, then
// ~/.boardpilot/config.yaml. Returns found=false when nothing exists and
// no explicit path was given.
func Discover(explicitPath string) (string, bool, error) {
	candidates := make([]string, 0, 3)
	explicit := strings.TrimSpace(explicitPath)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if explicit != "" {
		candidates = append(candidates, filepath.Clean(explicit))
	} else {
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, homeConfigDir, homeConfigName))
		}
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && explicit != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads and validates a config file, applying defaults and
// environment overrides. Unknown YAML keys are rejected.
func Load(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config bytes with strict field checking, then fills
// defaults and applies environment overrides.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var loaded Config
	if err := decoder.Decode(&loaded); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}

	if len(loaded.Servers) > 0 {
		cfg.Servers = loaded.Servers
	}
	if loaded.Ollama.BaseURL != "" {
		cfg.Ollama.BaseURL = loaded.Ollama.BaseURL
	}
	if loaded.Ollama.Model != "" {
		cfg.Ollama.Model = loaded.Ollama.Model
	}
	if loaded.Ollama.Timeout != "" {
		cfg.Ollama.Timeout = loaded.Ollama.Timeout
	}
	if loaded.Pricing.NexarToken != "" {
		cfg.Pricing.NexarToken = loaded.Pricing.NexarToken
	}
	if loaded.Health.Schedule != "" {
		cfg.Health.Schedule = loaded.Health.Schedule
	}
	if loaded.Restart.MaxAttempts > 0 {
		cfg.Restart.MaxAttempts = loaded.Restart.MaxAttempts
	}
	if loaded.Restart.Backoff != "" {
		cfg.Restart.Backoff = loaded.Restart.Backoff
	}
	if loaded.Telemetry.Endpoint != "" {
		cfg.Telemetry.Endpoint = loaded.Telemetry.Endpoint
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns the default config with environment overrides, for
// running without any file.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvOllamaURL)); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOllamaModel)); v != "" {
		c.Ollama.Model = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNexarToken)); v != "" {
		c.Pricing.NexarToken = v
	}
}

func (c *Config) validate() error {
	seen := map[string]bool{}
	for i, server := range c.Servers {
		name := strings.TrimSpace(server.Name)
		if name == "" {
			return fmt.Errorf("server %d: name is required", i)
		}
		if strings.TrimSpace(server.Command) == "" {
			return fmt.Errorf("server %q: command is required", name)
		}
		if seen[name] {
			return fmt.Errorf("server %q declared twice", name)
		}
		seen[name] = true
	}
	if c.Ollama.Timeout != "" {
		if _, err := time.ParseDuration(c.Ollama.Timeout); err != nil {
			return fmt.Errorf("ollama timeout %q: %w", c.Ollama.Timeout, err)
		}
	}
	if c.Restart.Backoff != "" {
		if _, err := time.ParseDuration(c.Restart.Backoff); err != nil {
			return fmt.Errorf("restart backoff %q: %w", c.Restart.Backoff, err)
		}
	}
	return nil
}
