package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
servers:
  - name: kicad-tools
    command: ./bin/boardpilot-kicad
    args: ["--verbose"]
    env:
      LOG_LEVEL: debug
ollama:
  base_url: http://model-host:11434
  model: mistral:7b
  timeout: 2m
health:
  schedule: "@every 10s"
telemetry:
  endpoint: localhost:4318
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Command != "./bin/boardpilot-kicad" {
		t.Fatalf("servers = %+v", cfg.Servers)
	}
	if cfg.Ollama.BaseURL != "http://model-host:11434" || cfg.Ollama.Model != "mistral:7b" {
		t.Fatalf("ollama = %+v", cfg.Ollama)
	}
	if cfg.Ollama.TimeoutDuration() != 2*time.Minute {
		t.Fatalf("timeout = %v, want 2m", cfg.Ollama.TimeoutDuration())
	}
	if cfg.Health.Schedule != "@every 10s" {
		t.Fatalf("health schedule = %q", cfg.Health.Schedule)
	}
	if cfg.Telemetry.Endpoint != "localhost:4318" {
		t.Fatalf("telemetry endpoint = %q", cfg.Telemetry.Endpoint)
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty) error = %v", err)
	}
	want := Default()
	if len(cfg.Servers) != len(want.Servers) {
		t.Fatalf("servers = %+v, want defaults", cfg.Servers)
	}
	if cfg.Ollama.Model != want.Ollama.Model {
		t.Fatalf("model = %q, want %q", cfg.Ollama.Model, want.Ollama.Model)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("ollmaa:\n  model: typo\n"))
	if err == nil {
		t.Fatal("Parse() with unknown key succeeded, want error")
	}
}

func TestParseValidatesServers(t *testing.T) {
	cases := map[string]string{
		"missing name":    "servers:\n  - command: foo\n",
		"missing command": "servers:\n  - name: foo\n",
		"duplicate name":  "servers:\n  - name: a\n    command: x\n  - name: a\n    command: y\n",
	}
	for label, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Fatalf("Parse() accepted config with %s", label)
		}
	}
}

func TestParseRejectsBadTimeout(t *testing.T) {
	if _, err := Parse([]byte("ollama:\n  timeout: soon\n")); err == nil {
		t.Fatal("Parse() with unparseable timeout succeeded, want error")
	}
}

func TestTimeoutDurationFallback(t *testing.T) {
	if got := (OllamaConfig{}).TimeoutDuration(); got != 5*time.Minute {
		t.Fatalf("TimeoutDuration() = %v, want 5m default", got)
	}
}

func TestParseRestartSettings(t *testing.T) {
	cfg, err := Parse([]byte("restart:\n  max_attempts: 5\n  backoff: 1s\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Restart.MaxAttempts != 5 {
		t.Fatalf("restart max_attempts = %d, want 5", cfg.Restart.MaxAttempts)
	}
	if cfg.Restart.BackoffDuration() != time.Second {
		t.Fatalf("restart backoff = %v, want 1s", cfg.Restart.BackoffDuration())
	}

	if _, err := Parse([]byte("restart:\n  backoff: whenever\n")); err == nil {
		t.Fatal("Parse() with unparseable restart backoff succeeded, want error")
	}
}

func TestRestartDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Restart.MaxAttempts != 3 {
		t.Fatalf("default restart max_attempts = %d, want 3", cfg.Restart.MaxAttempts)
	}
	if got := (RestartConfig{}).BackoffDuration(); got != 200*time.Millisecond {
		t.Fatalf("BackoffDuration() = %v, want 200ms default", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvOllamaURL, "http://gpu-box:11434")
	t.Setenv(EnvOllamaModel, "qwen2.5:14b")
	t.Setenv(EnvNexarToken, "tok-123")

	cfg, err := Parse([]byte("ollama:\n  model: from-file\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box:11434" {
		t.Fatalf("base_url = %q, want env override", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.Model != "qwen2.5:14b" {
		t.Fatalf("model = %q, env must win over file", cfg.Ollama.Model)
	}
	if cfg.Pricing.NexarToken != "tok-123" {
		t.Fatalf("nexar token = %q", cfg.Pricing.NexarToken)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boardpilot.yaml")
	if err := os.WriteFile(path, []byte("ollama:\n  model: llama3.1:8b\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.Model != "llama3.1:8b" {
		t.Fatalf("model = %q", cfg.Ollama.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() on missing file succeeded, want error")
	}
}

func TestDiscoverExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, found, err := Discover(path)
	if err != nil || !found {
		t.Fatalf("Discover() = %q, %v, %v", got, found, err)
	}
	if got != path {
		t.Fatalf("Discover() = %q, want %q", got, path)
	}

	if _, _, err := Discover(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("Discover() on missing explicit path succeeded, want error")
	}
}

func TestDiscoverEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv(EnvConfigPath, path)

	got, found, err := Discover("")
	if err != nil || !found {
		t.Fatalf("Discover() = %q, %v, %v", got, found, err)
	}
	if got != path {
		t.Fatalf("Discover() = %q, want %q", got, path)
	}
}
