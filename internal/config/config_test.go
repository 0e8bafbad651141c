package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider != ProviderGemini {
		t.Errorf("expected default provider 'gemini', got %q", cfg.Provider)
	}

	if cfg.ResolvedModel() != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, cfg.ResolvedModel())
	}

	if cfg.Thinking.Planning != LevelHigh || cfg.Thinking.Expert != LevelHigh || cfg.Thinking.Synthesis != LevelHigh {
		t.Errorf("expected high/high/high thinking, got %+v", cfg.Thinking)
	}

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 retry attempts, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected initial delay 500ms, got %v", cfg.Retry.InitialDelay)
	}

	if cfg.Engine.HistoryWindow != 5 {
		t.Errorf("expected history window 5, got %d", cfg.Engine.HistoryWindow)
	}

	if cfg.TUI.RefreshRate != 100*time.Millisecond {
		t.Errorf("expected refresh rate 100ms, got %v", cfg.TUI.RefreshRate)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
provider: anthropic
model: claude-sonnet-4-5
anthropic:
  api_key: test-key
  use_bedrock: true
  aws_region: eu-west-1
thinking:
  planning: low
  expert: medium
retry:
  max_attempts: 5
  max_delay: 10s
engine:
  max_experts: 3
tui:
  refresh_rate: 200ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected provider 'anthropic', got %q", cfg.Provider)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "eu-west-1" {
		t.Errorf("unexpected bedrock settings: %+v", cfg.Anthropic)
	}

	if cfg.Thinking.Planning != LevelLow || cfg.Thinking.Expert != LevelMedium {
		t.Errorf("unexpected thinking levels: %+v", cfg.Thinking)
	}

	// unset keys keep their defaults
	if cfg.Thinking.Synthesis != LevelHigh {
		t.Errorf("expected synthesis level default 'high', got %q", cfg.Thinking.Synthesis)
	}

	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.MaxDelay != 10*time.Second {
		t.Errorf("unexpected retry config: %+v", cfg.Retry)
	}

	if cfg.Retry.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected default initial delay, got %v", cfg.Retry.InitialDelay)
	}

	if cfg.Engine.MaxExperts != 3 || cfg.Engine.HistoryWindow != 5 {
		t.Errorf("unexpected engine config: %+v", cfg.Engine)
	}

	if cfg.TUI.RefreshRate != 200*time.Millisecond {
		t.Errorf("expected refresh rate 200ms, got %v", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown provider", "provider: openai\n", "unknown provider"},
		{"unknown level", "thinking:\n  expert: extreme\n", "thinking.expert"},
		{"zero attempts", "retry:\n  max_attempts: 0\n", "retry.max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFromPath(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveToPath_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Provider = ProviderOllama
	cfg.Ollama.Host = "http://127.0.0.1:11434"
	cfg.Thinking.Planning = LevelMinimal
	cfg.Engine.MaxExperts = 2

	if err := SaveToPath(cfg, path); err != nil {
		t.Fatalf("SaveToPath: %v", err)
	}

	got, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if got.Provider != ProviderOllama || got.Ollama.Host != cfg.Ollama.Host {
		t.Errorf("provider settings lost: %+v", got)
	}
	if got.Thinking.Planning != LevelMinimal || got.Engine.MaxExperts != 2 {
		t.Errorf("values lost: thinking=%+v engine=%+v", got.Thinking, got.Engine)
	}
	if got.Retry.MaxDelay != 4*time.Second {
		t.Errorf("expected max delay 4s, got %v", got.Retry.MaxDelay)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := filepath.Join("/custom/config", "deepthink")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	if got := DataDir(); got != filepath.Join("/custom/data", "deepthink") {
		t.Errorf("DataDir = %q", got)
	}
}

func TestResolvedModel(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{ProviderGemini, "", DefaultModel},
		{ProviderGemini, "gemini-3-pro-preview", "gemini-3-pro-preview"},
		{ProviderAnthropic, "", "claude-sonnet-4-5"},
		{ProviderOllama, "", "qwen3"},
	}
	for _, tc := range tests {
		cfg := &Config{Provider: tc.provider, Model: tc.model}
		if got := cfg.ResolvedModel(); got != tc.want {
			t.Errorf("ResolvedModel(%s, %q) = %q, want %q", tc.provider, tc.model, got, tc.want)
		}
	}
}
