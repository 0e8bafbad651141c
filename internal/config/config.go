// Package config handles configuration loading and management for deepthink.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by the provider key.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// DefaultModel is used when no model is configured for the Gemini provider.
const DefaultModel = "gemini-3-flash-preview"

// Config holds all configuration for deepthink.
type Config struct {
	Provider  string          `mapstructure:"provider"`
	Model     string          `mapstructure:"model"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Thinking  ThinkingConfig  `mapstructure:"thinking"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Engine    EngineConfig    `mapstructure:"engine"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// GeminiConfig holds Gemini API settings. BaseURL points the client at a
// custom endpoint.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OllamaConfig holds settings for a local Ollama server.
type OllamaConfig struct {
	Host string `mapstructure:"host"`
}

// ThinkingConfig holds the thinking level for each stage of a run.
type ThinkingConfig struct {
	Planning  Level `mapstructure:"planning"`
	Expert    Level `mapstructure:"expert"`
	Synthesis Level `mapstructure:"synthesis"`
}

// RetryConfig holds the initiation retry policy.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// EngineConfig holds orchestration limits.
type EngineConfig struct {
	MaxExperts    int `mapstructure:"max_experts"`
	HistoryWindow int `mapstructure:"history_window"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// ResolvedModel returns the configured model, or the provider's default.
func (c *Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.Provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-5"
	case ProviderOllama:
		return "qwen3"
	default:
		return DefaultModel
	}
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q (want gemini, anthropic or ollama)", c.Provider)
	}
	for name, l := range map[string]Level{
		"thinking.planning":  c.Thinking.Planning,
		"thinking.expert":    c.Thinking.Expert,
		"thinking.synthesis": c.Thinking.Synthesis,
	} {
		if !l.Valid() {
			return fmt.Errorf("%s: unknown level %q", name, l)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Engine.MaxExperts < 0 {
		return fmt.Errorf("engine.max_experts must not be negative, got %d", c.Engine.MaxExperts)
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (GEMINI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_HOST, DEEPTHINK_*)
// 2. Project config (.deepthink.yaml in current directory or parent)
// 3. User config (~/.config/deepthink/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	cfg.Gemini.BaseURL = expandEnv(cfg.Gemini.BaseURL)
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Ollama.Host = expandEnv(cfg.Ollama.Host)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("DEEPTHINK")
	v.AutomaticEnv()

	v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "API_KEY")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")
	v.BindEnv("anthropic.aws_profile", "AWS_PROFILE")
	v.BindEnv("ollama.host", "OLLAMA_HOST")
	v.BindEnv("provider", "DEEPTHINK_PROVIDER")
	v.BindEnv("model", "DEEPTHINK_MODEL")
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveToPath(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveToPath writes the configuration to path.
func SaveToPath(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("provider", cfg.Provider)
	v.Set("model", cfg.Model)
	v.Set("gemini.api_key", cfg.Gemini.APIKey)
	v.Set("gemini.base_url", cfg.Gemini.BaseURL)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.base_url", cfg.Anthropic.BaseURL)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("ollama.host", cfg.Ollama.Host)
	v.Set("thinking.planning", string(cfg.Thinking.Planning))
	v.Set("thinking.expert", string(cfg.Thinking.Expert))
	v.Set("thinking.synthesis", string(cfg.Thinking.Synthesis))
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.initial_delay", cfg.Retry.InitialDelay.String())
	v.Set("retry.max_delay", cfg.Retry.MaxDelay.String())
	v.Set("engine.max_experts", cfg.Engine.MaxExperts)
	v.Set("engine.history_window", cfg.Engine.HistoryWindow)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("ollama.host", "")

	v.SetDefault("thinking.planning", string(LevelHigh))
	v.SetDefault("thinking.expert", string(LevelHigh))
	v.SetDefault("thinking.synthesis", string(LevelHigh))

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "500ms")
	v.SetDefault("retry.max_delay", "4s")

	v.SetDefault("engine.max_experts", 4)
	v.SetDefault("engine.history_window", 5)

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for deepthink.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "deepthink")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "deepthink")
	}
	return filepath.Join(home, ".config", "deepthink")
}

// DataDir returns the XDG data directory for deepthink (database, logs).
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "deepthink")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "deepthink")
	}
	return filepath.Join(home, ".local", "share", "deepthink")
}

// findProjectConfig searches for .deepthink.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".deepthink.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderGemini,
		Thinking: ThinkingConfig{
			Planning:  LevelHigh,
			Expert:    LevelHigh,
			Synthesis: LevelHigh,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     4 * time.Second,
		},
		Engine: EngineConfig{
			MaxExperts:    4,
			HistoryWindow: 5,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
