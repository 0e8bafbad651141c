package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the selected provider needs a key and none is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// envKeys lists the environment variables consulted per provider, in order.
var envKeys = map[string][]string{
	ProviderGemini:    {"GEMINI_API_KEY", "API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// NeedsAPIKey reports whether the configured provider authenticates with a key.
// Anthropic through Bedrock uses AWS credentials instead.
func (c *Config) NeedsAPIKey() bool {
	switch c.Provider {
	case ProviderGemini:
		return true
	case ProviderAnthropic:
		return !c.Anthropic.UseBedrock
	default:
		return false
	}
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: environment variables, config file.
func GetAPIKey(cfg *Config) (string, error) {
	key, _ := lookupKey(cfg)
	if key == "" {
		return "", fmt.Errorf("%w for provider %s", ErrNoAPIKey, cfg.Provider)
	}
	return key, nil
}

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	_, src := lookupKey(cfg)
	return src
}

func lookupKey(cfg *Config) (string, KeySource) {
	if cfg == nil {
		return "", KeySourceNone
	}
	for _, name := range envKeys[cfg.Provider] {
		if key := os.Getenv(name); key != "" {
			return key, KeySourceEnv
		}
	}

	var configured string
	switch cfg.Provider {
	case ProviderGemini:
		configured = cfg.Gemini.APIKey
	case ProviderAnthropic:
		configured = cfg.Anthropic.APIKey
	}
	key := os.ExpandEnv(configured)
	if key != "" && !strings.HasPrefix(key, "${") {
		return key, KeySourceConfig
	}
	return "", KeySourceNone
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}
