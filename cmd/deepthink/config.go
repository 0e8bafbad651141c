package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/deepthink/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify deepthink configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/deepthink/config.yaml
Project-specific overrides can be placed in .deepthink.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration and data locations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("user config:    %s\n", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none)"
		}
		fmt.Printf("project config: %s\n", project)
		fmt.Printf("data dir:       %s\n", config.DataDir())
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
}

// configKeys lists the keys shown by 'deepthink config', in display order.
var configKeys = []string{
	"provider",
	"model",
	"gemini.api_key",
	"gemini.base_url",
	"anthropic.api_key",
	"anthropic.base_url",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"ollama.host",
	"thinking.planning",
	"thinking.expert",
	"thinking.synthesis",
	"retry.max_attempts",
	"retry.initial_delay",
	"retry.max_delay",
	"engine.max_experts",
	"engine.history_window",
	"tui.refresh_rate",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	model := cfg.ResolvedModel()
	fmt.Printf("\n(resolved model: %s, thinking levels supported: %v)\n", model, config.ValidLevels(model))
	if cfg.NeedsAPIKey() {
		fmt.Printf("(api key source: %s)\n", config.GetAPIKeySource(cfg))
	}
}

// getConfigValue returns the string form of a configuration value.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "provider":
		return cfg.Provider, nil
	case "model":
		return cfg.Model, nil
	case "gemini.api_key":
		return config.MaskAPIKey(cfg.Gemini.APIKey), nil
	case "gemini.base_url":
		return cfg.Gemini.BaseURL, nil
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.base_url":
		return cfg.Anthropic.BaseURL, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "ollama.host":
		return cfg.Ollama.Host, nil
	case "thinking.planning":
		return string(cfg.Thinking.Planning), nil
	case "thinking.expert":
		return string(cfg.Thinking.Expert), nil
	case "thinking.synthesis":
		return string(cfg.Thinking.Synthesis), nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "retry.initial_delay":
		return cfg.Retry.InitialDelay.String(), nil
	case "retry.max_delay":
		return cfg.Retry.MaxDelay.String(), nil
	case "engine.max_experts":
		return strconv.Itoa(cfg.Engine.MaxExperts), nil
	case "engine.history_window":
		return strconv.Itoa(cfg.Engine.HistoryWindow), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue parses value into the field named by key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "gemini.api_key":
		cfg.Gemini.APIKey = value
	case "gemini.base_url":
		cfg.Gemini.BaseURL = value
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.base_url":
		cfg.Anthropic.BaseURL = value
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = strconv.ParseBool(value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "ollama.host":
		cfg.Ollama.Host = value
	case "thinking.planning":
		cfg.Thinking.Planning, err = config.ParseLevel(value)
	case "thinking.expert":
		cfg.Thinking.Expert, err = config.ParseLevel(value)
	case "thinking.synthesis":
		cfg.Thinking.Synthesis, err = config.ParseLevel(value)
	case "retry.max_attempts":
		cfg.Retry.MaxAttempts, err = strconv.Atoi(value)
	case "retry.initial_delay":
		cfg.Retry.InitialDelay, err = time.ParseDuration(value)
	case "retry.max_delay":
		cfg.Retry.MaxDelay, err = time.ParseDuration(value)
	case "engine.max_experts":
		cfg.Engine.MaxExperts, err = strconv.Atoi(value)
	case "engine.history_window":
		cfg.Engine.HistoryWindow, err = strconv.Atoi(value)
	case "tui.refresh_rate":
		cfg.TUI.RefreshRate, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// setConfigKey sets a configuration value and saves the config. Thinking
// levels the resolved model cannot use are adjusted before saving.
func setConfigKey(cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	model := cfg.ResolvedModel()
	if cfg.Thinking.Normalize(model) {
		color.Yellow("⚠ thinking levels adjusted for %s: planning=%s expert=%s synthesis=%s",
			model, cfg.Thinking.Planning, cfg.Thinking.Expert, cfg.Thinking.Synthesis)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("%s Set %s\n", color.GreenString("✓"), key)
	return nil
}
