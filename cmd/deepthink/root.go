package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/deepthink/internal/config"
)

var (
	flagVerbose  bool
	flagConfig   string
	flagModel    string
	flagProvider string
)

// logFile receives log output when --verbose is not set.
var logFile *os.File

var rootCmd = &cobra.Command{
	Use:   "deepthink",
	Short: "Multi-expert question answering",
	Long: `deepthink answers a question by asking a manager model to plan a panel
of specialist experts, running them in parallel with a primary responder,
and synthesizing everything into one final answer.

With no subcommand, starts an interactive chat.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), "")
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print engine logs to stderr")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: project .deepthink.yaml, then user config)")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Model override")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Provider override: gemini, anthropic, or ollama")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(serveMCPCmd)
	rootCmd.AddCommand(versionCmd)
}

// setupLogging keeps the terminal for the answer: log output goes to
// dataDir/logs/deepthink.log unless --verbose is set.
func setupLogging() {
	if flagVerbose {
		log.SetOutput(os.Stderr)
		return
	}
	dir := filepath.Join(config.DataDir(), "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.SetOutput(io.Discard)
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "deepthink.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.SetOutput(io.Discard)
		return
	}
	logFile = f
	log.SetOutput(f)
}

// loadConfig loads configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFromPath(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
