package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/deepthink/internal/config"
	"github.com/ShayCichocki/deepthink/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the run in progress",
	Long: `Ask a running 'deepthink ask' or 'deepthink chat' to stop its current
run. Partial results are discarded and the process returns to idle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signals.SendStop(signals.Dir(config.DataDir())); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		fmt.Printf("%s Stop requested\n", color.GreenString("✓"))
		return nil
	},
}
