package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/deepthink/internal/config"
	"github.com/ShayCichocki/deepthink/internal/mcpserver"
	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the deep_think tool over MCP stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing a single
tool, deep_think, that answers a query with the full expert pipeline.

Logs never go to stdout; use --verbose to send them to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newClient(ctx, cfg)
		if err != nil {
			return err
		}
		logger := orchestrator.NewDebugLoggerForDir(config.DataDir())
		defer logger.Close()

		model := cfg.ResolvedModel()
		server := mcpserver.New(newEngine(client, cfg, logger), mcpserver.Config{
			Model:   model,
			Budgets: budgetsFor(cfg, model),
		})
		return server.Run(ctx)
	},
}
