package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acolita/termdriver/internal/adapters/realdialog"
	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve terminal, secret and REST tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mcp.Version = Version
		slog.Info("starting termdriver MCP server", slog.String("version", Version))

		opts := []mcp.ServerOption{mcp.WithLogSecrets(logSecrets), mcp.WithConfigPath(configPath)}
		if dialog, tty, err := realdialog.NewTTY(); err != nil {
			slog.Info("no terminal for confirmations, terminal_host_add disabled", slog.String("error", err.Error()))
		} else {
			defer tty.Close()
			opts = append(opts, mcp.WithDialogProvider(dialog))
		}

		server := mcp.NewServer(cfg, opts...)

		if _, err := os.Stat(configPath); err == nil {
			watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
				if debug {
					newCfg.Logging.Level = "debug"
				}
				server.UpdateConfig(newCfg)
			})
			if err != nil {
				slog.Warn("config hot-reload disabled", slog.String("error", err.Error()))
			} else {
				defer watcher.Close()
				slog.Info("config hot-reload enabled", slog.String("path", configPath))
			}
		}

		err := server.Run(ctx)
		if ctx.Err() != nil {
			slog.Info("received shutdown signal")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
