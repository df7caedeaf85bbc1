package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/acolita/termdriver/internal/config"
	"github.com/acolita/termdriver/internal/logging"
)

const defaultEnvFile = ".env"

var (
	configFlag string
	envFile    string
	debug      bool

	// Set by the root pre-run.
	cfg        *config.Config
	configPath string
	logSecrets = &logging.Secrets{}
)

var rootCmd = &cobra.Command{
	Use:           "termdriver",
	Short:         "Drive interactive terminal sessions",
	Long:          `termdriver runs commands on interactive shells (SSH or local PTY), answers their questions and classifies the output.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to configuration file (default $XDG_CONFIG_HOME/termdriver/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setup loads the dotenv file, the configuration and the logger.
func setup() error {
	if err := godotenv.Load(envFile); err != nil {
		if envFile != defaultEnvFile || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	configPath = configFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c

	logging.Setup(logging.Options{
		Level:    c.Logging.Level,
		Format:   c.Logging.Format,
		Sanitize: c.Logging.Sanitize,
		Secrets:  logSecrets,
	})
	slog.Debug("configuration loaded", slog.String("path", configPath))
	return nil
}
