package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digestmail/digestmail/internal/app"
	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/logger"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "digest",
	Short:         "Compose and send personalized digest emails",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: config.yaml search path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// openApp loads config and wires the services. The caller must Close it.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, newLogger(cfg))
}

// openDraft wires the services and loads the saved draft
func openDraft() (*app.App, error) {
	a, err := openApp()
	if err != nil {
		return nil, err
	}
	if err := a.Compose.Load(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
