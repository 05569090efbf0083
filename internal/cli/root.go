// Package cli provides the command-line interface for hnpager.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/hnpager/internal/config"
	"github.com/ppiankov/hnpager/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	configDir string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:          "hnpager",
	Short:        "Page a Telegram chat about new Hacker News stories",
	Long:         "hnpager searches Hacker News for recent stories matching a keyword, summarizes each linked page, and sends one Telegram message per story.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("hnpager %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with credentials (ignored if missing)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Canceling ctx stops a scheduled run.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the env file and then the config directory.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}
