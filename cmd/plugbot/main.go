// Package main provides the plugbot CLI entry point.
// plugbot is a chat bot whose commands come from per-chat switchable plugins.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plugbot/internal/bot"
	"plugbot/internal/config"
	"plugbot/internal/logger"
	"plugbot/internal/version"
)

var (
	configFile string
	testMode   bool

	v   = config.NewViper()
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plugbot",
	Short: "plugbot - plugin-driven Telegram bot",
	Long: `plugbot answers slash commands in Telegram chats. Commands are provided by
plugins that chat administrators can disable and enable per chat.`,
	RunE: runBot, // Default behavior is to run the bot
}

// runCmd is the explicit version of the default behavior
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Telegram and serve commands",
	RunE:  runBot,
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := *cfg
		if shown.Token != "" {
			shown.Token = "<redacted>"
		}
		if shown.Store.Redis.Password != "" {
			shown.Store.Redis.Password = "<redacted>"
		}
		out, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: config.yaml in the working or user config directory)")
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("store", "", "Key-value backend (memory|redis|sqlite)")
	flags.BoolVar(&testMode, "test-mode", false, "Disable log timestamps for deterministic output")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"log.level":     "log-level",
		"log.file":      "log-file",
		"store.backend": "store",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	// Load configuration and configure the logger before any command execution
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	var err error
	cfg, err = config.Load(v, config.Options{ConfigFile: configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.File, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	logger.Info("Starting plugbot", "version", version.GetFormattedVersion())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.Start(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	if err := b.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
