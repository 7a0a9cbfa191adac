// Package cli defines the empathos command line tool.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"empathos.app/relay/common/logger"
	"empathos.app/relay/core/config"
)

var (
	verbose bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "empathos",
	Short: "Draft empathic replies to insurance customers",
	Long: `Empathos drafts a reply to a customer message, reviews it and
optionally translates the reviewed reply, using a hosted completion service.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.ServiceTypeCLI)
		if err != nil {
			return err
		}
		loadedConfig = cfg
		setupLogging(cfg)
		return nil
	},
}

var loadedConfig config.Config

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging keeps stdout for the reply. Logs go to stderr and stay quiet
// unless --verbose is set.
func setupLogging(cfg config.Config) {
	if verbose {
		slog.SetDefault(slog.New(logger.NewHandler(cfg, os.Stderr)))
		return
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	slog.SetDefault(slog.New(logger.NewTraceHandler(h)))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every completion call to stderr")

	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(languagesCmd)
}
