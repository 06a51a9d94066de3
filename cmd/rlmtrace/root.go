package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rlmtrace/internal/config"
	"rlmtrace/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "rlmtrace",
	Short:         "Reconstruct and inspect recursive language-model execution traces",
	Long:          "rlmtrace consumes the event stream of a recursive language-model execution\nservice and maintains a live, queryable trace of the run: the iteration tree,\nextracted code, REPL results and the final answer.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.rlmtrace.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug log threshold: debug, info, warn, error")
	rootCmd.AddCommand(watchCmd, serveCmd, replayCmd, versionCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	var opts []config.Option
	if flagConfig != "" {
		opts = append(opts, config.WithConfigPath(flagConfig))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return cfg, nil
}
