package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	sharedconfig "acr/internal/shared/config"
)

var (
	flagConfigPath  string
	flagNodeID      string
	flagLogLevel    string
	flagMetricsAddr string
	flagTraceAddr   string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "acr",
		Short:         "Agent Coordination Runtime",
		Long:          "acr runs the coordination runtime: agent liveness, the priority message bus, task distribution, progress tracking, and plan synchronization, composed into a single process.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a YAML runtime config file")
	root.PersistentFlags().StringVar(&flagNodeID, "node-id", "", "node identity for plan-sync vector clocks (overrides config)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	root.PersistentFlags().StringVar(&flagTraceAddr, "trace-addr", "", "OTLP/HTTP collector endpoint for spans (empty disables export)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newConfigDumpCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func loadRuntimeConfig() (sharedconfig.RuntimeConfig, error) {
	cfg, err := sharedconfig.Load(flagConfigPath)
	if err != nil {
		return sharedconfig.RuntimeConfig{}, err
	}
	if flagNodeID != "" {
		cfg.NodeID = flagNodeID
	}
	return cfg, nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
