// Package config loads the tunables for a composed runtime from built-in
// defaults, a YAML file, and environment variables, in that ascending
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RuntimeConfig is the subset of acr/internal/runtime.Config that is
// reasonable to externalize: node identity and the per-component timing
// defaults. Hooks (Publish, IsTerminal, event sinks) are always wired in
// code, never from a file.
type RuntimeConfig struct {
	NodeID string `mapstructure:"node_id" yaml:"node_id"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	MissedThreshold   int           `mapstructure:"missed_threshold" yaml:"missed_threshold"`
	CrashedRetention  time.Duration `mapstructure:"crashed_retention" yaml:"crashed_retention"`

	ProcessingTick        time.Duration `mapstructure:"processing_tick" yaml:"processing_tick"`
	DefaultRequestTimeout time.Duration `mapstructure:"default_request_timeout" yaml:"default_request_timeout"`
	MessageExpiry         time.Duration `mapstructure:"message_expiry" yaml:"message_expiry"`
	HistorySize           int           `mapstructure:"history_size" yaml:"history_size"`

	ClaimTimeout      time.Duration `mapstructure:"claim_timeout" yaml:"claim_timeout"`
	ProgressTimeout   time.Duration `mapstructure:"progress_timeout" yaml:"progress_timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	MaxHistoryPerTask int           `mapstructure:"max_history_per_task" yaml:"max_history_per_task"`
}

// Defaults returns the built-in defaults for every tunable.
func Defaults() RuntimeConfig {
	return RuntimeConfig{
		HeartbeatInterval:     30 * time.Second,
		MissedThreshold:       3,
		CrashedRetention:      time.Hour,
		ProcessingTick:        100 * time.Millisecond,
		DefaultRequestTimeout: 30 * time.Second,
		MessageExpiry:         time.Hour,
		HistorySize:           1000,
		ClaimTimeout:          5 * time.Minute,
		ProgressTimeout:       10 * time.Minute,
		MaxRetries:            3,
		MaxHistoryPerTask:     1000,
	}
}

// envPrefix is the environment-variable namespace: ACR_HEARTBEAT_INTERVAL,
// ACR_NODE_ID, and so on.
const envPrefix = "ACR"

// Load resolves a RuntimeConfig from defaults, overlaid by path (if
// non-empty and present), overlaid by ACR_-prefixed environment variables.
// A missing path is not an error: defaults and environment still apply.
func Load(path string) (RuntimeConfig, error) {
	v := viper.New()
	for key, value := range defaultsAsMap(Defaults()) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return RuntimeConfig{}, fmt.Errorf("read runtime config %q: %w", path, err)
			}
		}
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("unmarshal runtime config: %w", err)
	}
	return cfg, nil
}

func defaultsAsMap(cfg RuntimeConfig) map[string]any {
	return map[string]any{
		"node_id":                 cfg.NodeID,
		"heartbeat_interval":      cfg.HeartbeatInterval,
		"missed_threshold":        cfg.MissedThreshold,
		"crashed_retention":       cfg.CrashedRetention,
		"processing_tick":         cfg.ProcessingTick,
		"default_request_timeout": cfg.DefaultRequestTimeout,
		"message_expiry":          cfg.MessageExpiry,
		"history_size":            cfg.HistorySize,
		"claim_timeout":           cfg.ClaimTimeout,
		"progress_timeout":        cfg.ProgressTimeout,
		"max_retries":             cfg.MaxRetries,
		"max_history_per_task":    cfg.MaxHistoryPerTask,
	}
}
