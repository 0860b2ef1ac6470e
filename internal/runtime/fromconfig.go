package runtime

import (
	sharedconfig "acr/internal/shared/config"
)

// FromRuntimeConfig maps a loaded shared/config.RuntimeConfig onto a
// runtime.Config, leaving hooks (Publish, IsTerminal, event sinks, Clock,
// Logger) for the caller to set afterward.
func FromRuntimeConfig(rc sharedconfig.RuntimeConfig) Config {
	cfg := Config{NodeID: rc.NodeID}

	cfg.Registry.HeartbeatInterval = rc.HeartbeatInterval
	cfg.Registry.MissedThreshold = rc.MissedThreshold
	cfg.Registry.CrashedRetention = rc.CrashedRetention

	cfg.MessageBus.ProcessingTick = rc.ProcessingTick
	cfg.MessageBus.DefaultRequestTimeout = rc.DefaultRequestTimeout
	cfg.MessageBus.MessageExpiry = rc.MessageExpiry
	cfg.MessageBus.HistorySize = rc.HistorySize

	cfg.Distributor.ClaimTimeout = rc.ClaimTimeout
	cfg.Distributor.ProgressTimeout = rc.ProgressTimeout
	cfg.Distributor.MaxRetries = rc.MaxRetries

	cfg.Tracker.MaxHistoryPerTask = rc.MaxHistoryPerTask

	cfg.PlanSync.NodeID = rc.NodeID

	return cfg
}
