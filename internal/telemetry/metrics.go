// Package telemetry exports runtime activity as otel metrics scraped via a
// Prometheus exporter, plus span helpers (StartSpan/EndSpan) that callers
// can use to bracket operations; the message bus and work distributor do
// not open spans themselves.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterScope = "acr.runtime"

// Metrics holds the instruments every component-event adapter increments.
// Construct one per process via NewMetrics and register its Registerer
// with an HTTP handler (promhttp.HandlerFor) to expose /metrics.
type Metrics struct {
	Registerer *prometheus.Registry

	agentsRegistered   metric.Int64Counter
	agentsCrashed      metric.Int64Counter
	heartbeatsMissed   metric.Int64Counter
	messagesQueued     metric.Int64Counter
	messagesFailed     metric.Int64Counter
	tasksClaimed       metric.Int64Counter
	tasksCompleted     metric.Int64Counter
	tasksFailed        metric.Int64Counter
	progressReported   metric.Int64Counter
	milestonesAchieved metric.Int64Counter
	planConflicts      metric.Int64Counter
}

// NewMetrics builds an otel MeterProvider backed by a fresh Prometheus
// registry and instantiates every counter the event adapters use.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("new prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterScope)

	m := &Metrics{Registerer: reg}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.agentsRegistered, "acr.agents.registered", "agents registered"},
		{&m.agentsCrashed, "acr.agents.crashed", "agents transitioned to crashed"},
		{&m.heartbeatsMissed, "acr.heartbeats.missed", "missed heartbeat ticks"},
		{&m.messagesQueued, "acr.messages.queued", "messages queued for delivery"},
		{&m.messagesFailed, "acr.messages.failed", "message deliveries that failed"},
		{&m.tasksClaimed, "acr.tasks.claimed", "tasks successfully claimed"},
		{&m.tasksCompleted, "acr.tasks.completed", "tasks completed"},
		{&m.tasksFailed, "acr.tasks.failed", "tasks permanently failed"},
		{&m.progressReported, "acr.progress.reported", "progress entries reported"},
		{&m.milestonesAchieved, "acr.milestones.achieved", "milestones reaching achieved"},
		{&m.planConflicts, "acr.plan.conflicts_detected", "concurrent plan-edit conflicts detected"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}
