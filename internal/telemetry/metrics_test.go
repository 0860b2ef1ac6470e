package telemetry

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestNewMetricsRegistersCounters(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.agentsRegistered.Add(context.Background(), 1)
	m.agentsRegistered.Add(context.Background(), 2)

	families, err := m.Registerer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() != "acr_agents_registered" {
			continue
		}
		found = true
		var total float64
		for _, metric := range f.GetMetric() {
			total += counterValue(metric)
		}
		if total != 3 {
			t.Fatalf("expected counter total 3, got %v", total)
		}
	}
	if !found {
		t.Fatalf("expected acr_agents_registered metric family in gathered output")
	}
}

func counterValue(m *dto.Metric) float64 {
	if c := m.GetCounter(); c != nil {
		return c.GetValue()
	}
	return 0
}
