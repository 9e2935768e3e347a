package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorRecordsAndLints(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordStep(16 * time.Millisecond)
	m.RecordPopulation(120, 3, 4500, 77)

	if got := testutil.ToFloat64(m.stepsTotal); got != 1 {
		t.Errorf("steps total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.bodyCount); got != 120 {
		t.Errorf("body count = %v, want 120", got)
	}
	if got := testutil.ToFloat64(m.excludedBodies); got != 3 {
		t.Errorf("excluded bodies = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.forceCalculations); got != 4500 {
		t.Errorf("force calculations = %v, want 4500", got)
	}
	if got := testutil.ToFloat64(m.octreeNodes); got != 77 {
		t.Errorf("octree nodes = %v, want 77", got)
	}

	collectors := []prometheus.Collector{
		m.stepDuration,
		m.stepsTotal,
		m.bodyCount,
		m.excludedBodies,
		m.forceCalculations,
		m.octreeNodes,
	}
	for _, c := range collectors {
		problems, err := testutil.CollectAndLint(c)
		if err != nil {
			t.Fatalf("lint: %v", err)
		}
		for _, p := range problems {
			t.Errorf("metric %s: %s", p.Metric, p.Text)
		}
	}
}
