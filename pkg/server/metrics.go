package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsCollector struct {
	stepDuration      prometheus.Histogram
	stepsTotal        prometheus.Counter
	bodyCount         prometheus.Gauge
	excludedBodies    prometheus.Gauge
	forceCalculations prometheus.Gauge
	octreeNodes       prometheus.Gauge
}

func NewMetricsCollector() *MetricsCollector {
	m := &MetricsCollector{
		stepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "simulation_step_duration_seconds",
				Help: "Time spent advancing the simulation one step",
			},
		),
		stepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "simulation_steps_total",
				Help: "Total number of completed simulation steps",
			},
		),
		bodyCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simulation_bodies",
				Help: "Number of bodies in the current population",
			},
		),
		excludedBodies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simulation_excluded_bodies",
				Help: "Cumulative bodies excluded from steps for non-finite state",
			},
		),
		forceCalculations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simulation_force_calculations",
				Help: "Cumulative point-mass force evaluations performed by the octree",
			},
		),
		octreeNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simulation_octree_nodes",
				Help: "Node count of the most recent octree build",
			},
		),
	}

	prometheus.MustRegister(m.stepDuration)
	prometheus.MustRegister(m.stepsTotal)
	prometheus.MustRegister(m.bodyCount)
	prometheus.MustRegister(m.excludedBodies)
	prometheus.MustRegister(m.forceCalculations)
	prometheus.MustRegister(m.octreeNodes)

	return m
}

func (m *MetricsCollector) RecordStep(duration time.Duration) {
	m.stepDuration.Observe(duration.Seconds())
	m.stepsTotal.Inc()
}

func (m *MetricsCollector) RecordPopulation(bodies int, excluded uint64, forceCalcs uint64, nodes int) {
	m.bodyCount.Set(float64(bodies))
	m.excludedBodies.Set(float64(excluded))
	m.forceCalculations.Set(float64(forceCalcs))
	m.octreeNodes.Set(float64(nodes))
}
