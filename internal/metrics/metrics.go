// Package metrics exports colony progress as prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/hive/internal/optimization"
)

const namespace = "hive"

// Metrics holds the collectors shared by every run.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	iterations   *prometheus.CounterVec
	improvements *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	scoutResets  *prometheus.CounterVec
	bestValue    *prometheus.GaugeVec
	activeRuns   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished optimization runs by objective and status.",
		}, []string{"objective", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of optimization runs.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"objective"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed employed/onlooker/scout cycles.",
		}, []string{"objective"}),
		improvements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvements_total",
			Help:      "Accepted candidates by phase.",
		}, []string{"objective", "phase"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected candidates by phase.",
		}, []string{"objective", "phase"}),
		scoutResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scout_resets_total",
			Help:      "Food sources abandoned and redrawn by scouts.",
		}, []string{"objective"}),
		bestValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_objective_value",
			Help:      "Best objective value of the most recently reported iteration.",
		}, []string{"objective"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runs, m.runDuration, m.iterations, m.improvements,
		m.rejections, m.scoutResets, m.bestValue, m.activeRuns,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observer returns an observer that records iterations under objective.
func (m *Metrics) Observer(objective string) optimization.Observer {
	iterations := m.iterations.WithLabelValues(objective)
	resets := m.scoutResets.WithLabelValues(objective)
	best := m.bestValue.WithLabelValues(objective)
	employedOK := m.improvements.WithLabelValues(objective, "employed")
	onlookerOK := m.improvements.WithLabelValues(objective, "onlooker")
	employedNo := m.rejections.WithLabelValues(objective, "employed")
	onlookerNo := m.rejections.WithLabelValues(objective, "onlooker")

	return optimization.ObserverFunc(func(it optimization.Iteration) {
		iterations.Inc()
		resets.Add(float64(it.ScoutResets))
		best.Set(it.Best.Value)
		employedOK.Add(float64(it.Employed.Improvements))
		onlookerOK.Add(float64(it.Onlooker.Improvements))
		employedNo.Add(float64(it.Employed.Rejections))
		onlookerNo.Add(float64(it.Onlooker.Rejections))
	})
}

// RunStarted marks a run as executing and returns the function that
// records its end.
func (m *Metrics) RunStarted(objective string) func(status string) {
	start := time.Now()
	m.activeRuns.Inc()
	return func(status string) {
		m.activeRuns.Dec()
		m.runs.WithLabelValues(objective, status).Inc()
		m.runDuration.WithLabelValues(objective).Observe(time.Since(start).Seconds())
	}
}
