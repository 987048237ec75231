package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of one analysis run
type Metrics struct {
	// Ingestion metrics
	EventsDecoded *prometheus.CounterVec
	BytesRead     prometheus.Counter
	Sources       *prometheus.CounterVec

	// Anomaly metrics
	Anomalies *prometheus.CounterVec

	// Analysis metrics
	ActivationDuration prometheus.Histogram
	StageDuration      *prometheus.HistogramVec
	GraphEntities      *prometheus.GaugeVec

	registry *prometheus.Registry

	// Snapshot for the run summary - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the run summary
type Snapshot struct {
	Events      int64
	Anomalies   int64
	Activations int64
	Sources     map[string]int64 // by outcome
}

// NewMetrics creates a metrics collector with its own registry, so that
// several runs in one process never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		snapshot: Snapshot{Sources: make(map[string]int64)},

		EventsDecoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtrace_events_decoded_total",
				Help: "Total number of trace events decoded",
			},
			[]string{"kind"},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "flowtrace_bytes_read_total",
				Help: "Total number of trace bytes consumed",
			},
		),
		Sources: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtrace_sources_total",
				Help: "Trace sources by outcome",
			},
			[]string{"outcome"},
		),

		Anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtrace_anomalies_total",
				Help: "Recoverable data anomalies",
			},
			[]string{"category", "reason"},
		),

		ActivationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowtrace_activation_duration_seconds",
				Help:    "Matched operator activation durations",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
			},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowtrace_stage_duration_seconds",
				Help:    "Wall time spent per pipeline stage",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		GraphEntities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowtrace_graph_entities",
				Help: "Entities in the reconstructed graph",
			},
			[]string{"type"},
		),
	}
	return m
}

// AddEvents records n decoded events of one kind
func (m *Metrics) AddEvents(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsDecoded.WithLabelValues(kind).Add(float64(n))
	m.mu.Lock()
	m.snapshot.Events += int64(n)
	m.mu.Unlock()
}

// AddBytes records consumed input bytes
func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRead.Add(float64(n))
}

// RecordSource records the outcome of reading one source
func (m *Metrics) RecordSource(outcome string) {
	if m == nil {
		return
	}
	m.Sources.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	m.snapshot.Sources[outcome]++
	m.mu.Unlock()
}

// AddAnomalies records n anomalies of one category and reason
func (m *Metrics) AddAnomalies(category, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Anomalies.WithLabelValues(category, reason).Add(float64(n))
	m.mu.Lock()
	m.snapshot.Anomalies += int64(n)
	m.mu.Unlock()
}

// ObserveActivation records one matched activation
func (m *Metrics) ObserveActivation(d time.Duration) {
	if m == nil {
		return
	}
	m.ActivationDuration.Observe(d.Seconds())
	m.mu.Lock()
	m.snapshot.Activations++
	m.mu.Unlock()
}

// SetGraphEntities sets the size of the reconstructed graph
func (m *Metrics) SetGraphEntities(nodes, subgraphs, edges int) {
	if m == nil {
		return
	}
	m.GraphEntities.WithLabelValues("node").Set(float64(nodes))
	m.GraphEntities.WithLabelValues("subgraph").Set(float64(subgraphs))
	m.GraphEntities.WithLabelValues("edge").Set(float64(edges))
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.Sources = make(map[string]int64, len(m.snapshot.Sources))
	for k, v := range m.snapshot.Sources {
		s.Sources[k] = v
	}
	return s
}

// WriteTextfile writes all metrics in the text exposition format, for
// collection by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Timer measures stage duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	stage   string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, stage string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		stage:   stage,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.StageDuration.WithLabelValues(t.stage).Observe(duration.Seconds())
	}
	return duration
}
