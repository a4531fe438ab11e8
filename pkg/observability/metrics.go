package observability

import (
	"time"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loom"

// Metrics holds the editor collectors.
type Metrics struct {
	graphEvents    *prometheus.CounterVec // By topic
	checks         *prometheus.CounterVec // By result and reason
	imports        *prometheus.CounterVec // By status (ok/invalid)
	importDuration prometheus.Histogram
	documentWrites *prometheus.CounterVec // By operation
	librarySize    prometheus.Gauge
	subscribers    prometheus.Gauge
	dropped        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		graphEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "events_total",
			Help:      "Graph bus events raised while editing",
		}, []string{"topic"}),

		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "checks_total",
			Help:      "Connection checks by verdict",
		}, []string{"result", "reason"}), // result: allowed, rejected

		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "imports_total",
			Help:      "Documents imported into live graphs",
		}, []string{"status"}),

		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "import_duration_seconds",
			Help:      "Time to import a document into a live graph",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		documentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "writes_total",
			Help:      "Stored document mutations",
		}, []string{"operation"}),

		librarySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "library",
			Name:      "definitions",
			Help:      "Operator definitions currently loaded",
		}),

		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "changes",
			Name:      "subscribers",
			Help:      "Active change subscribers",
		}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "changes",
			Name:      "dropped_total",
			Help:      "Changes dropped because a subscriber was too slow",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.graphEvents, m.checks, m.imports, m.importDuration,
		m.documentWrites, m.librarySize, m.subscribers, m.dropped,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveGraph counts every event raised on g until the returned function
// is called.
func (m *Metrics) ObserveGraph(g *flow.Graph) func() {
	if m == nil {
		return func() {}
	}
	return g.Subscribe(flow.TopicAny, func(e flow.Event) {
		m.graphEvents.WithLabelValues(flow.TopicName(e.Topic)).Inc()
	})
}

// RecordCheck records the verdict of a connection check.
func (m *Metrics) RecordCheck(res domain.CheckResult) {
	if m == nil {
		return
	}
	if res.Allowed {
		m.checks.WithLabelValues("allowed", "").Inc()
		return
	}
	m.checks.WithLabelValues("rejected", res.Reason).Inc()
}

// RecordImport records one document import.
func (m *Metrics) RecordImport(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "invalid"
	}
	m.imports.WithLabelValues(status).Inc()
	m.importDuration.Observe(d.Seconds())
}

// RecordWrite records a stored document mutation.
func (m *Metrics) RecordWrite(operation string) {
	if m == nil {
		return
	}
	m.documentWrites.WithLabelValues(operation).Inc()
}

// SetLibrarySize sets the number of loaded definitions.
func (m *Metrics) SetLibrarySize(n int) {
	if m == nil {
		return
	}
	m.librarySize.Set(float64(n))
}

// SubscriberAdded tracks a new change subscriber.
func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

// SubscriberRemoved tracks a departed change subscriber.
func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

// ChangeDropped counts a change a slow subscriber never received.
func (m *Metrics) ChangeDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}
