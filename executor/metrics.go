package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records execution activity for Prometheus scraping. All
// methods are safe on a nil receiver, which disables collection.
type Metrics struct {
	started   prometheus.Counter
	completed prometheus.Counter
	failed    prometheus.Counter
	cancelled prometheus.Counter
	active    prometheus.Gauge

	executionDuration *prometheus.HistogramVec
	nodeDuration      *prometheus.HistogramVec
}

// NewMetrics registers execution metrics with reg. A nil registerer
// falls back to the Prometheus default.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "executions_started_total",
			Help:      "Executions admitted by Start",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "executions_completed_total",
			Help:      "Executions that reached workflow:completed",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "executions_failed_total",
			Help:      "Executions that ended in workflow:failed",
		}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "executions_cancelled_total",
			Help:      "Executions cancelled before completing",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "active_executions",
			Help:      "Executions not yet in a terminal status",
		}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Wall time from start to terminal status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowscript",
			Subsystem: "executor",
			Name:      "node_duration_seconds",
			Help:      "Wall time of individual node invocations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node", "status"}),
	}
}

// ExecutionStarted counts an admitted execution.
func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
	m.active.Inc()
}

// ExecutionFinished records the terminal status and run duration of
// one execution.
func (m *Metrics) ExecutionFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	switch status {
	case StatusCompleted:
		m.completed.Inc()
	case StatusFailed:
		m.failed.Inc()
	case StatusCancelled:
		m.cancelled.Inc()
	}
	m.active.Dec()
	m.executionDuration.WithLabelValues(status).Observe(d.Seconds())
}

// NodeFinished records one node invocation.
func (m *Metrics) NodeFinished(node, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node, status).Observe(d.Seconds())
}
