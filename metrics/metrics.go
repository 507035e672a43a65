// Package metrics holds the Prometheus instruments for the tracking and
// reporting paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradeposter"

// Metrics is safe to share between engines and the dispatcher. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ExecutionsObserved *prometheus.CounterVec
	OrdersObserved     *prometheus.CounterVec
	CyclesOpened       *prometheus.CounterVec
	CyclesClosed       *prometheus.CounterVec
	TradesEmitted      *prometheus.CounterVec
	IncompleteCycles   *prometheus.CounterVec
	HandlerPanics      prometheus.Counter
	DispatchResults    *prometheus.CounterVec
	JobsDropped        prometheus.Counter
	QueueDepth         prometheus.Gauge
}

// New registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	pair := []string{"account", "instrument"}

	return &Metrics{
		ExecutionsObserved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "executions_observed_total",
			Help:      "Fills delivered to a tracker",
		}, pair),
		OrdersObserved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "orders_observed_total",
			Help:      "Order updates delivered to a tracker",
		}, pair),
		CyclesOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "cycles_opened_total",
			Help:      "Flat to open transitions",
		}, pair),
		CyclesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "cycles_closed_total",
			Help:      "Open to flat transitions",
		}, pair),
		TradesEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "trades_emitted_total",
			Help:      "Trade records handed to the reporting sink",
		}, pair),
		IncompleteCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "incomplete_cycles_total",
			Help:      "Closed cycles without both entry and exit fills",
		}, pair),
		HandlerPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "handler_panics_total",
			Help:      "Panics recovered at the event handler boundary",
		}),
		DispatchResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "dispatch_results_total",
			Help:      "Delivery outcomes per stage",
		}, []string{"stage", "result"}),
		JobsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "jobs_dropped_total",
			Help:      "Report jobs dropped because the queue was full or closed",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "queue_depth",
			Help:      "Report jobs waiting for the worker",
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Execution(account, instr string) {
	if m != nil {
		m.ExecutionsObserved.WithLabelValues(account, instr).Inc()
	}
}

func (m *Metrics) Order(account, instr string) {
	if m != nil {
		m.OrdersObserved.WithLabelValues(account, instr).Inc()
	}
}

func (m *Metrics) Opened(account, instr string) {
	if m != nil {
		m.CyclesOpened.WithLabelValues(account, instr).Inc()
	}
}

func (m *Metrics) Closed(account, instr string) {
	if m != nil {
		m.CyclesClosed.WithLabelValues(account, instr).Inc()
	}
}

func (m *Metrics) Emitted(account, instr string) {
	if m != nil {
		m.TradesEmitted.WithLabelValues(account, instr).Inc()
	}
}

func (m *Metrics) Incomplete(account, instr string) {
	if m != nil {
		m.IncompleteCycles.WithLabelValues(account, instr).Inc()
	}
}

func (m *Metrics) Panic() {
	if m != nil {
		m.HandlerPanics.Inc()
	}
}

// Dispatch records one stage outcome ("ok", "error" or "skipped").
func (m *Metrics) Dispatch(stage, result string) {
	if m != nil {
		m.DispatchResults.WithLabelValues(stage, result).Inc()
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.JobsDropped.Inc()
	}
}

func (m *Metrics) Queue(depth int) {
	if m != nil {
		m.QueueDepth.Set(float64(depth))
	}
}
