// Package metrics exposes Prometheus collectors for the admin server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rentease_admin"

type Metrics struct {
	Mutations  *prometheus.CounterVec
	Loads      *prometheus.CounterVec
	Tasks      *prometheus.CounterVec
	Workspaces prometheus.Gauge
	Requests   *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Moderation actions dispatched to the data store.",
		}, []string{"resource", "action", "outcome"}),
		Loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Collection fetches performed by dashboard pages.",
		}, []string{"resource", "outcome"}),
		Tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_tasks_total",
			Help:      "Fire-and-forget notification and push tasks.",
		}, []string{"task", "outcome"}),
		Workspaces: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspaces",
			Help:      "Admin sessions with a mounted dashboard.",
		}),
		Requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) ObserveMutation(resource, action string, err error) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(resource, action, outcome(err)).Inc()
}

func (m *Metrics) ObserveLoad(resource string, err error) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(resource, outcome(err)).Inc()
}

// ObserveTask counts a finished side-effect task. A dropped task is counted
// with outcome "dropped".
func (m *Metrics) ObserveTask(task string, err error, dropped bool) {
	if m == nil {
		return
	}
	o := outcome(err)
	if dropped {
		o = "dropped"
	}
	m.Tasks.WithLabelValues(task, o).Inc()
}

func (m *Metrics) SetWorkspaces(n int) {
	if m == nil {
		return
	}
	m.Workspaces.Set(float64(n))
}

func (m *Metrics) ObserveRequest(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, statusClass(status)).Observe(seconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
