package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the scheduling service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	pushes          *prometheus.CounterVec
	instances       *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	emails          *prometheus.CounterVec
}

// New registers the collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_transitions_total",
		Help: "Assignment transitions by action and outcome",
	}, []string{"action", "outcome"})

	pushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_notifications_total",
		Help: "Push notification attempts by outcome",
	}, []string{"outcome"})

	instances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_instances_materialized_total",
		Help: "Instances returned by week materialization, by kind",
	}, []string{"kind"})

	reminders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shift_reminders_total",
		Help: "Shift reminders by outcome",
	}, []string{"outcome"})

	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_total",
		Help: "Queued emails handled by the mail worker, by outcome",
	}, []string{"outcome"})

	registry.MustRegister(
		requestDuration, requestTotal, transitions, pushes, instances, reminders, emails,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitions:     transitions,
		pushes:          pushes,
		instances:       instances,
		reminders:       reminders,
		emails:          emails,
	}
}

// Handler exposes the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request count and latency
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveTransition records the outcome of a reconciler operation
func (m *Metrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

// ObservePush records one push delivery attempt
func (m *Metrics) ObservePush(outcome string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(outcome).Inc()
}

// ObserveWeek records how many persisted and virtual instances a week view returned
func (m *Metrics) ObserveWeek(persisted, virtual int) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues("persisted").Add(float64(persisted))
	m.instances.WithLabelValues("virtual").Add(float64(virtual))
}

// ObserveReminder records the outcome of one reminder
func (m *Metrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(outcome).Inc()
}

// ObserveEmail records the outcome of one queued email
func (m *Metrics) ObserveEmail(outcome string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(outcome).Inc()
}
