package metrics

import (
	"context"
	"net/http"
	"time"

	"interestbatch/events"
	"interestbatch/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interest_batch"

// Recorder collects batch metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	accountsProcessed *prometheus.CounterVec
	accountDuration   *prometheus.HistogramVec
	accountsInFlight  *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its metrics registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executions by job type and lifecycle status (RUNNING counts starts)",
		}, []string{"job_type", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time of finished executions",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"job_type"}),
		accountsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_processed_total",
			Help:      "Accounts processed by job type and outcome",
		}, []string{"job_type", "outcome"}),
		accountDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "account_duration_seconds",
			Help:      "Time spent processing a single account",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_type"}),
		accountsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts_in_flight",
			Help:      "Accounts currently being processed",
		}, []string{"job_type"}),
	}

	r.registry.MustRegister(
		r.executionsTotal,
		r.executionDuration,
		r.accountsProcessed,
		r.accountDuration,
		r.accountsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// AccountStarted marks an account as in flight
func (r *Recorder) AccountStarted(jobType models.JobType) {
	r.accountsInFlight.WithLabelValues(string(jobType)).Inc()
}

// AccountFinished records the outcome of one account
func (r *Recorder) AccountFinished(jobType models.JobType, status models.AccountResultStatus, duration time.Duration) {
	label := string(jobType)
	r.accountsInFlight.WithLabelValues(label).Dec()
	r.accountsProcessed.WithLabelValues(label, string(status)).Inc()
	r.accountDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Subscribe records execution lifecycle metrics from bus events
func (r *Recorder) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeExecutionStarted, r.handleEvent)
	bus.Subscribe(events.EventTypeExecutionCompleted, r.handleEvent)
	bus.Subscribe(events.EventTypeExecutionFailed, r.handleEvent)
	bus.Subscribe(events.EventTypeExecutionCancelled, r.handleEvent)
}

func (r *Recorder) handleEvent(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.ExecutionStartedEvent:
		r.executionsTotal.WithLabelValues(string(e.JobType), string(models.ExecutionStatusRunning)).Inc()
	case events.ExecutionFinishedEvent:
		r.executionsTotal.WithLabelValues(string(e.JobType), string(e.Status)).Inc()
		r.executionDuration.WithLabelValues(string(e.JobType)).Observe(e.Duration.Seconds())
	}
}
