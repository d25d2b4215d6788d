package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks the background jobs and deposit state transitions.
type JobMetrics struct {
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	retryBacklog       prometheus.Gauge
	retryOutcomes      *prometheus.CounterVec
	depositTransitions *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	dedupeEntries      prometheus.Gauge
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

func Jobs() *JobMetrics {
	return JobsWithConfig(Config{})
}

func JobsWithConfig(cfg Config) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = newJobMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return jobMetrics
}

func ResetJobMetricsForTest() {
	jobMetricsOnce = sync.Once{}
	jobMetrics = nil
}

// NewJobMetricsWithRegisterer builds an unshared instance, mostly for tests.
func NewJobMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	return newJobMetrics(registerer, cfg)
}

func newJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	labels := constLabels(cfg)

	jobRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "deposit_job_runs_total",
			Help:        "Background job cycles by job and result.",
			ConstLabels: labels,
		},
		[]string{"job", "result"}, // success | failure
	)

	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "deposit_job_duration_seconds",
			Help:        "Duration of background job cycles.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		},
		[]string{"job"},
	)

	retryBacklog := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "deposit_webhook_retry_backlog",
			Help:        "Webhook events waiting in the retry queue.",
			ConstLabels: labels,
		},
	)

	retryOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "deposit_webhook_retry_outcomes_total",
			Help:        "Retry queue record outcomes.",
			ConstLabels: labels,
		},
		[]string{"outcome"}, // processed | requeued | dead_lettered
	)

	depositTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "deposit_transitions_total",
			Help:        "Deposit state transitions by resulting status and source.",
			ConstLabels: labels,
		},
		[]string{"status", "source"}, // source: engine | webhook
	)

	webhookEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "deposit_webhook_events_total",
			Help:        "Inbound webhook events by type and result.",
			ConstLabels: labels,
		},
		[]string{"type", "result"}, // applied | ignored | queued | rejected | duplicate
	)

	dedupeEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "deposit_webhook_dedupe_entries",
			Help:        "Event ids held in the in-memory webhook dedupe cache.",
			ConstLabels: labels,
		},
	)

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		retryBacklog,
		retryOutcomes,
		depositTransitions,
		webhookEvents,
		dedupeEntries,
	)

	return &JobMetrics{
		jobRuns:            jobRuns,
		jobDuration:        jobDuration,
		retryBacklog:       retryBacklog,
		retryOutcomes:      retryOutcomes,
		depositTransitions: depositTransitions,
		webhookEvents:      webhookEvents,
		dedupeEntries:      dedupeEntries,
	}
}

func constLabels(cfg Config) prometheus.Labels {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "stripe-deposit"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	return prometheus.Labels{"service": service, "env": env}
}

func (m *JobMetrics) ObserveJobRun(job string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *JobMetrics) SetRetryBacklog(value int64) {
	if m == nil {
		return
	}
	m.retryBacklog.Set(float64(value))
}

func (m *JobMetrics) IncRetryOutcome(outcome string) {
	if m == nil {
		return
	}
	m.retryOutcomes.WithLabelValues(outcome).Inc()
}

func (m *JobMetrics) IncDepositTransition(status, source string) {
	if m == nil {
		return
	}
	m.depositTransitions.WithLabelValues(status, source).Inc()
}

func (m *JobMetrics) IncWebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(eventType) == "" {
		eventType = "unknown"
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *JobMetrics) SetDedupeEntries(value int) {
	if m == nil {
		return
	}
	m.dedupeEntries.Set(float64(value))
}
