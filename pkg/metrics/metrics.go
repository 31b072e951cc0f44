package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Reminder pass metrics
	ReminderPasses       *prometheus.CounterVec
	RemindersEvaluated   prometheus.Counter
	RemindersSent        prometheus.Counter
	RemindersFailed      prometheus.Counter
	ReminderWriteFailed  prometheus.Counter
	ReminderPassDuration prometheus.Histogram

	// Password hook metrics
	HookDecisions *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
}

// New creates the application metrics and registers them with reg. A
// nil registerer leaves them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReminderPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_passes_total",
			Help:      "Reminder passes by outcome",
		}, []string{"outcome"}),
		RemindersEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_evaluated_total",
			Help:      "Users evaluated by reminder passes",
		}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Expiry reminder emails sent",
		}),
		RemindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Expiry reminder emails that failed to send",
		}),
		ReminderWriteFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_meta_write_failed_total",
			Help:      "Sent reminders whose last-sent date could not be stored",
		}),
		ReminderPassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_pass_duration_seconds",
			Help:      "Time spent in a reminder pass",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		}),
		HookDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_decisions_total",
			Help:      "Password hook outcomes by hook and decision",
		}, []string{"hook", "decision"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ReminderPasses,
			m.RemindersEvaluated,
			m.RemindersSent,
			m.RemindersFailed,
			m.ReminderWriteFailed,
			m.ReminderPassDuration,
			m.HookDecisions,
			m.RequestDuration,
			m.RequestTotal,
		)
	}
	return m
}
