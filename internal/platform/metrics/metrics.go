package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DocumentsCreated     prometheus.Counter
	TransitionsCommitted *prometheus.CounterVec
	TransitionConflicts  prometheus.Counter
	TransitionsRejected  *prometheus.CounterVec

	NotificationsEnqueued  prometheus.Counter
	NotificationsDelivered prometheus.Counter
	NotificationFailures   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DocumentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examflow_documents_created_total",
			Help: "Total number of documents created",
		}),
		TransitionsCommitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_transitions_committed_total",
			Help: "Committed workflow transitions by action",
		}, []string{"action"}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examflow_transition_conflicts_total",
			Help: "Transitions aborted by a stale revision token",
		}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examflow_transitions_rejected_total",
			Help: "Transitions rejected before commit, by failure code",
		}, []string{"code"}),
		NotificationsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examflow_notifications_enqueued_total",
			Help: "Notifications durably enqueued by the dispatcher",
		}),
		NotificationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examflow_notifications_delivered_total",
			Help: "Notifications delivered to the configured sink",
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examflow_notification_failures_total",
			Help: "Notification deliveries that exhausted their retries",
		}),
	}
}

// IncrementTransitionCommitted increments the committed counter for an action.
func (m *Metrics) IncrementTransitionCommitted(action string) {
	m.TransitionsCommitted.WithLabelValues(action).Inc()
}

// IncrementTransitionRejected increments the rejected counter for a code.
func (m *Metrics) IncrementTransitionRejected(code string) {
	m.TransitionsRejected.WithLabelValues(code).Inc()
}
