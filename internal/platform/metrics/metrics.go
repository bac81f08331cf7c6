package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the hygiene core.
type Metrics struct {
	ChecksPerformed   prometheus.Counter
	RequestsDenied    *prometheus.CounterVec
	LedgerAppends     *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ChecksPerformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_checks_total",
			Help: "Total credential-hygiene checks evaluated by the enforcement gate",
		}),
		RequestsDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_denials_total",
			Help: "Requests denied by the enforcement gate, by reason",
		}, []string{"reason"}),
		LedgerAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_ledger_appends_total",
			Help: "Audit ledger records appended, by record kind",
		}, []string{"kind"}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_notifications_total",
			Help: "Notification sends requested, by notification type",
		}, []string{"type"}),
	}
}

func (m *Metrics) IncrementCheck() {
	if m == nil {
		return
	}
	m.ChecksPerformed.Inc()
}

func (m *Metrics) IncrementDenial(reason string) {
	if m == nil {
		return
	}
	m.RequestsDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementLedgerAppend(kind string) {
	if m == nil {
		return
	}
	m.LedgerAppends.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementNotification(notificationType string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(notificationType).Inc()
}
