package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the roll-call module.
type Metrics struct {
	SessionsOpened    prometheus.Counter
	SessionsClosed    prometheus.Counter
	SessionsCancelled prometheus.Counter
	CheckIns          prometheus.Counter
	DuplicateCheckIns prometheus.Counter
	AbsencesRecorded  prometheus.Counter
	CloseDuration     prometheus.Histogram
}

// New creates a Metrics instance with all roll-call metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_sessions_opened_total",
			Help: "Total number of roll-call sessions opened",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_sessions_closed_total",
			Help: "Total number of roll-call sessions closed with reconciliation",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_sessions_cancelled_total",
			Help: "Total number of roll-call sessions cancelled and discarded",
		}),
		CheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_checkins_total",
			Help: "Total number of successful student check-ins",
		}),
		DuplicateCheckIns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_duplicate_checkins_total",
			Help: "Check-in attempts rejected because a record already existed",
		}),
		AbsencesRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_absences_recorded_total",
			Help: "Absent records written by the close-time reconciliation pass",
		}),
		CloseDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "presente_session_close_duration_seconds",
			Help:    "Duration of CloseSession including the reconciliation pass",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveClose records the duration of a CloseSession operation.
func (m *Metrics) ObserveClose(start time.Time) {
	m.CloseDuration.Observe(time.Since(start).Seconds())
}
