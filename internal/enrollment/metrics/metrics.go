package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enrollment module.
type Metrics struct {
	StudentsAssigned prometheus.Counter
	TeachersAssigned prometheus.Counter
	Transfers        prometheus.Counter
	Omissions        *prometheus.CounterVec
}

// New creates a Metrics instance with all enrollment metrics registered.
func New() *Metrics {
	return &Metrics{
		StudentsAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_enrollments_created_total",
			Help: "Total number of student enrollments created",
		}),
		TeachersAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_teacher_assignments_total",
			Help: "Total number of teacher-to-group assignments",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "presente_student_transfers_total",
			Help: "Total number of completed student transfers",
		}),
		Omissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "presente_assignment_omissions_total",
			Help: "Batch assignment items omitted, by reason",
		}, []string{"reason"}),
	}
}

// IncrementStudentsAssigned records n successful enrollments.
func (m *Metrics) IncrementStudentsAssigned(n int) {
	m.StudentsAssigned.Add(float64(n))
}

// IncrementTeachersAssigned records n successful teacher assignments.
func (m *Metrics) IncrementTeachersAssigned(n int) {
	m.TeachersAssigned.Add(float64(n))
}

// IncrementTransfers records a completed transfer.
func (m *Metrics) IncrementTransfers() {
	m.Transfers.Inc()
}

// IncrementOmission records one omitted batch item by reason.
func (m *Metrics) IncrementOmission(reason string) {
	m.Omissions.WithLabelValues(reason).Inc()
}
