package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the scheduler's Prometheus instrumentation. Callers
// register Inflight with their own registry (or leave Metrics nil/zero
// to opt out, since Inflight tolerates a nil *prometheus.GaugeVec via
// the guarded set helper below).
type Metrics struct {
	Inflight *prometheus.GaugeVec
}

// NewMetrics constructs the default gauge, labeled by run id so multiple
// concurrent Scheduler.Run calls don't clobber each other's readings.
func NewMetrics() *Metrics {
	return &Metrics{
		Inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edo",
			Subsystem: "scheduler",
			Name:      "inflight_transforms",
			Help:      "Number of transforms currently executing for a run.",
		}, []string{"run_id"}),
	}
}

func (m *Metrics) set(runID string, n int) {
	if m == nil || m.Inflight == nil {
		return
	}
	m.Inflight.WithLabelValues(runID).Set(float64(n))
}

func (m *Metrics) delete(runID string) {
	if m == nil || m.Inflight == nil {
		return
	}
	m.Inflight.DeleteLabelValues(runID)
}
