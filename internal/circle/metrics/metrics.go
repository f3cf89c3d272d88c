package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the circle module: creation and payout
// counters, distributed volume, and critical path durations.
type Metrics struct {
	CirclesCreated    prometheus.Counter
	PayoutsProcessed  prometheus.Counter
	CyclesCompleted   prometheus.Counter
	Rollovers         prometheus.Counter
	VolumeDistributed prometheus.Counter
	PayoutDuration    prometheus.Histogram
	DepositDuration   prometheus.Histogram
}

// New creates a Metrics instance with all circle module metrics registered.
func New() *Metrics {
	return &Metrics{
		CirclesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "susu_circles_created_total",
			Help: "Total number of circles created",
		}),
		PayoutsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "susu_payouts_processed_total",
			Help: "Total number of payouts processed",
		}),
		CyclesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "susu_cycles_completed_total",
			Help: "Total number of completed payout cycles",
		}),
		Rollovers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "susu_rollovers_total",
			Help: "Total number of cycle rollovers",
		}),
		VolumeDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "susu_volume_distributed_total",
			Help: "Gross payout volume distributed across all circles",
		}),
		PayoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "susu_payout_duration_seconds",
			Help:    "Duration of process_payout operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		DepositDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "susu_deposit_duration_seconds",
			Help:    "Duration of deposit operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementCircleCreated records a successful circle creation.
func (m *Metrics) IncrementCircleCreated() {
	m.CirclesCreated.Inc()
}

// ObservePayout records a processed payout with its gross volume and
// duration. Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePayout(start time.Time, gross int64) {
	m.PayoutsProcessed.Inc()
	m.VolumeDistributed.Add(float64(gross))
	m.PayoutDuration.Observe(time.Since(start).Seconds())
}

// IncrementCycleCompleted records a fully drained cycle.
func (m *Metrics) IncrementCycleCompleted() {
	m.CyclesCompleted.Inc()
}

// IncrementRollover records a cycle rollover.
func (m *Metrics) IncrementRollover() {
	m.Rollovers.Inc()
}

// ObserveDeposit records the duration of a deposit operation.
func (m *Metrics) ObserveDeposit(start time.Time) {
	m.DepositDuration.Observe(time.Since(start).Seconds())
}
