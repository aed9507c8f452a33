package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// WatchdogMetrics tracks the consensus engine's observable state.
type WatchdogMetrics struct {
	activeWatchdogs   prometheus.Gauge
	pendingOperations prometheus.Gauge

	submittedOperations *prometheus.CounterVec
	executedOperations  *prometheus.CounterVec
	totalChallenges     prometheus.Counter
	totalEscalations    prometheus.Counter
	emergencyOverrides  prometheus.Counter
	proofRejections     *prometheus.CounterVec
}

// Declare a package-level variable for sync.Once to ensure metrics are registered only once
var wdMetricsRegisterOnce sync.Once

// Declare a variable to hold the instance of WatchdogMetrics
var wdMetricsInstance *WatchdogMetrics

// NewWatchdogMetrics initializes and registers the metrics, using sync.Once to ensure it's done only once
func NewWatchdogMetrics() *WatchdogMetrics {
	wdMetricsRegisterOnce.Do(func() {
		wdMetricsInstance = &WatchdogMetrics{
			activeWatchdogs: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "wd_active_watchdogs",
				Help: "Current number of watchdogs in the active roster",
			}),
			pendingOperations: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "wd_pending_operations",
				Help: "Current number of submitted but unexecuted operations",
			}),
			submittedOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "wd_submitted_operations_total",
				Help: "Total number of submitted operations by type",
			}, []string{"operation_type"}),
			executedOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "wd_executed_operations_total",
				Help: "Total number of executed operations by type and downstream outcome",
			}, []string{"operation_type", "success"}),
			totalChallenges: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "wd_challenges_total",
				Help: "Total number of recorded challenges",
			}),
			totalEscalations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "wd_escalations_total",
				Help: "Total number of escalation level increases",
			}),
			emergencyOverrides: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "wd_emergency_overrides_total",
				Help: "Total number of emergency override executions",
			}),
			proofRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "wd_proof_rejections_total",
				Help: "Total number of SPV proof rejections by taxonomy code",
			}, []string{"code"}),
		}

		prometheus.MustRegister(wdMetricsInstance.activeWatchdogs)
		prometheus.MustRegister(wdMetricsInstance.pendingOperations)
		prometheus.MustRegister(wdMetricsInstance.submittedOperations)
		prometheus.MustRegister(wdMetricsInstance.executedOperations)
		prometheus.MustRegister(wdMetricsInstance.totalChallenges)
		prometheus.MustRegister(wdMetricsInstance.totalEscalations)
		prometheus.MustRegister(wdMetricsInstance.emergencyOverrides)
		prometheus.MustRegister(wdMetricsInstance.proofRejections)
	})

	return wdMetricsInstance
}

func (m *WatchdogMetrics) SetActiveWatchdogs(n uint32) {
	m.activeWatchdogs.Set(float64(n))
}

func (m *WatchdogMetrics) SetPendingOperations(n int) {
	m.pendingOperations.Set(float64(n))
}

func (m *WatchdogMetrics) IncSubmitted(opType string) {
	m.submittedOperations.WithLabelValues(opType).Inc()
}

func (m *WatchdogMetrics) IncExecuted(opType string, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	m.executedOperations.WithLabelValues(opType, label).Inc()
}

func (m *WatchdogMetrics) IncChallenges() {
	m.totalChallenges.Inc()
}

func (m *WatchdogMetrics) IncEscalations() {
	m.totalEscalations.Inc()
}

func (m *WatchdogMetrics) IncEmergencyOverrides() {
	m.emergencyOverrides.Inc()
}

func (m *WatchdogMetrics) IncProofRejections(code string) {
	m.proofRejections.WithLabelValues(code).Inc()
}
