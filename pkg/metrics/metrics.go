// Package metrics holds the Prometheus metrics for the planner namespace,
// registered with promauto against the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// --- Scenario generation ---

	// RunsTotal counts scenarios generated, by strategy and outcome
	// (ok/infeasible/partial).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of scenarios generated, by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// ScenarioDeadlinesMet counts demand entries that met their due date.
	ScenarioDeadlinesMet = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "scenario",
			Name:      "deadlines_met",
			Help:      "Total number of demand entries that met their due date, by strategy",
		},
		[]string{"strategy"},
	)

	// ScenarioDeadlinesMissed counts demand entries that missed their due date.
	ScenarioDeadlinesMissed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "scenario",
			Name:      "deadlines_missed",
			Help:      "Total number of demand entries that missed their due date, by strategy",
		},
		[]string{"strategy"},
	)

	// ScenarioLaborHours tracks a scenario's regular labor hours.
	ScenarioLaborHours = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "planner",
			Subsystem: "scenario",
			Name:      "labor_hours",
			Help:      "Regular labor hours consumed per generated scenario",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"strategy"},
	)

	// ScenarioOvertimeHours tracks a scenario's overtime hours.
	ScenarioOvertimeHours = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "planner",
			Subsystem: "scenario",
			Name:      "overtime_hours",
			Help:      "Overtime hours consumed per generated scenario",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"strategy"},
	)

	// KernelIterations tracks ready-set loop iterations consumed per scenario.
	KernelIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "planner",
			Subsystem: "kernel",
			Name:      "iterations",
			Help:      "Scheduling kernel ready-set loop iterations consumed per scenario",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	// --- Replan ---

	// ReplanRunsTotal counts replan runs by outcome.
	ReplanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "replan",
			Name:      "runs_total",
			Help:      "Total number of replan runs, by outcome",
		},
		[]string{"outcome"},
	)

	// ReplanOvertimeSuggestedHours tracks overtime hours suggested by replan.
	ReplanOvertimeSuggestedHours = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "planner",
			Subsystem: "replan",
			Name:      "overtime_suggested_hours",
			Help:      "Overtime hours suggested by the replan engine per run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		},
	)

	// --- Proficiency ---

	// ProficiencyAdjustmentsTotal counts proficiency level changes by reason.
	ProficiencyAdjustmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "proficiency",
			Name:      "adjustments_total",
			Help:      "Total number of proficiency level adjustments, by reason",
		},
		[]string{"reason"},
	)

	// --- Capacity ---

	// CapacityShortfallHours tracks each demand entry's capacity shortfall.
	CapacityShortfallHours = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "planner",
			Subsystem: "capacity",
			Name:      "shortfall_hours",
			Help:      "Hours of required labor exceeding available capacity, by demand entry",
		},
		[]string{"demand_id"},
	)

	// --- Scheduler daemon ---

	// OrphanedBlocksTotal counts plan tasks flagged as orphaned by the
	// scheduler's reconciliation loop.
	OrphanedBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "scheduler",
			Name:      "orphaned_blocks_total",
			Help:      "Total number of plan tasks flagged as orphaned by the reconciliation sweep",
		},
	)

	// ActiveNodes tracks the number of active reporter/scheduler nodes.
	ActiveNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "planner",
			Subsystem: "cluster",
			Name:      "active_nodes",
			Help:      "Number of active nodes registered with the coordinator",
		},
	)

	// HeartbeatsSent counts heartbeats sent by a reporter/scheduler node.
	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "cluster",
			Name:      "heartbeats_total",
			Help:      "Total heartbeats sent",
		},
	)

	// --- Production event stream ---

	// EventsProcessedTotal counts production events applied, by kind and outcome.
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planner",
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Total number of production events processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// QueueDepth tracks pending production events.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "planner",
			Subsystem: "events",
			Name:      "pending",
			Help:      "Number of production events pending in the stream",
		},
	)
)

// RecordScenario records a generated scenario's headline metrics.
func RecordScenario(strategy, outcome string, deadlinesMet, deadlinesMissed int, laborHours, overtimeHours float64, iterations int) {
	RunsTotal.WithLabelValues(strategy, outcome).Inc()
	ScenarioDeadlinesMet.WithLabelValues(strategy).Add(float64(deadlinesMet))
	ScenarioDeadlinesMissed.WithLabelValues(strategy).Add(float64(deadlinesMissed))
	ScenarioLaborHours.WithLabelValues(strategy).Observe(laborHours)
	ScenarioOvertimeHours.WithLabelValues(strategy).Observe(overtimeHours)
	KernelIterations.Observe(float64(iterations))
}

// RecordReplan records one replan run's outcome.
func RecordReplan(outcome string, overtimeSuggestedHours float64) {
	ReplanRunsTotal.WithLabelValues(outcome).Inc()
	ReplanOvertimeSuggestedHours.Observe(overtimeSuggestedHours)
}
