package kernel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/depstate"
	"github.com/zainhoda/sij-manager-sub003/pkg/kernel"
	"github.com/zainhoda/sij-manager-sub003/pkg/planerr"
	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
	"github.com/zainhoda/sij-manager-sub003/pkg/strategy"
)

func window(days int) [2]calendar.Date {
	start := calendar.NewDate(2026, 7, 29) // Wednesday
	return [2]calendar.Date{start, start.AddDays(days)}
}

func balanced() strategy.Config {
	cfg, _ := strategy.Get(strategy.Balanced)
	return cfg
}

// S1: single step, single worker, no dependencies, no overtime needed.
func TestS1SingleStepSingleWorker(t *testing.T) {
	input := kernel.ScenarioInput{
		PlanningWindow: window(3),
		Demand: []kernel.DemandInput{
			{ID: 1, BOMID: 1, Quantity: 10, DueDate: calendar.NewDate(2026, 8, 1), Priority: 1},
		},
		BOMSteps: map[uint][]kernel.StepInput{
			1: {{ID: 1, BOMID: 1, Name: "Cut", TimePerPieceSeconds: 300, Sequence: 1}},
		},
		Workers:  []kernel.WorkerInput{{ID: 1, Status: qualify.StatusActive, CostPerHour: 20}},
		Strategy: balanced(),
		Now:      time.Now(),
	}
	result, err := kernel.Run(input)
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)

	b := result.Blocks[0]
	assert.Equal(t, calendar.NewDate(2026, 7, 29), b.Date)
	assert.Equal(t, 420, b.StartMinute) // 07:00
	assert.Equal(t, 470, b.EndMinute)   // 07:50
	assert.Equal(t, 10, b.PlannedOutput)

	proj := result.DemandProjections[1]
	assert.True(t, proj.CanMeetTarget)
	assert.Equal(t, 1, result.Metrics.DeadlinesMet)
	assert.Equal(t, 0, result.Metrics.DeadlinesMissed)
}

// S2: finish-finish dependency with batching interleaves step A and step B.
func TestS2FinishDependencyWithBatching(t *testing.T) {
	input := kernel.ScenarioInput{
		PlanningWindow: window(10),
		Demand: []kernel.DemandInput{
			{ID: 1, BOMID: 1, Quantity: 20, DueDate: calendar.NewDate(2026, 8, 10), Priority: 1,
				BatchPref: depstate.BatchPreference{MaxBatchSize: 10}},
		},
		BOMSteps: map[uint][]kernel.StepInput{
			1: {
				{ID: 1, BOMID: 1, Name: "A", TimePerPieceSeconds: 120, Sequence: 1},
				{ID: 2, BOMID: 1, Name: "B", TimePerPieceSeconds: 60, Sequence: 2,
					Dependencies: []depstate.Dependency{{DependsOnStep: 1, Kind: depstate.KindFinish}}},
			},
		},
		Workers:  []kernel.WorkerInput{{ID: 1, Status: qualify.StatusActive, CostPerHour: 20}},
		Strategy: balanced(),
		Now:      time.Now(),
	}
	result, err := kernel.Run(input)
	require.NoError(t, err)
	require.NotEmpty(t, result.Blocks)

	// First block must be step A batch 1.
	first := result.Blocks[0]
	assert.Equal(t, uint(1), first.BOMStepID)
	assert.Equal(t, 1, first.BatchNumber)

	// Every finish-dependency block of (B, batch) must precede
	// (in end-time order) the corresponding (A, batch) block... i.e. A's
	// block for a batch ends before B's block for that batch starts.
	aEnd := map[int]calendar.Date{}
	aEndMinute := map[int]int{}
	for _, b := range result.Blocks {
		if b.BOMStepID == 1 {
			aEnd[b.BatchNumber] = b.Date
			aEndMinute[b.BatchNumber] = b.EndMinute
		}
	}
	for _, b := range result.Blocks {
		if b.BOMStepID == 2 {
			ad, ok := aEnd[b.BatchNumber]
			require.True(t, ok)
			if b.Date == ad {
				assert.LessOrEqual(t, aEndMinute[b.BatchNumber], b.StartMinute)
			} else {
				assert.True(t, ad.Before(b.Date) || ad.Equal(b.Date))
			}
		}
	}
}

// S3: equipment certification filters workers.
func TestS3CertificationFiltersWorkers(t *testing.T) {
	equip := uint(1)
	now := time.Date(2026, 7, 29, 6, 0, 0, 0, time.UTC)
	input := kernel.ScenarioInput{
		PlanningWindow: window(5),
		Demand: []kernel.DemandInput{
			{ID: 1, BOMID: 1, Quantity: 5, DueDate: calendar.NewDate(2026, 8, 5), Priority: 1},
		},
		BOMSteps: map[uint][]kernel.StepInput{
			1: {{ID: 1, BOMID: 1, Name: "Sew", TimePerPieceSeconds: 300, Sequence: 1, EquipmentID: &equip}},
		},
		Workers: []kernel.WorkerInput{
			{ID: 1, Status: qualify.StatusActive, CostPerHour: 20},
			{ID: 2, Status: qualify.StatusActive, CostPerHour: 20},
		},
		Certifications: []kernel.CertInput{
			{WorkerID: 2, EquipmentID: 1},
		},
		Strategy: balanced(),
		Now:      now,
	}
	result, err := kernel.Run(input)
	require.NoError(t, err)
	require.NotEmpty(t, result.Blocks)
	for _, b := range result.Blocks {
		require.Len(t, b.WorkerIDs, 1)
		assert.Equal(t, uint(2), b.WorkerIDs[0])
	}
}

// S5: circular dependency is fatal.
func TestS5CircularDependencyIsFatal(t *testing.T) {
	input := kernel.ScenarioInput{
		PlanningWindow: window(5),
		Demand: []kernel.DemandInput{
			{ID: 1, BOMID: 1, Quantity: 5, DueDate: calendar.NewDate(2026, 8, 5), Priority: 1},
		},
		BOMSteps: map[uint][]kernel.StepInput{
			1: {
				{ID: 1, BOMID: 1, Name: "A", TimePerPieceSeconds: 60, Sequence: 1,
					Dependencies: []depstate.Dependency{{DependsOnStep: 2, Kind: depstate.KindFinish}}},
				{ID: 2, BOMID: 1, Name: "B", TimePerPieceSeconds: 60, Sequence: 2,
					Dependencies: []depstate.Dependency{{DependsOnStep: 1, Kind: depstate.KindFinish}}},
			},
		},
		Workers:  []kernel.WorkerInput{{ID: 1, Status: qualify.StatusActive, CostPerHour: 20}},
		Strategy: balanced(),
		Now:      time.Now(),
	}
	_, err := kernel.Run(input)
	require.Error(t, err)
	assert.IsType(t, &planerr.ScheduleInfeasibleError{}, err)
}

// Determinism across repeated runs with identical input.
func TestDeterminismAcrossRuns(t *testing.T) {
	input := kernel.ScenarioInput{
		PlanningWindow: window(10),
		Demand: []kernel.DemandInput{
			{ID: 1, BOMID: 1, Quantity: 37, DueDate: calendar.NewDate(2026, 8, 10), Priority: 3},
			{ID: 2, BOMID: 1, Quantity: 12, DueDate: calendar.NewDate(2026, 8, 3), Priority: 1},
		},
		BOMSteps: map[uint][]kernel.StepInput{
			1: {{ID: 1, BOMID: 1, Name: "Cut", TimePerPieceSeconds: 90, Sequence: 1}},
		},
		Workers: []kernel.WorkerInput{
			{ID: 1, Status: qualify.StatusActive, CostPerHour: 20},
			{ID: 2, Status: qualify.StatusActive, CostPerHour: 22},
		},
		Strategy: balanced(),
		Now:      time.Now(),
	}
	r1, err1 := kernel.Run(input)
	require.NoError(t, err1)
	r2, err2 := kernel.Run(input)
	require.NoError(t, err2)
	assert.Equal(t, r1.Blocks, r2.Blocks)
	assert.Equal(t, r1.Metrics, r2.Metrics)
}

// Multi-step BOM with no dependency edges is rejected fail-fast.
func TestMultiStepBOMWithoutDependenciesRejected(t *testing.T) {
	input := kernel.ScenarioInput{
		PlanningWindow: window(3),
		Demand: []kernel.DemandInput{
			{ID: 1, BOMID: 1, Quantity: 5, DueDate: calendar.NewDate(2026, 8, 1), Priority: 1},
		},
		BOMSteps: map[uint][]kernel.StepInput{
			1: {
				{ID: 1, BOMID: 1, Name: "A", TimePerPieceSeconds: 60, Sequence: 1},
				{ID: 2, BOMID: 1, Name: "B", TimePerPieceSeconds: 60, Sequence: 2},
			},
		},
		Workers:  []kernel.WorkerInput{{ID: 1, Status: qualify.StatusActive}},
		Strategy: balanced(),
	}
	_, err := kernel.Run(input)
	require.Error(t, err)
	assert.IsType(t, &planerr.PreconditionError{}, err)
}

// S4: deadline pressure engages overtime under meet_deadlines, not under
// minimize_cost.
func TestS4DeadlinePressureEngagesOvertime(t *testing.T) {
	buildInput := func(strat strategy.Config) kernel.ScenarioInput {
		today := calendar.NewDate(2026, 7, 29)
		return kernel.ScenarioInput{
			PlanningWindow: [2]calendar.Date{today, today.AddDays(5)},
			Demand: []kernel.DemandInput{
				{ID: 1, BOMID: 1, Quantity: 500, DueDate: today, Priority: 1},
			},
			BOMSteps: map[uint][]kernel.StepInput{
				1: {{ID: 1, BOMID: 1, Name: "Sew", TimePerPieceSeconds: 60, Sequence: 1}},
			},
			Workers:  []kernel.WorkerInput{{ID: 1, Status: qualify.StatusActive, CostPerHour: 20}},
			Strategy: strat,
			Now:      time.Now(),
		}
	}

	minCostCfg, _ := strategy.Get(strategy.MinimizeCost)
	minCostResult, err := kernel.Run(buildInput(minCostCfg))
	require.NoError(t, err)
	assert.Equal(t, 1, minCostResult.Metrics.DeadlinesMissed)
	assert.Equal(t, 0, minCostResult.Metrics.OvertimeMinutes)

	meetDeadlinesCfg, _ := strategy.Get(strategy.MeetDeadlines)
	meetResult, err := kernel.Run(buildInput(meetDeadlinesCfg))
	require.NoError(t, err)
	assert.Equal(t, 1, meetResult.Metrics.DeadlinesMet)
	assert.Greater(t, meetResult.Metrics.OvertimeMinutes, 0)
}
