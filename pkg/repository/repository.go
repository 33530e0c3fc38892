// Package repository defines the narrow, typed read/write port that the
// planning engine, replan engine, and analytics consume. It never returns
// live cursors — every call is a
// complete, already-materialized data-transfer slice or record — so a
// planning run can snapshot all of its inputs once at the top of the run
// and the kernel itself never performs I/O.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zainhoda/sij-manager-sub003/pkg/models"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("repository: record not found")

// ErrConflict is returned on a uniqueness violation (duplicate
// certification, duplicate employee id, an assignment already present on a
// block) — mapped to planerr.ConflictError at the API boundary.
var ErrConflict = errors.New("repository: conflicting write")

// DemandFilter narrows get_demand_entries to a subset of open demand.
type DemandFilter struct {
	Statuses []models.DemandStatus
	IDs      []uint
}

// BOMSteps is one product's (or build version's) resolved steps plus their
// dependency edges, as loaded for one planning run.
type BOMSteps struct {
	ProductID uint
	Steps     []StepWithDeps
}

// StepWithDeps pairs a ProductStep with its resolved dependency edges.
type StepWithDeps struct {
	Step         models.ProductStep
	Dependencies []models.StepDependency
}

// Reader is the read half of the port.
type Reader interface {
	// GetDemandEntries loads demand matching filter.
	GetDemandEntries(ctx context.Context, filter DemandFilter) ([]models.DemandEntry, error)

	// GetBOMStepsWithDeps loads every ProductStep (and its dependency
	// edges) for the given product id.
	GetBOMStepsWithDeps(ctx context.Context, productID uint) (BOMSteps, error)

	// GetActiveWorkers loads every worker with status = active.
	GetActiveWorkers(ctx context.Context) ([]models.Worker, error)

	// GetEquipment loads the full equipment catalog.
	GetEquipment(ctx context.Context) ([]models.Equipment, error)

	// GetCertifications loads every certification; now is not used to
	// filter, so callers check expiry themselves.
	GetCertifications(ctx context.Context, now time.Time) ([]models.EquipmentCertification, error)

	// GetProficiencies loads proficiency rows, optionally narrowed by
	// worker/step id sets (nil means "all").
	GetProficiencies(ctx context.Context, workerIDs, stepIDs []uint) ([]models.WorkerProficiency, error)

	// GetSchedule loads a planning run's accepted scenario for replan.
	GetSchedule(ctx context.Context, runID uuid.UUID) (*models.PlanningRun, *models.PlanningScenario, error)

	// GetPlanTasks loads the materialized plan tasks for a scenario.
	GetPlanTasks(ctx context.Context, scenarioID uuid.UUID) ([]models.PlanTask, error)

	// GetOrder loads one demand entry by id, for replan.
	GetOrder(ctx context.Context, demandID uint) (*models.DemandEntry, error)

	// GetPlanningRun loads a run and its scenarios.
	GetPlanningRun(ctx context.Context, id uuid.UUID) (*models.PlanningRun, error)

	// ListPlanningRuns lists runs, optionally filtered by status, newest
	// first, capped at limit (0 means a server-side default).
	ListPlanningRuns(ctx context.Context, status *models.PlanningRunStatus, limit int) ([]models.PlanningRun, error)

	// GetActiveRun returns the most recently accepted planning run, or nil
	// if none has been accepted.
	GetActiveRun(ctx context.Context) (*models.PlanningRun, error)

	// GetScenario loads one scenario by id.
	GetScenario(ctx context.Context, id uuid.UUID) (*models.PlanningScenario, error)

	// ListScenariosForRun lists every scenario belonging to a run.
	ListScenariosForRun(ctx context.Context, runID uuid.UUID) ([]models.PlanningScenario, error)

	// GetOutputHistory loads the append-only output stream for one plan
	// task, used by the proficiency engine's trend metrics.
	GetOutputHistory(ctx context.Context, planTaskID uuid.UUID) ([]models.AssignmentOutputHistory, error)

	// GetCompletedWork loads completed plan tasks for the proficiency
	// rollup, bounded to the trailing window.
	GetCompletedWork(ctx context.Context, since time.Time) ([]models.PlanTask, error)

	// GetStartedIncompleteTasks loads plan tasks that started but never
	// completed, used by cmd/scheduler's orphan reconciliation sweep.
	GetStartedIncompleteTasks(ctx context.Context) ([]models.PlanTask, error)

	// GetOpenPlanDemandIDs lists the demand entry ids that still have
	// not-yet-completed plan tasks from an accepted run. Acceptance refuses
	// to commit a scenario overlapping these.
	GetOpenPlanDemandIDs(ctx context.Context) ([]uint, error)
}

// Writer is the write half of the port.
type Writer interface {
	// CreatePlanningRun persists a new run.
	CreatePlanningRun(ctx context.Context, run *models.PlanningRun) error

	// CreateScenario persists a generated scenario under a run.
	CreateScenario(ctx context.Context, scenario *models.PlanningScenario) error

	// LinkScenarioDemand records which demand entries a scenario covers.
	LinkScenarioDemand(ctx context.Context, scenarioID uuid.UUID, demandIDs []uint) error

	// UpdateRunStatus transitions a run's status.
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.PlanningRunStatus) error

	// AcceptScenarioAsPlanTasks materializes a scenario's blocks into
	// executable plan tasks and marks the run accepted. Returns the number
	// of tasks created.
	AcceptScenarioAsPlanTasks(ctx context.Context, runID, scenarioID uuid.UUID) (int, error)

	// CreateWorkers persists new (temporary) workers, filling in their ids.
	CreateWorkers(ctx context.Context, workers []*models.Worker) error

	// CommitReplanBlocks deletes the non-completed plan tasks of a
	// schedule and persists the operator-chosen replacement entries,
	// creating any named temporary workers first.
	CommitReplanBlocks(ctx context.Context, scenarioID uuid.UUID, newWorkers []models.Worker, entries []models.PlanTask) error

	// InsertProficiencyAdjustment applies a proposed level change and
	// writes its history row atomically.
	InsertProficiencyAdjustment(ctx context.Context, prof *models.WorkerProficiency, history *models.ProficiencyHistory) error

	// AppendOutputHistory records one (output, ts) sample for a plan task.
	AppendOutputHistory(ctx context.Context, planTaskID uuid.UUID, output int, ts time.Time) error

	// AppendProficiencyHistory writes a standalone history row (used for
	// manual overrides that don't also change WorkerProficiency via
	// InsertProficiencyAdjustment, e.g. a rejection record).
	AppendProficiencyHistory(ctx context.Context, history *models.ProficiencyHistory) error

	// MarkPlanTaskStarted records a block_started production event.
	MarkPlanTaskStarted(ctx context.Context, planTaskID uuid.UUID, startedAt time.Time) error

	// MarkPlanTaskCompleted records a block_completed production event and
	// advances the owning demand entry's status when appropriate.
	MarkPlanTaskCompleted(ctx context.Context, planTaskID uuid.UUID, actualOutput int, completedAt time.Time) error
}

// Repository is the full port: everything the planning engine, replan
// engine, validator, proficiency engine, and capacity analyzer need.
type Repository interface {
	Reader
	Writer
}
