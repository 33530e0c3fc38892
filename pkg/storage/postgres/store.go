// Package postgres implements pkg/repository.Repository over
// GORM/Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zainhoda/sij-manager-sub003/pkg/models"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
)

type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore initializes GORM connection and AutoMigrates schemas.
func NewPostgresStore(connString string) (*PostgresStore, error) {
	config := &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Info),
		PrepareStmt: true, // cache prepared statements
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(
		&models.Product{},
		&models.ProductStep{},
		&models.StepDependency{},
		&models.BuildVersion{},
		&models.Equipment{},
		&models.Worker{},
		&models.EquipmentCertification{},
		&models.DemandEntry{},
		&models.PlanningRun{},
		&models.PlanningScenario{},
		&models.ScenarioDemandLink{},
		&models.PlanTask{},
		&models.WorkerProficiency{},
		&models.ProficiencyHistory{},
		&models.AssignmentOutputHistory{},
	)
	if err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ repository.Repository = (*PostgresStore)(nil)

// --- Reader ---

func (s *PostgresStore) GetDemandEntries(ctx context.Context, filter repository.DemandFilter) ([]models.DemandEntry, error) {
	var entries []models.DemandEntry
	q := s.db.WithContext(ctx)
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if result := q.Order("due_date asc").Find(&entries); result.Error != nil {
		return nil, fmt.Errorf("get demand entries: %w", result.Error)
	}
	return entries, nil
}

func (s *PostgresStore) GetBOMStepsWithDeps(ctx context.Context, productID uint) (repository.BOMSteps, error) {
	var steps []models.ProductStep
	if result := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("sequence asc").Find(&steps); result.Error != nil {
		return repository.BOMSteps{}, fmt.Errorf("get bom steps: %w", result.Error)
	}
	if len(steps) == 0 {
		return repository.BOMSteps{ProductID: productID}, nil
	}
	stepIDs := make([]uint, len(steps))
	for i, st := range steps {
		stepIDs[i] = st.ID
	}
	var deps []models.StepDependency
	if result := s.db.WithContext(ctx).Where("step_id IN ?", stepIDs).Find(&deps); result.Error != nil {
		return repository.BOMSteps{}, fmt.Errorf("get step dependencies: %w", result.Error)
	}
	depsByStep := make(map[uint][]models.StepDependency, len(steps))
	for _, d := range deps {
		depsByStep[d.StepID] = append(depsByStep[d.StepID], d)
	}
	out := repository.BOMSteps{ProductID: productID, Steps: make([]repository.StepWithDeps, len(steps))}
	for i, st := range steps {
		out.Steps[i] = repository.StepWithDeps{Step: st, Dependencies: depsByStep[st.ID]}
	}
	return out, nil
}

func (s *PostgresStore) GetActiveWorkers(ctx context.Context) ([]models.Worker, error) {
	var workers []models.Worker
	if result := s.db.WithContext(ctx).Where("status = ?", models.WorkerActive).Order("id asc").Find(&workers); result.Error != nil {
		return nil, fmt.Errorf("get active workers: %w", result.Error)
	}
	return workers, nil
}

func (s *PostgresStore) GetEquipment(ctx context.Context) ([]models.Equipment, error) {
	var equipment []models.Equipment
	if result := s.db.WithContext(ctx).Order("id asc").Find(&equipment); result.Error != nil {
		return nil, fmt.Errorf("get equipment: %w", result.Error)
	}
	return equipment, nil
}

func (s *PostgresStore) GetCertifications(ctx context.Context, now time.Time) ([]models.EquipmentCertification, error) {
	var certs []models.EquipmentCertification
	if result := s.db.WithContext(ctx).Find(&certs); result.Error != nil {
		return nil, fmt.Errorf("get certifications: %w", result.Error)
	}
	return certs, nil
}

func (s *PostgresStore) GetProficiencies(ctx context.Context, workerIDs, stepIDs []uint) ([]models.WorkerProficiency, error) {
	var profs []models.WorkerProficiency
	q := s.db.WithContext(ctx)
	if len(workerIDs) > 0 {
		q = q.Where("worker_id IN ?", workerIDs)
	}
	if len(stepIDs) > 0 {
		q = q.Where("step_id IN ?", stepIDs)
	}
	if result := q.Find(&profs); result.Error != nil {
		return nil, fmt.Errorf("get proficiencies: %w", result.Error)
	}
	return profs, nil
}

func (s *PostgresStore) GetSchedule(ctx context.Context, runID uuid.UUID) (*models.PlanningRun, *models.PlanningScenario, error) {
	run, err := s.GetPlanningRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run.AcceptedScenarioID == nil {
		return run, nil, nil
	}
	scenario, err := s.GetScenario(ctx, *run.AcceptedScenarioID)
	if err != nil {
		return nil, nil, err
	}
	return run, scenario, nil
}

func (s *PostgresStore) GetPlanTasks(ctx context.Context, scenarioID uuid.UUID) ([]models.PlanTask, error) {
	var tasks []models.PlanTask
	if result := s.db.WithContext(ctx).Where("scenario_id = ?", scenarioID).Order("date asc, start_time asc").Find(&tasks); result.Error != nil {
		return nil, fmt.Errorf("get plan tasks: %w", result.Error)
	}
	return tasks, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, demandID uint) (*models.DemandEntry, error) {
	var entry models.DemandEntry
	result := s.db.WithContext(ctx).First(&entry, "id = ?", demandID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, result.Error
	}
	return &entry, nil
}

func (s *PostgresStore) GetPlanningRun(ctx context.Context, id uuid.UUID) (*models.PlanningRun, error) {
	var run models.PlanningRun
	result := s.db.WithContext(ctx).Preload("Scenarios").First(&run, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, result.Error
	}
	return &run, nil
}

func (s *PostgresStore) ListPlanningRuns(ctx context.Context, status *models.PlanningRunStatus, limit int) ([]models.PlanningRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.PlanningRun
	q := s.db.WithContext(ctx)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if result := q.Order("created_at desc").Limit(limit).Find(&runs); result.Error != nil {
		return nil, fmt.Errorf("list planning runs: %w", result.Error)
	}
	return runs, nil
}

func (s *PostgresStore) GetActiveRun(ctx context.Context) (*models.PlanningRun, error) {
	var run models.PlanningRun
	result := s.db.WithContext(ctx).
		Where("status = ?", models.RunAccepted).
		Order("updated_at desc").
		First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &run, nil
}

func (s *PostgresStore) GetScenario(ctx context.Context, id uuid.UUID) (*models.PlanningScenario, error) {
	var scenario models.PlanningScenario
	result := s.db.WithContext(ctx).First(&scenario, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, result.Error
	}
	return &scenario, nil
}

func (s *PostgresStore) ListScenariosForRun(ctx context.Context, runID uuid.UUID) ([]models.PlanningScenario, error) {
	var scenarios []models.PlanningScenario
	if result := s.db.WithContext(ctx).Where("planning_run_id = ?", runID).Order("created_at asc").Find(&scenarios); result.Error != nil {
		return nil, fmt.Errorf("list scenarios for run: %w", result.Error)
	}
	return scenarios, nil
}

func (s *PostgresStore) GetOutputHistory(ctx context.Context, planTaskID uuid.UUID) ([]models.AssignmentOutputHistory, error) {
	var history []models.AssignmentOutputHistory
	if result := s.db.WithContext(ctx).Where("plan_task_id = ?", planTaskID).Order("recorded_at asc").Find(&history); result.Error != nil {
		return nil, fmt.Errorf("get output history: %w", result.Error)
	}
	return history, nil
}

func (s *PostgresStore) GetCompletedWork(ctx context.Context, since time.Time) ([]models.PlanTask, error) {
	var tasks []models.PlanTask
	result := s.db.WithContext(ctx).
		Where("completed_at IS NOT NULL AND completed_at >= ?", since).
		Order("completed_at asc").
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("get completed work: %w", result.Error)
	}
	return tasks, nil
}

func (s *PostgresStore) GetStartedIncompleteTasks(ctx context.Context) ([]models.PlanTask, error) {
	var tasks []models.PlanTask
	result := s.db.WithContext(ctx).
		Where("started_at IS NOT NULL AND completed_at IS NULL").
		Order("started_at asc").
		Find(&tasks)
	if result.Error != nil {
		return nil, fmt.Errorf("get started incomplete tasks: %w", result.Error)
	}
	return tasks, nil
}

func (s *PostgresStore) GetOpenPlanDemandIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	result := s.db.WithContext(ctx).Model(&models.PlanTask{}).
		Distinct("demand_entry_id").
		Where("completed_at IS NULL").
		Order("demand_entry_id asc").
		Pluck("demand_entry_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("get open plan demand ids: %w", result.Error)
	}
	return ids, nil
}

// --- Writer ---

func (s *PostgresStore) CreatePlanningRun(ctx context.Context, run *models.PlanningRun) error {
	if result := s.db.WithContext(ctx).Create(run); result.Error != nil {
		return fmt.Errorf("create planning run: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) CreateScenario(ctx context.Context, scenario *models.PlanningScenario) error {
	if result := s.db.WithContext(ctx).Create(scenario); result.Error != nil {
		return fmt.Errorf("create scenario: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) LinkScenarioDemand(ctx context.Context, scenarioID uuid.UUID, demandIDs []uint) error {
	if len(demandIDs) == 0 {
		return nil
	}
	links := make([]models.ScenarioDemandLink, len(demandIDs))
	for i, id := range demandIDs {
		links[i] = models.ScenarioDemandLink{ScenarioID: scenarioID, DemandEntryID: id}
	}
	if result := s.db.WithContext(ctx).Create(&links); result.Error != nil {
		return fmt.Errorf("link scenario demand: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.PlanningRunStatus) error {
	result := s.db.WithContext(ctx).Model(&models.PlanningRun{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update run status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AcceptScenarioAsPlanTasks materializes a scenario's blocks into PlanTasks
// and marks the owning run accepted, inside one transaction.
func (s *PostgresStore) AcceptScenarioAsPlanTasks(ctx context.Context, runID, scenarioID uuid.UUID) (int, error) {
	var created int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var scenario models.PlanningScenario
		if result := tx.First(&scenario, "id = ?", scenarioID); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return result.Error
		}

		tasks := make([]models.PlanTask, 0, len(scenario.ScheduleBlocks))
		for _, b := range scenario.ScheduleBlocks {
			blockDate, err := time.Parse("2006-01-02", b.Date)
			if err != nil {
				return fmt.Errorf("parse block date %q: %w", b.Date, err)
			}
			tasks = append(tasks, models.PlanTask{
				PlanningRunID: runID,
				ScenarioID:    scenarioID,
				DemandEntryID: b.DemandEntryID,
				ProductStepID: b.ProductStepID,
				BatchNumber:   b.BatchNumber,
				BatchQuantity: b.BatchQuantity,
				Date:          blockDate,
				StartTime:     b.StartTime,
				EndTime:       b.EndTime,
				PlannedOutput: b.PlannedOutput,
				WorkerIDs:     models.UintList(b.WorkerIDs),
			})
		}
		if len(tasks) > 0 {
			if result := tx.Create(&tasks); result.Error != nil {
				return fmt.Errorf("materialize plan tasks: %w", result.Error)
			}
		}
		created = len(tasks)

		demandIDs := make([]uint, 0, len(tasks))
		seen := make(map[uint]bool)
		for _, t := range tasks {
			if !seen[t.DemandEntryID] {
				seen[t.DemandEntryID] = true
				demandIDs = append(demandIDs, t.DemandEntryID)
			}
		}
		if len(demandIDs) > 0 {
			if result := tx.Model(&models.DemandEntry{}).
				Where("id IN ? AND status = ?", demandIDs, models.DemandPending).
				Update("status", models.DemandPlanned); result.Error != nil {
				return fmt.Errorf("mark demand planned: %w", result.Error)
			}
		}

		if result := tx.Model(&models.PlanningRun{}).Where("id = ?", runID).Updates(map[string]interface{}{
			"status":               models.RunAccepted,
			"accepted_scenario_id": scenarioID,
		}); result.Error != nil {
			return fmt.Errorf("mark run accepted: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *PostgresStore) CreateWorkers(ctx context.Context, workers []*models.Worker) error {
	if len(workers) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range workers {
			if result := tx.Create(w); result.Error != nil {
				if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
					return repository.ErrConflict
				}
				return fmt.Errorf("create worker: %w", result.Error)
			}
		}
		return nil
	})
}

// CommitReplanBlocks deletes non-completed plan tasks for a scenario and
// inserts the operator-approved replacement entries, creating any
// newly-named temporary workers first.
func (s *PostgresStore) CommitReplanBlocks(ctx context.Context, scenarioID uuid.UUID, newWorkers []models.Worker, entries []models.PlanTask) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range newWorkers {
			if result := tx.Create(&newWorkers[i]); result.Error != nil {
				return fmt.Errorf("create temporary worker: %w", result.Error)
			}
		}
		if result := tx.Where("scenario_id = ? AND completed_at IS NULL", scenarioID).Delete(&models.PlanTask{}); result.Error != nil {
			return fmt.Errorf("delete stale plan tasks: %w", result.Error)
		}
		if len(entries) > 0 {
			if result := tx.Create(&entries); result.Error != nil {
				return fmt.Errorf("insert replan entries: %w", result.Error)
			}
		}
		return nil
	})
}

func (s *PostgresStore) InsertProficiencyAdjustment(ctx context.Context, prof *models.WorkerProficiency, history *models.ProficiencyHistory) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Save(prof); result.Error != nil {
			return fmt.Errorf("save proficiency: %w", result.Error)
		}
		if result := tx.Create(history); result.Error != nil {
			return fmt.Errorf("create proficiency history: %w", result.Error)
		}
		return nil
	})
}

func (s *PostgresStore) AppendOutputHistory(ctx context.Context, planTaskID uuid.UUID, output int, ts time.Time) error {
	row := models.AssignmentOutputHistory{PlanTaskID: planTaskID, Output: output, RecordedAt: ts}
	if result := s.db.WithContext(ctx).Create(&row); result.Error != nil {
		return fmt.Errorf("append output history: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) AppendProficiencyHistory(ctx context.Context, history *models.ProficiencyHistory) error {
	if result := s.db.WithContext(ctx).Create(history); result.Error != nil {
		return fmt.Errorf("append proficiency history: %w", result.Error)
	}
	return nil
}

func (s *PostgresStore) MarkPlanTaskStarted(ctx context.Context, planTaskID uuid.UUID, startedAt time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.PlanTask{}).Where("id = ?", planTaskID).Update("started_at", startedAt)
	if result.Error != nil {
		return fmt.Errorf("mark plan task started: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkPlanTaskCompleted records completion and, when every plan task for the
// owning demand entry is now complete, advances its status.
func (s *PostgresStore) MarkPlanTaskCompleted(ctx context.Context, planTaskID uuid.UUID, actualOutput int, completedAt time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.PlanTask
		if result := tx.First(&task, "id = ?", planTaskID); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return result.Error
		}
		if result := tx.Model(&task).Updates(map[string]interface{}{
			"actual_output": actualOutput,
			"completed_at":  completedAt,
		}); result.Error != nil {
			return fmt.Errorf("mark plan task completed: %w", result.Error)
		}

		var remaining int64
		if result := tx.Model(&models.PlanTask{}).
			Where("demand_entry_id = ? AND completed_at IS NULL", task.DemandEntryID).
			Count(&remaining); result.Error != nil {
			return fmt.Errorf("count remaining plan tasks: %w", result.Error)
		}
		if remaining == 0 {
			if result := tx.Model(&models.DemandEntry{}).Where("id = ?", task.DemandEntryID).Update("status", models.DemandCompleted); result.Error != nil {
				return fmt.Errorf("advance demand status: %w", result.Error)
			}
		} else if result := tx.Model(&models.DemandEntry{}).
			Where("id = ? AND status = ?", task.DemandEntryID, models.DemandPlanned).
			Update("status", models.DemandInProgress); result.Error != nil {
			return fmt.Errorf("advance demand status: %w", result.Error)
		}
		return nil
	})
}
