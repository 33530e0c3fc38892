// Package planner is the planning engine: it snapshots demand, BOM steps,
// workers, equipment, and certifications from the repository once, generates
// one scenario per built-in strategy through the scheduling kernel, and
// persists the run with its scenarios in a single write pass at the end.
// Acceptance and replan orchestration live here too, so the HTTP layer never
// talks to the kernel directly.
package planner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/depstate"
	"github.com/zainhoda/sij-manager-sub003/pkg/kernel"
	"github.com/zainhoda/sij-manager-sub003/pkg/logger"
	"github.com/zainhoda/sij-manager-sub003/pkg/metrics"
	"github.com/zainhoda/sij-manager-sub003/pkg/models"
	"github.com/zainhoda/sij-manager-sub003/pkg/planerr"
	"github.com/zainhoda/sij-manager-sub003/pkg/proficiency"
	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
	"github.com/zainhoda/sij-manager-sub003/pkg/replan"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
	"github.com/zainhoda/sij-manager-sub003/pkg/resilience"
	"github.com/zainhoda/sij-manager-sub003/pkg/strategy"
	"github.com/zainhoda/sij-manager-sub003/pkg/validate"
)

// AcceptLocker serializes scenario acceptance across planner nodes. Nil is
// acceptable for single-node deployments and tests.
type AcceptLocker interface {
	Acquire(ctx context.Context, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, token string) error
}

// Engine wires the scheduling kernel to the repository and owns the
// run/accept/replan lifecycle.
type Engine struct {
	repo        repository.Repository
	lock        AcceptLocker
	breaker     *resilience.CircuitBreaker
	calCfg      calendar.Config
	holiday     calendar.HolidayFunc
	concurrency int
}

// New constructs an Engine. lock may be nil.
func New(repo repository.Repository, lock AcceptLocker) *Engine {
	concurrency := runtime.NumCPU()
	if concurrency > len(strategy.All()) {
		concurrency = len(strategy.All())
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		repo:        repo,
		lock:        lock,
		breaker:     resilience.NewCircuitBreaker("repository", resilience.DefaultCircuitBreakerConfig()),
		calCfg:      calendar.DefaultConfig(),
		concurrency: concurrency,
	}
}

// WithCalendar overrides the default work-calendar policy.
func (e *Engine) WithCalendar(cfg calendar.Config, holiday calendar.HolidayFunc) *Engine {
	e.calCfg = cfg
	e.holiday = holiday
	return e
}

// RunRequest is the input to GenerateRun.
type RunRequest struct {
	Name      string
	StartDate calendar.Date
	EndDate   calendar.Date
	DemandIDs []uint // empty means "all pending demand"
	CreatedBy string
	Now       time.Time
}

// snapshot is one planning run's immutable input set, read once up front.
type snapshot struct {
	demand    []kernel.DemandInput
	bomSteps  map[uint][]kernel.StepInput
	workers   []kernel.WorkerInput
	equipment []kernel.EquipmentInput
	certs     []kernel.CertInput
}

// GenerateRun creates a planning run: it loads the snapshot, generates one
// scenario per built-in strategy, and persists everything only after all
// scenarios completed. A circular dependency abandons the run; nothing is
// written.
func (e *Engine) GenerateRun(ctx context.Context, req RunRequest) (*models.PlanningRun, error) {
	if req.EndDate.Before(req.StartDate) {
		return nil, &planerr.PreconditionError{Message: "planning window end precedes start"}
	}
	if req.Name == "" {
		return nil, &planerr.ValidationError{Field: "name", Message: "name is required"}
	}

	snap, err := e.loadSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(snap.demand) == 0 {
		return nil, &planerr.PreconditionError{Message: "no demand entries to plan"}
	}

	configs := strategy.All()
	results := make([]*kernel.ScenarioResult, len(configs))
	errs := make([]error, len(configs))

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, cfg strategy.Config) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = kernel.Run(kernel.ScenarioInput{
				PlanningWindow: [2]calendar.Date{req.StartDate, req.EndDate},
				Demand:         snap.demand,
				BOMSteps:       snap.bomSteps,
				Workers:        snap.workers,
				Equipment:      snap.equipment,
				Certifications: snap.certs,
				Strategy:       cfg,
				CalendarConfig: e.calCfg,
				Holiday:        e.holiday,
				Now:            req.Now,
			})
		}(i, cfg)
	}
	wg.Wait()

	for i, cfg := range configs {
		if errs[i] != nil {
			metrics.RecordScenario(string(cfg.Name), "infeasible", 0, 0, 0, 0, 0)
			return nil, errs[i]
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := &models.PlanningRun{
		Name:      req.Name,
		StartDate: req.StartDate.ToTime(),
		EndDate:   req.EndDate.ToTime(),
		Status:    models.RunPending,
		CreatedBy: req.CreatedBy,
	}
	if err := e.repo.CreatePlanningRun(ctx, run); err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}

	demandIDs := make([]uint, len(snap.demand))
	for i, d := range snap.demand {
		demandIDs[i] = d.ID
	}

	for i, cfg := range configs {
		sr := results[i]
		outcome := "ok"
		if len(sr.Warnings) > 0 {
			outcome = "partial"
		}
		laborHours := float64(sr.Metrics.LaborMinutes) / 60.0
		overtimeHours := float64(sr.Metrics.OvertimeMinutes) / 60.0
		metrics.RecordScenario(string(cfg.Name), outcome,
			sr.Metrics.DeadlinesMet, sr.Metrics.DeadlinesMissed,
			laborHours, overtimeHours, sr.Iterations)

		scenario := &models.PlanningScenario{
			PlanningRunID:            run.ID,
			Name:                     scenarioName(cfg.Name),
			Strategy:                 models.ScenarioStrategy(cfg.Name),
			AllowOvertime:            cfg.AllowOvertime,
			OvertimeLimitHoursPerDay: float64(cfg.OvertimeCapMinutesPerDay) / 60.0,
			LaborHours:               laborHours,
			OvertimeHours:            overtimeHours,
			LaborCost:                sr.Metrics.LaborCost,
			EquipmentCost:            sr.Metrics.EquipmentCost,
			DeadlinesMet:             sr.Metrics.DeadlinesMet,
			DeadlinesMissed:          sr.Metrics.DeadlinesMissed,
			LatestCompletionDate:     sr.Metrics.LatestCompletionDate.ToTime(),
			ScheduleBlocks:           BlocksToDTO(sr.Blocks),
			Warnings:                 models.StringList(sr.Warnings),
		}
		if err := e.repo.CreateScenario(ctx, scenario); err != nil {
			return nil, &planerr.IOError{Err: err, Retryable: true}
		}
		if err := e.repo.LinkScenarioDemand(ctx, scenario.ID, demandIDs); err != nil {
			return nil, &planerr.IOError{Err: err, Retryable: true}
		}
		run.Scenarios = append(run.Scenarios, *scenario)
	}

	logger.Info("planning run generated",
		zap.String("run_id", run.ID.String()),
		zap.Int("demand_entries", len(demandIDs)),
		zap.Int("scenarios", len(run.Scenarios)))
	return run, nil
}

func scenarioName(name strategy.Name) string {
	switch name {
	case strategy.MeetDeadlines:
		return "Meet deadlines"
	case strategy.MinimizeCost:
		return "Minimize cost"
	case strategy.Balanced:
		return "Balanced"
	}
	return string(name)
}

// loadSnapshot performs every repository read a run needs, behind the
// circuit breaker, before any scheduling work starts.
func (e *Engine) loadSnapshot(ctx context.Context, req RunRequest) (*snapshot, error) {
	snap := &snapshot{bomSteps: make(map[uint][]kernel.StepInput)}

	err := e.breaker.Execute(ctx, func() error {
		filter := repository.DemandFilter{Statuses: []models.DemandStatus{models.DemandPending}}
		if len(req.DemandIDs) > 0 {
			filter = repository.DemandFilter{IDs: req.DemandIDs}
		}
		entries, err := e.repo.GetDemandEntries(ctx, filter)
		if err != nil {
			return err
		}

		for _, d := range entries {
			if _, loaded := snap.bomSteps[d.ProductID]; !loaded {
				bom, err := e.repo.GetBOMStepsWithDeps(ctx, d.ProductID)
				if err != nil {
					return err
				}
				snap.bomSteps[d.ProductID] = stepInputs(bom)
			}
			snap.demand = append(snap.demand, demandInput(d))
		}

		workers, err := e.repo.GetActiveWorkers(ctx)
		if err != nil {
			return err
		}
		for _, w := range workers {
			snap.workers = append(snap.workers, workerInput(w))
		}

		equipment, err := e.repo.GetEquipment(ctx)
		if err != nil {
			return err
		}
		for _, eq := range equipment {
			cost := 0.0
			if eq.HourlyCost != nil {
				cost = *eq.HourlyCost
			}
			snap.equipment = append(snap.equipment, kernel.EquipmentInput{ID: eq.ID, HourlyCost: cost})
		}

		certs, err := e.repo.GetCertifications(ctx, req.Now)
		if err != nil {
			return err
		}
		for _, c := range certs {
			snap.certs = append(snap.certs, kernel.CertInput{
				WorkerID:    c.WorkerID,
				EquipmentID: c.EquipmentID,
				ExpiresAt:   c.ExpiresAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	return snap, nil
}

func demandInput(d models.DemandEntry) kernel.DemandInput {
	pref := depstate.BatchPreference{}
	if d.MinBatchSize != nil {
		pref.MinBatchSize = *d.MinBatchSize
	}
	if d.MaxBatchSize != nil {
		pref.MaxBatchSize = *d.MaxBatchSize
	}
	return kernel.DemandInput{
		ID:        d.ID,
		BOMID:     d.ProductID,
		Quantity:  d.Quantity,
		DueDate:   calendar.FromTime(d.DueDate),
		Priority:  d.Priority,
		BatchPref: pref,
	}
}

func stepInputs(bom repository.BOMSteps) []kernel.StepInput {
	steps := make([]kernel.StepInput, 0, len(bom.Steps))
	for _, sw := range bom.Steps {
		deps := make([]depstate.Dependency, 0, len(sw.Dependencies))
		for _, d := range sw.Dependencies {
			deps = append(deps, depstate.Dependency{
				DependsOnStep: d.DependsOnStepID,
				Kind:          depstate.Kind(d.Kind),
			})
		}
		steps = append(steps, kernel.StepInput{
			ID:                  sw.Step.ID,
			BOMID:               bom.ProductID,
			Name:                sw.Step.Name,
			Category:            string(sw.Step.Category),
			TimePerPieceSeconds: sw.Step.TimePerPieceSeconds,
			Sequence:            sw.Step.Sequence,
			EquipmentID:         sw.Step.EquipmentID,
			Dependencies:        deps,
		})
	}
	return steps
}

func workerInput(w models.Worker) kernel.WorkerInput {
	cost := 0.0
	if w.CostPerHour != nil {
		cost = *w.CostPerHour
	}
	return kernel.WorkerInput{
		ID:          w.ID,
		Status:      qualify.WorkerStatus(w.Status),
		CostPerHour: cost,
	}
}

// BlocksToDTO converts kernel blocks into the serialized scenario blob form.
func BlocksToDTO(blocks []kernel.Block) models.ScheduleBlockList {
	out := make(models.ScheduleBlockList, len(blocks))
	for i, b := range blocks {
		out[i] = models.ScheduleBlockDTO{
			DemandEntryID:    b.DemandID,
			ProductStepID:    b.BOMStepID,
			BatchNumber:      b.BatchNumber,
			BatchQuantity:    b.BatchQuantity,
			Date:             b.Date.String(),
			StartTime:        calendar.MinutesToTime(b.StartMinute),
			EndTime:          calendar.MinutesToTime(b.EndMinute),
			PlannedOutput:    b.PlannedOutput,
			WorkerIDs:        b.WorkerIDs,
			AssignmentReason: b.AssignmentReason,
			IsOvertime:       b.IsOvertime,
		}
	}
	return out
}

// Accept commits one scenario of a run as executable plan tasks. It refuses
// when the scenario does not belong to the run, when the run was already
// accepted or archived, or when any of the scenario's demand entries still
// has open plan tasks from a previously accepted run.
func (e *Engine) Accept(ctx context.Context, runID, scenarioID uuid.UUID) (int, error) {
	if e.lock != nil {
		token := uuid.New().String()
		ok, err := e.lock.Acquire(ctx, token, 30*time.Second)
		if err != nil {
			return 0, &planerr.IOError{Err: err, Retryable: true}
		}
		if !ok {
			return 0, &planerr.ConflictError{Message: "another acceptance is in progress"}
		}
		defer func() {
			if err := e.lock.Release(context.WithoutCancel(ctx), token); err != nil {
				logger.Warn("failed to release accept lock", zap.Error(err))
			}
		}()
	}

	run, err := e.repo.GetPlanningRun(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		return 0, &planerr.IOError{Err: err, Retryable: true}
	}
	switch run.Status {
	case models.RunAccepted:
		return 0, &planerr.ConflictError{Message: "run already accepted"}
	case models.RunArchived:
		return 0, &planerr.PreconditionError{Message: "run is archived"}
	}

	scenario, err := e.repo.GetScenario(ctx, scenarioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		return 0, &planerr.IOError{Err: err, Retryable: true}
	}
	if scenario.PlanningRunID != runID {
		return 0, &planerr.PreconditionError{Message: "scenario does not belong to this run"}
	}

	openIDs, err := e.repo.GetOpenPlanDemandIDs(ctx)
	if err != nil {
		return 0, &planerr.IOError{Err: err, Retryable: true}
	}
	open := make(map[uint]bool, len(openIDs))
	for _, id := range openIDs {
		open[id] = true
	}
	for _, b := range scenario.ScheduleBlocks {
		if open[b.DemandEntryID] {
			return 0, &planerr.ConflictError{Message: fmt.Sprintf("demand entry %d already has open plan tasks from an accepted run", b.DemandEntryID)}
		}
	}

	created, err := e.repo.AcceptScenarioAsPlanTasks(ctx, runID, scenarioID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		return 0, &planerr.IOError{Err: err, Retryable: true}
	}
	logger.Info("scenario accepted",
		zap.String("run_id", runID.String()),
		zap.String("scenario_id", scenarioID.String()),
		zap.Int("tasks_created", created))
	return created, nil
}

// Archive marks a run archived.
func (e *Engine) Archive(ctx context.Context, runID uuid.UUID) error {
	run, err := e.repo.GetPlanningRun(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return &planerr.IOError{Err: err, Retryable: true}
	}
	if run.Status == models.RunArchived {
		return &planerr.ConflictError{Message: "run already archived"}
	}
	if err := e.repo.UpdateRunStatus(ctx, runID, models.RunArchived); err != nil {
		return &planerr.IOError{Err: err, Retryable: true}
	}
	return nil
}

// ReplanRequest is the input to Replan: the accepted run to revise, the
// demand entry (order) being replanned, and the current wall time.
type ReplanRequest struct {
	RunID         uuid.UUID
	DemandEntryID uint
	Now           time.Time
}

// Replan regenerates the remaining work for one order starting at the next
// legal work moment, returning the draft and overtime suggestions.
func (e *Engine) Replan(ctx context.Context, req ReplanRequest) (*replan.Result, error) {
	input, err := e.buildReplanInput(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := replan.Run(*input)
	if err != nil {
		metrics.RecordReplan("infeasible", 0)
		return nil, err
	}
	otHours := 0.0
	for _, s := range res.OvertimeSuggestions {
		otHours += float64(s.EndMinute-s.StartMinute) / 60.0
	}
	metrics.RecordReplan("ok", otHours)
	return res, nil
}

func (e *Engine) buildReplanInput(ctx context.Context, req ReplanRequest) (*replan.Input, error) {
	_, scenario, err := e.repo.GetSchedule(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	if scenario == nil {
		return nil, &planerr.PreconditionError{Message: "run has no accepted scenario to replan"}
	}

	order, err := e.repo.GetOrder(ctx, req.DemandEntryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}

	tasks, err := e.repo.GetPlanTasks(ctx, scenario.ID)
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	var completed []replan.CompletedStepBatch
	for _, t := range tasks {
		if t.DemandEntryID != order.ID || t.CompletedAt == nil {
			continue
		}
		endMinute, err := calendar.TimeToMinutes(t.EndTime)
		if err != nil {
			endMinute = e.calCfg.AfternoonEndMinute
		}
		startMinute, err := calendar.TimeToMinutes(t.StartTime)
		if err != nil {
			startMinute = e.calCfg.MorningStartMinute
		}
		m := depstate.Moment{Date: calendar.FromTime(t.Date), Minute: endMinute}
		completed = append(completed, replan.CompletedStepBatch{
			StepID:       t.ProductStepID,
			Batch:        t.BatchNumber,
			ActualOutput: t.ActualOutput,
			CompletedAt:  &m,
			Started:      true,
			StartedAt:    &depstate.Moment{Date: calendar.FromTime(t.Date), Minute: startMinute},
		})
	}

	bom, err := e.repo.GetBOMStepsWithDeps(ctx, order.ProductID)
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}

	workers, err := e.repo.GetActiveWorkers(ctx)
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	workerInputs := make([]kernel.WorkerInput, len(workers))
	for i, w := range workers {
		workerInputs[i] = workerInput(w)
	}

	equipment, err := e.repo.GetEquipment(ctx)
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	equipInputs := make([]kernel.EquipmentInput, len(equipment))
	for i, eq := range equipment {
		cost := 0.0
		if eq.HourlyCost != nil {
			cost = *eq.HourlyCost
		}
		equipInputs[i] = kernel.EquipmentInput{ID: eq.ID, HourlyCost: cost}
	}

	certs, err := e.repo.GetCertifications(ctx, req.Now)
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	certInputs := make([]kernel.CertInput, len(certs))
	for i, c := range certs {
		certInputs[i] = kernel.CertInput{WorkerID: c.WorkerID, EquipmentID: c.EquipmentID, ExpiresAt: c.ExpiresAt}
	}

	pref := depstate.BatchPreference{}
	if order.MinBatchSize != nil {
		pref.MinBatchSize = *order.MinBatchSize
	}
	if order.MaxBatchSize != nil {
		pref.MaxBatchSize = *order.MaxBatchSize
	}

	return &replan.Input{
		Now:            calendar.FromTime(req.Now),
		NowMinute:      req.Now.Hour()*60 + req.Now.Minute(),
		Clock:          req.Now,
		DueDate:        calendar.FromTime(order.DueDate),
		BOMSteps:       stepInputs(bom),
		Quantity:       order.Quantity,
		Completed:      completed,
		BatchPref:      pref,
		Workers:        workerInputs,
		Equipment:      equipInputs,
		Certifications: certInputs,
		Strategy: strategy.Config{
			Name:                     strategy.Name(scenario.Strategy),
			AllowOvertime:            scenario.AllowOvertime,
			OvertimeCapMinutesPerDay: int(scenario.OvertimeLimitHoursPerDay * 60),
			PriorityWeight:           1.0,
		},
		CalendarConfig: e.calCfg,
		Holiday:        e.holiday,
		DemandID:       order.ID,
		BOMID:          order.ProductID,
	}, nil
}

// CommitEntry is one operator-approved replacement block in a replan commit.
type CommitEntry struct {
	DemandEntryID  uint
	ProductStepID  uint
	BatchNumber    int
	BatchQuantity  int
	Date           calendar.Date
	StartMinute    int
	EndMinute      int
	PlannedOutput  int
	WorkerIDs      []uint
	NewWorkerNames []string
}

// CommitRequest carries the operator's chosen subset back.
type CommitRequest struct {
	RunID   uuid.UUID
	Entries []CommitEntry
	Now     time.Time
}

// CommitReplan creates any newly-named temporary workers, validates the
// chosen entries, deletes the schedule's non-completed plan tasks, and
// persists the replacements.
func (e *Engine) CommitReplan(ctx context.Context, req CommitRequest) ([]models.PlanTask, error) {
	_, scenario, err := e.repo.GetSchedule(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	if scenario == nil {
		return nil, &planerr.PreconditionError{Message: "run has no accepted scenario"}
	}

	names := make(map[string]bool)
	for _, entry := range req.Entries {
		for _, n := range entry.NewWorkerNames {
			names[n] = true
		}
	}
	newWorkers := make([]*models.Worker, 0, len(names))
	for n := range names {
		newWorkers = append(newWorkers, &models.Worker{Name: n, Status: models.WorkerActive})
	}
	sort.Slice(newWorkers, func(i, j int) bool { return newWorkers[i].Name < newWorkers[j].Name })
	if err := e.repo.CreateWorkers(ctx, newWorkers); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &planerr.ConflictError{Message: "temporary worker name already exists"}
		}
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	idByName := make(map[string]uint, len(newWorkers))
	for _, w := range newWorkers {
		idByName[w.Name] = w.ID
	}

	entries := make([]models.PlanTask, 0, len(req.Entries))
	for _, entry := range req.Entries {
		workerIDs := append([]uint(nil), entry.WorkerIDs...)
		for _, n := range entry.NewWorkerNames {
			workerIDs = append(workerIDs, idByName[n])
		}
		entries = append(entries, models.PlanTask{
			PlanningRunID: req.RunID,
			ScenarioID:    scenario.ID,
			DemandEntryID: entry.DemandEntryID,
			ProductStepID: entry.ProductStepID,
			BatchNumber:   entry.BatchNumber,
			BatchQuantity: entry.BatchQuantity,
			Date:          entry.Date.ToTime(),
			StartTime:     calendar.MinutesToTime(entry.StartMinute),
			EndTime:       calendar.MinutesToTime(entry.EndMinute),
			PlannedOutput: entry.PlannedOutput,
			WorkerIDs:     models.UintList(workerIDs),
		})
	}

	if res := e.validateEntries(ctx, req, entries); !res.OK() {
		return nil, &planerr.ValidationError{Message: fmt.Sprintf("invalid replan entries: %v", res.Errors)}
	}

	if err := e.repo.CommitReplanBlocks(ctx, scenario.ID, nil, entries); err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}
	return e.repo.GetPlanTasks(ctx, scenario.ID)
}

// validateEntries runs the schedule validator over the proposed replacement
// blocks against the current worker/step/certification catalog.
func (e *Engine) validateEntries(ctx context.Context, req CommitRequest, entries []models.PlanTask) validate.Result {
	workers, err := e.repo.GetActiveWorkers(ctx)
	if err != nil {
		return validate.Result{Errors: []string{fmt.Sprintf("loading workers: %v", err)}}
	}
	knownWorkers := make(map[uint]qualify.Worker, len(workers))
	for _, w := range workers {
		knownWorkers[w.ID] = qualify.Worker{ID: w.ID, Status: qualify.WorkerStatus(w.Status)}
	}

	knownSteps := make(map[uint]qualify.Step)
	seenProducts := make(map[uint]bool)
	for _, entry := range entries {
		order, err := e.repo.GetOrder(ctx, entry.DemandEntryID)
		if err != nil {
			continue
		}
		if seenProducts[order.ProductID] {
			continue
		}
		seenProducts[order.ProductID] = true
		bom, err := e.repo.GetBOMStepsWithDeps(ctx, order.ProductID)
		if err != nil {
			continue
		}
		for _, sw := range bom.Steps {
			knownSteps[sw.Step.ID] = qualify.Step{EquipmentID: sw.Step.EquipmentID}
		}
	}

	certModels, err := e.repo.GetCertifications(ctx, req.Now)
	if err != nil {
		return validate.Result{Errors: []string{fmt.Sprintf("loading certifications: %v", err)}}
	}
	certs := make(map[qualify.CertKey]qualify.Certification, len(certModels))
	for _, c := range certModels {
		certs[qualify.CertKey{WorkerID: c.WorkerID, EquipmentID: c.EquipmentID}] = qualify.Certification{ExpiresAt: c.ExpiresAt}
	}

	blocks := make([]validate.Block, len(entries))
	for i, t := range entries {
		start, _ := calendar.TimeToMinutes(t.StartTime)
		end, _ := calendar.TimeToMinutes(t.EndTime)
		blocks[i] = validate.Block{
			ID:            uint(i + 1),
			StepID:        t.ProductStepID,
			WorkerIDs:     t.WorkerIDs,
			Date:          calendar.FromTime(t.Date),
			StartMinute:   start,
			EndMinute:     end,
			PlannedOutput: t.PlannedOutput,
		}
	}
	return validate.Validate(blocks, validate.Context{
		KnownWorkers:   knownWorkers,
		KnownSteps:     knownSteps,
		Certifications: certs,
		Now:            req.Now,
	})
}

// ProductivitySummary is the rollup returned by the worker-productivity
// endpoint.
type ProductivitySummary struct {
	WorkerID         uint               `json:"worker_id"`
	SampleSize       int                `json:"sample_size"`
	AvgEfficiencyPct float64            `json:"avg_efficiency_pct"`
	Level            map[uint]int       `json:"level_by_step"`
	PerStep          []StepProductivity `json:"per_step"`
}

// StepProductivity is one step's slice of a worker's productivity rollup.
type StepProductivity struct {
	StepID           uint    `json:"step_id"`
	SampleSize       int     `json:"sample_size"`
	AvgEfficiencyPct float64 `json:"avg_efficiency_pct"`
	DerivedLevel     int     `json:"derived_level"`
}

// WorkerProductivity rolls up a worker's completed plan tasks over the
// trailing window into per-step average efficiency and derived levels.
func (e *Engine) WorkerProductivity(ctx context.Context, workerID uint, since time.Time) (*ProductivitySummary, error) {
	tasks, err := e.repo.GetCompletedWork(ctx, since)
	if err != nil {
		return nil, &planerr.IOError{Err: err, Retryable: true}
	}

	stepSeconds := StepSecondsResolver(e.repo)
	sums := make(map[uint]float64)
	counts := make(map[uint]int)
	total, n := 0.0, 0
	for _, t := range tasks {
		if len(t.WorkerIDs) == 0 || t.WorkerIDs[0] != workerID {
			continue
		}
		if t.StartedAt == nil || t.CompletedAt == nil {
			continue
		}
		secs := stepSeconds(ctx, t)
		if secs == 0 {
			continue
		}
		eff := proficiency.EfficiencyPct(proficiency.CompletedBlock{
			WorkerID:            workerID,
			StepID:              t.ProductStepID,
			ActualOutput:        t.ActualOutput,
			TimePerPieceSeconds: secs,
			Start:               *t.StartedAt,
			End:                 *t.CompletedAt,
			CompletedAt:         *t.CompletedAt,
		})
		if eff <= 0 {
			continue
		}
		sums[t.ProductStepID] += eff
		counts[t.ProductStepID]++
		total += eff
		n++
	}

	summary := &ProductivitySummary{WorkerID: workerID, SampleSize: n, Level: make(map[uint]int)}
	if n > 0 {
		summary.AvgEfficiencyPct = total / float64(n)
	}
	stepIDs := make([]uint, 0, len(sums))
	for id := range sums {
		stepIDs = append(stepIDs, id)
	}
	sort.Slice(stepIDs, func(i, j int) bool { return stepIDs[i] < stepIDs[j] })
	for _, id := range stepIDs {
		avg := sums[id] / float64(counts[id])
		level := int(proficiency.DeriveLevel(avg))
		summary.PerStep = append(summary.PerStep, StepProductivity{
			StepID:           id,
			SampleSize:       counts[id],
			AvgEfficiencyPct: avg,
			DerivedLevel:     level,
		})
		summary.Level[id] = level
	}
	return summary, nil
}

// StepSecondsResolver returns a lookup from a plan task to its step's
// per-piece seconds, caching BOM loads across calls. Used by the proficiency
// rollup paths, which iterate many tasks of few products.
func StepSecondsResolver(repo repository.Reader) func(ctx context.Context, t models.PlanTask) int {
	productByDemand := make(map[uint]uint)
	secondsByStep := make(map[uint]int)
	loadedProducts := make(map[uint]bool)

	return func(ctx context.Context, t models.PlanTask) int {
		if secs, ok := secondsByStep[t.ProductStepID]; ok {
			return secs
		}
		productID, ok := productByDemand[t.DemandEntryID]
		if !ok {
			order, err := repo.GetOrder(ctx, t.DemandEntryID)
			if err != nil {
				return 0
			}
			productID = order.ProductID
			productByDemand[t.DemandEntryID] = productID
		}
		if !loadedProducts[productID] {
			loadedProducts[productID] = true
			bom, err := repo.GetBOMStepsWithDeps(ctx, productID)
			if err != nil {
				return 0
			}
			for _, sw := range bom.Steps {
				secondsByStep[sw.Step.ID] = sw.Step.TimePerPieceSeconds
			}
		}
		return secondsByStep[t.ProductStepID]
	}
}

// RecalcProficiencies runs the proficiency auto-adjustment batch over the trailing
// 30-day window and persists every proposed change with its history row.
// Shared by the analytics endpoint and cmd/scheduler's periodic sweep.
func RecalcProficiencies(ctx context.Context, repo repository.Repository, now time.Time, stepSeconds func(ctx context.Context, t models.PlanTask) int) ([]proficiency.Adjustment, error) {
	since := now.AddDate(0, 0, -30)
	completed, err := repo.GetCompletedWork(ctx, since)
	if err != nil {
		return nil, err
	}

	blocks := make([]proficiency.CompletedBlock, 0, len(completed))
	for _, t := range completed {
		if t.StartedAt == nil || t.CompletedAt == nil || len(t.WorkerIDs) == 0 {
			continue
		}
		secs := 0
		if stepSeconds != nil {
			secs = stepSeconds(ctx, t)
		}
		if secs == 0 {
			continue
		}
		blocks = append(blocks, proficiency.CompletedBlock{
			WorkerID:            t.WorkerIDs[0],
			StepID:              t.ProductStepID,
			ActualOutput:        t.ActualOutput,
			TimePerPieceSeconds: secs,
			Start:               *t.StartedAt,
			End:                 *t.CompletedAt,
			CompletedAt:         *t.CompletedAt,
		})
	}

	profs, err := repo.GetProficiencies(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	levels := make(map[[2]uint]int, len(profs))
	for _, p := range profs {
		levels[[2]uint{p.WorkerID, p.StepID}] = p.Level
	}
	currentLevel := func(workerID, stepID uint) proficiency.Level {
		if lvl, ok := levels[[2]uint{workerID, stepID}]; ok {
			return proficiency.Level(lvl)
		}
		return proficiency.Level(3)
	}

	adjustments := proficiency.AutoAdjust(blocks, now, currentLevel)
	applied := make([]proficiency.Adjustment, 0, len(adjustments))
	for _, adj := range adjustments {
		prof := &models.WorkerProficiency{WorkerID: adj.WorkerID, StepID: adj.StepID, Level: int(adj.ToLevel)}
		avg := adj.AvgEfficiency
		sample := adj.SampleSize
		history := &models.ProficiencyHistory{
			WorkerID:      adj.WorkerID,
			StepID:        adj.StepID,
			FromLevel:     int(adj.FromLevel),
			ToLevel:       int(adj.ToLevel),
			Reason:        models.ProficiencyAdjustmentReason(adj.Reason),
			AvgEfficiency: &avg,
			SampleSize:    &sample,
		}
		if err := repo.InsertProficiencyAdjustment(ctx, prof, history); err != nil {
			logger.Warn("failed to persist proficiency adjustment",
				zap.Uint("worker_id", adj.WorkerID), zap.Uint("step_id", adj.StepID), zap.Error(err))
			continue
		}
		metrics.ProficiencyAdjustmentsTotal.WithLabelValues(string(adj.Reason)).Inc()
		applied = append(applied, adj)
	}
	return applied, nil
}
