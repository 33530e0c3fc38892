// Package scheduler implements the leader-elected background daemon: a
// periodic sweep that recomputes capacity/deadline risk, runs the
// proficiency auto-adjustment batch, and flags plan tasks that started but
// never reported completion well past their scheduled end. Only the elected
// leader does work on a tick.
package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	config "github.com/zainhoda/sij-manager-sub003/configs"
	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/capacity"
	"github.com/zainhoda/sij-manager-sub003/pkg/coordination"
	"github.com/zainhoda/sij-manager-sub003/pkg/logger"
	"github.com/zainhoda/sij-manager-sub003/pkg/metrics"
	"github.com/zainhoda/sij-manager-sub003/pkg/models"
	"github.com/zainhoda/sij-manager-sub003/pkg/planner"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
)

// OrphanGrace is how long after its scheduled end_time a started-but-not-
// completed plan task is treated as orphaned.
const OrphanGrace = 2 * time.Hour

type Core struct {
	repo     repository.Repository
	interval time.Duration
}

func NewCore(cfg *config.Config, repo repository.Repository) *Core {
	interval, err := time.ParseDuration(cfg.CapacitySweepInterval)
	if err != nil || interval == 0 {
		interval = 5 * time.Minute
	}
	return &Core{repo: repo, interval: interval}
}

// Run starts the main sweep schedule. It blocks until ctx is canceled, only
// doing work on ticks where election reports this node as leader.
func (c *Core) Run(ctx context.Context, election coordination.Election, nodeID string) {
	cr := cron.New()
	_, err := cr.AddFunc("@every "+c.interval.String(), func() {
		leader, err := election.Leader(ctx)
		if err != nil {
			logger.Warn("error checking leadership", zap.Error(err))
			return
		}
		if leader != nodeID {
			return
		}
		if err := c.Sweep(ctx); err != nil {
			logger.Warn("sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Error("failed to schedule sweep", zap.Error(err))
		return
	}
	cr.Start()

	<-ctx.Done()
	<-cr.Stop().Done()
	logger.Info("scheduler shutting down")
}

// Sweep runs one full pass: capacity/risk, proficiency auto-adjustment,
// then orphan reconciliation.
func (c *Core) Sweep(ctx context.Context) error {
	if err := c.sweepCapacity(ctx); err != nil {
		logger.Warn("capacity sweep failed", zap.Error(err))
	}
	if err := c.sweepProficiency(ctx); err != nil {
		logger.Warn("proficiency sweep failed", zap.Error(err))
	}
	if err := c.reconcileOrphans(ctx); err != nil {
		logger.Warn("orphan reconciliation failed", zap.Error(err))
	}
	return nil
}

// sweepCapacity recomputes the capacity risk report over every open demand entry
// and publishes the shortfall gauge per demand.
func (c *Core) sweepCapacity(ctx context.Context) error {
	entries, err := c.repo.GetDemandEntries(ctx, repository.DemandFilter{
		Statuses: []models.DemandStatus{models.DemandPending, models.DemandPlanned, models.DemandInProgress},
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	workers, err := c.repo.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}
	capWorkers := make([]capacity.Worker, len(workers))
	for i, w := range workers {
		capWorkers[i] = capacity.Worker{ID: w.ID, Active: w.Status == models.WorkerActive}
	}

	today := calendar.NewDate(time.Now().Year(), int(time.Now().Month()), time.Now().Day())
	horizonEnd := today.AddDays(90)

	demand := make([]capacity.Demand, 0, len(entries))
	for _, e := range entries {
		bom, err := c.repo.GetBOMStepsWithDeps(ctx, e.ProductID)
		if err != nil {
			continue
		}
		steps := make([]capacity.DemandStep, len(bom.Steps))
		for i, s := range bom.Steps {
			steps[i] = capacity.DemandStep{TimePerPieceSeconds: s.Step.TimePerPieceSeconds}
		}
		demand = append(demand, capacity.Demand{
			ID:       e.ID,
			Quantity: e.Quantity,
			DueDate:  calendar.NewDate(e.DueDate.Year(), int(e.DueDate.Month()), e.DueDate.Day()),
			Steps:    steps,
		})
	}

	report := capacity.Analyze(today, horizonEnd, capWorkers, nil, demand, nil, nil)
	for demandID, risk := range report.Risks {
		metrics.CapacityShortfallHours.WithLabelValues(demandIDLabel(demandID)).Set(risk.ShortfallHours)
	}
	return nil
}

// sweepProficiency runs the auto-adjustment batch over the trailing window
// and persists every proposed change.
func (c *Core) sweepProficiency(ctx context.Context) error {
	applied, err := planner.RecalcProficiencies(ctx, c.repo, time.Now(), planner.StepSecondsResolver(c.repo))
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		logger.Info("proficiency sweep applied adjustments", zap.Int("count", len(applied)))
	}
	return nil
}

// reconcileOrphans logs (and counts) plan tasks that started but never
// reported completion well past their scheduled end. It does
// not guess an actual_output — the operator resolves these through replan.
func (c *Core) reconcileOrphans(ctx context.Context) error {
	tasks, err := c.repo.GetStartedIncompleteTasks(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, t := range tasks {
		if t.StartedAt == nil {
			continue
		}
		deadline := t.StartedAt.Add(OrphanGrace)
		if endMinute, err := calendar.TimeToMinutes(t.EndTime); err == nil {
			y, m, d := t.Date.Date()
			deadline = time.Date(y, m, d, endMinute/60, endMinute%60, 0, 0, time.Local).Add(OrphanGrace)
		}
		if now.Before(deadline) {
			continue
		}
		logger.Warn("plan task orphaned: started but never completed",
			zap.String("plan_task_id", t.ID.String()), zap.Time("started_at", *t.StartedAt))
		metrics.OrphanedBlocksTotal.Inc()
	}
	return nil
}

func demandIDLabel(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
