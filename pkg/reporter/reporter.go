// Package reporter consumes the production-floor event stream
// (pkg/storage/redis) and applies each event to the repository: marking
// plan tasks started/completed and appending output-history samples.
package reporter

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	config "github.com/zainhoda/sij-manager-sub003/configs"
	"github.com/zainhoda/sij-manager-sub003/pkg/coordination"
	"github.com/zainhoda/sij-manager-sub003/pkg/logger"
	"github.com/zainhoda/sij-manager-sub003/pkg/metrics"
	"github.com/zainhoda/sij-manager-sub003/pkg/repository"
	storageredis "github.com/zainhoda/sij-manager-sub003/pkg/storage/redis"
)

// ConsumerGroup is the Redis Stream consumer group every reporter node joins.
const ConsumerGroup = "planner-reporters"

// Reporter drains production events concurrently, bounded by host CPU
// count.
type Reporter struct {
	ID       string
	Hostname string
	TotalCPU int
	TotalMem uint64 // MB

	coordinator coordination.Coordinator
	events      *storageredis.EventStream
	repo        repository.Writer
	interval    time.Duration
}

// New constructs a Reporter ready to Start.
func New(cfg *config.Config, coord coordination.Coordinator, events *storageredis.EventStream, repo repository.Writer) *Reporter {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	return &Reporter{
		ID:          id,
		Hostname:    hostname,
		TotalCPU:    runtime.NumCPU(),
		TotalMem:    detectTotalMemory(),
		coordinator: coord,
		events:      events,
		repo:        repo,
		interval:    5 * time.Second,
	}
}

func detectTotalMemory() uint64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("failed to detect memory, defaulting to 1GB", zap.Error(err))
		return 1024
	}
	return v.Total / 1024 / 1024
}

// Start begins the reporter's heartbeat and event-consumption loops. It
// blocks until ctx is canceled.
func (r *Reporter) Start(ctx context.Context) {
	logger.Info("reporter starting up", zap.String("id", r.ID), zap.Int("cpus", r.TotalCPU))

	if err := r.events.EnsureGroup(ctx, ConsumerGroup); err != nil {
		logger.Warn("failed to ensure consumer group", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.heartbeat(ctx); err != nil {
					logger.Warn("heartbeat failed", zap.Error(err))
				}
			}
		}
	}()

	logger.Info("waiting for production events", zap.Int("concurrency", r.TotalCPU))
	sem := make(chan struct{}, r.TotalCPU)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				r.consumeOne(ctx)
			}()
		}
	}
}

func (r *Reporter) consumeOne(ctx context.Context) {
	msgID, ev, err := r.events.ReadOne(ctx, ConsumerGroup, r.ID)
	if err != nil {
		logger.Warn("error reading production event", zap.Error(err))
		time.Sleep(time.Second)
		return
	}
	if ev == nil {
		time.Sleep(time.Second)
		return
	}

	outcome := "applied"
	if err := r.apply(ctx, *ev); err != nil {
		outcome = "error"
		logger.Warn("failed to apply production event",
			zap.String("kind", string(ev.Kind)), zap.String("plan_task_id", ev.PlanTaskID), zap.Error(err))
	}
	metrics.EventsProcessedTotal.WithLabelValues(string(ev.Kind), outcome).Inc()

	if err := r.events.Ack(ctx, ConsumerGroup, msgID); err != nil {
		logger.Warn("failed to ack production event", zap.Error(err))
	}
}

func (r *Reporter) apply(ctx context.Context, ev storageredis.ProductionEvent) error {
	planTaskID, err := uuid.Parse(ev.PlanTaskID)
	if err != nil {
		return fmt.Errorf("invalid plan_task_id %q: %w", ev.PlanTaskID, err)
	}

	switch ev.Kind {
	case storageredis.EventBlockStarted:
		return r.repo.MarkPlanTaskStarted(ctx, planTaskID, ev.OccurredAt)
	case storageredis.EventOutputReported:
		return r.repo.AppendOutputHistory(ctx, planTaskID, ev.ActualOutput, ev.OccurredAt)
	case storageredis.EventBlockCompleted:
		return r.repo.MarkPlanTaskCompleted(ctx, planTaskID, ev.ActualOutput, ev.OccurredAt)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// heartbeat advertises this node as alive under a short lease. The
// scheduler's orphan reconciliation sweep does not consult it; it judges
// orphans from plan-task times alone.
func (r *Reporter) heartbeat(ctx context.Context) error {
	if err := r.coordinator.RegisterNode(ctx, r.ID, 10); err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}
	metrics.HeartbeatsSent.Inc()
	return nil
}
