// Package kernel implements the dependency- and calendar-aware scheduling
// kernel: a pure, in-memory function from a fully pre-loaded ScenarioInput
// to a ScenarioResult. It performs no I/O and consults no wall clock beyond
// the Now value supplied in its input, so two runs given identical inputs
// produce byte-identical schedules.
package kernel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/depstate"
	"github.com/zainhoda/sij-manager-sub003/pkg/planerr"
	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
	"github.com/zainhoda/sij-manager-sub003/pkg/strategy"
	"github.com/zainhoda/sij-manager-sub003/pkg/workerday"
)

// MaxIterations bounds the per-demand ready-set loop.
const MaxIterations = 10000

// LookaheadDays bounds how far find_next_available_slot searches forward.
const LookaheadDays = 60

// DemandInput is one demand entry to schedule.
type DemandInput struct {
	ID        uint
	BOMID     uint
	Quantity  int
	DueDate   calendar.Date
	Priority  int
	BatchPref depstate.BatchPreference
}

// StepInput is one BOM step, with its dependency edges already resolved.
type StepInput struct {
	ID                  uint
	BOMID               uint
	Name                string
	Category            string
	TimePerPieceSeconds int
	Sequence            int
	EquipmentID         *uint
	Dependencies        []depstate.Dependency
}

// WorkerInput is one worker eligible for assignment.
type WorkerInput struct {
	ID          uint
	Status      qualify.WorkerStatus
	CostPerHour float64
}

// EquipmentInput is one piece of equipment, for equipment-cost accrual.
type EquipmentInput struct {
	ID         uint
	HourlyCost float64
}

// CertInput is one worker/equipment certification.
type CertInput struct {
	WorkerID    uint
	EquipmentID uint
	ExpiresAt   *time.Time
}

// ScenarioInput is everything the kernel needs to generate one scenario. It owns no
// reference back to a repository; the caller loads it once at the top of a
// run.
type ScenarioInput struct {
	PlanningWindow [2]calendar.Date
	Demand         []DemandInput
	BOMSteps       map[uint][]StepInput // keyed by BOMID
	Workers        []WorkerInput
	Equipment      []EquipmentInput
	Certifications []CertInput
	Strategy       strategy.Config
	CalendarConfig calendar.Config
	Holiday        calendar.HolidayFunc
	Now            time.Time

	// StartMinuteOverride, when set, replaces the morning-start default as
	// the earliest minute considered on the first day of PlanningWindow.
	// Used by pkg/replan to resume scheduling at the operator's current
	// wall-clock minute rather than the start of the work day.
	StartMinuteOverride *int
}

// Block is one emitted unit of scheduled work. It deliberately does not
// import pkg/models — the kernel has no notion of a database row, only of a
// (step, batch) assigned to a worker on a date.
type Block struct {
	DemandID         uint
	BOMStepID        uint
	BatchNumber      int
	BatchQuantity    int
	Date             calendar.Date
	StartMinute      int
	EndMinute        int
	PlannedOutput    int
	WorkerIDs        []uint
	AssignmentReason string
	IsOvertime       bool
}

// DemandProjection is the per-demand rollup produced alongside the blocks.
type DemandProjection struct {
	DemandID                uint
	ProjectedCompletionDate calendar.Date
	CanMeetTarget           bool
}

// Metrics aggregates a scenario's labor/cost/deadline totals.
type Metrics struct {
	LaborMinutes         int
	OvertimeMinutes      int
	LaborCost            float64
	EquipmentCost        float64
	DeadlinesMet         int
	DeadlinesMissed      int
	LatestCompletionDate calendar.Date
}

// ScenarioResult is the kernel's output.
type ScenarioResult struct {
	Blocks            []Block
	Warnings          []string
	DemandProjections map[uint]DemandProjection
	Metrics           Metrics
	Iterations        int
}

// pendingItem is one (step, batch) still needing work within a single
// demand's processing.
type pendingItem struct {
	step             StepInput
	batch            int
	batchQuantity    int
	remainingMinutes int
	originalMinutes  int
}

// Run executes the full scheduling algorithm over input and
// returns the resulting scenario, or a *planerr.ScheduleInfeasibleError if
// the stuck-check detects a circular dependency.
func Run(input ScenarioInput) (*ScenarioResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	cfg := input.CalendarConfig
	if (cfg == calendar.Config{}) {
		cfg = calendar.DefaultConfig()
	}

	workersByID := make(map[uint]WorkerInput, len(input.Workers))
	for _, w := range input.Workers {
		workersByID[w.ID] = w
	}
	equipByID := make(map[uint]EquipmentInput, len(input.Equipment))
	for _, e := range input.Equipment {
		equipByID[e.ID] = e
	}
	certs := make(map[qualify.CertKey]qualify.Certification, len(input.Certifications))
	for _, c := range input.Certifications {
		certs[qualify.CertKey{WorkerID: c.WorkerID, EquipmentID: c.EquipmentID}] = qualify.Certification{ExpiresAt: c.ExpiresAt}
	}
	qualifyWorkers := make([]qualify.Worker, 0, len(input.Workers))
	for _, w := range input.Workers {
		qualifyWorkers = append(qualifyWorkers, qualify.Worker{ID: w.ID, Status: w.Status})
	}
	sort.Slice(qualifyWorkers, func(i, j int) bool { return qualifyWorkers[i].ID < qualifyWorkers[j].ID })

	book := workerday.NewBook(cfg)
	result := &ScenarioResult{
		DemandProjections: make(map[uint]DemandProjection),
	}
	result.Metrics.LatestCompletionDate = input.PlanningWindow[0]

	demand := make([]DemandInput, len(input.Demand))
	copy(demand, input.Demand)
	sortDemand(demand, input.Strategy.PriorityWeight)

	iterations := 0
	cursorDate := input.PlanningWindow[0]
	firstDayMinStart := cfg.MorningStartMinute
	if input.StartMinuteOverride != nil {
		firstDayMinStart = *input.StartMinuteOverride
	}

	for _, d := range demand {
		steps := append([]StepInput(nil), input.BOMSteps[d.BOMID]...)
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })

		deps := make(map[uint][]depstate.Dependency, len(steps))
		for _, s := range steps {
			deps[s.ID] = s.Dependencies
		}
		tracker := depstate.NewTracker(deps)

		batches := depstate.DecomposeBatches(d.Quantity, d.BatchPref)

		pending := make(map[depstate.Key]*pendingItem)
		var pendingOrder []depstate.Key
		for _, s := range steps {
			for bi, qty := range batches {
				batchNum := bi + 1
				remaining := int(math.Ceil(float64(s.TimePerPieceSeconds) * float64(qty) / 60.0))
				key := depstate.Key{StepID: s.ID, Batch: batchNum}
				pending[key] = &pendingItem{
					step:             s,
					batch:            batchNum,
					batchQuantity:    qty,
					remainingMinutes: remaining,
					originalMinutes:  remaining,
				}
				pendingOrder = append(pendingOrder, key)
			}
		}

		projection := DemandProjection{DemandID: d.ID, ProjectedCompletionDate: input.PlanningWindow[0], CanMeetTarget: true}
		var lastDate calendar.Date
		hasBlock := false

		demandIterations := 0
		for len(pending) > 0 {
			iterations++
			demandIterations++
			result.Iterations = iterations
			if demandIterations > MaxIterations {
				result.Warnings = append(result.Warnings, "schedule may be incomplete: max_iterations reached")
				break
			}

			var ready []depstate.ReadyItem
			for _, key := range pendingOrder {
				item, ok := pending[key]
				if !ok {
					continue
				}
				if tracker.InProgress(key.StepID, key.Batch) || tracker.Ready(key.StepID, key.Batch) {
					ready = append(ready, depstate.ReadyItem{
						StepID:         key.StepID,
						Batch:          key.Batch,
						Sequence:       item.step.Sequence,
						DemandID:       d.ID,
						Priority:       d.Priority,
						PriorityWeight: input.Strategy.PriorityWeight,
						DueDate:        d.DueDate,
					})
				}
			}
			if len(ready) == 0 {
				return nil, &planerr.ScheduleInfeasibleError{
					Message: fmt.Sprintf("circular dependency detected for demand %d: %d pending step-batches with no ready item", d.ID, len(pending)),
				}
			}
			depstate.SortReady(ready)

			for _, ri := range ready {
				key := depstate.Key{StepID: ri.StepID, Batch: ri.Batch}
				item, ok := pending[key]
				if !ok {
					continue
				}
				step := item.step

				qualified := qualify.Filter(qualify.Step{EquipmentID: step.EquipmentID}, qualifyWorkers, certs, input.Now)
				if len(qualified) == 0 {
					result.Warnings = append(result.Warnings, fmt.Sprintf("no qualified worker for step %q batch %d: dropped", step.Name, item.batch))
					delete(pending, key)
					pendingOrder = removeKey(pendingOrder, key)
					projection.CanMeetTarget = false
					continue
				}

				earliest := tracker.EarliestStart(step.ID, item.batch)
				fromDate := input.PlanningWindow[0]
				minStart := firstDayMinStart
				if earliest != nil {
					fromDate = earliest.Date
					minStart = earliest.Minute
				}
				if cursorDate.After(fromDate) {
					fromDate = cursorDate
					minStart = cfg.MorningStartMinute
				}

				date, start, end, workerID, found := findNextAvailableSlot(
					qualified, book, cfg, input.Holiday, fromDate, minStart,
					input.Strategy.AllowOvertime, input.Strategy.OvertimeCapMinutesPerDay,
				)
				if !found {
					result.Warnings = append(result.Warnings, fmt.Sprintf("step %q batch %d: beyond planning horizon, no slot found within %d days", step.Name, item.batch, LookaheadDays))
					delete(pending, key)
					pendingOrder = removeKey(pendingOrder, key)
					projection.CanMeetTarget = false
					continue
				}

				slotDuration := end - start
				workMinutes := item.remainingMinutes
				if slotDuration < workMinutes {
					workMinutes = slotDuration
				}
				blockEnd := cfg.AdvanceTime(start, workMinutes, end)
				actualMinutes := cfg.WorkMinutes(start, blockEnd)
				plannedOutput := int(math.Floor(float64(actualMinutes) * 60.0 / float64(step.TimePerPieceSeconds)))

				if err := book.CommitSlot(workerday.WorkerID(workerID), date, start, blockEnd); err != nil {
					return nil, &planerr.IOError{Err: err}
				}

				reason := assignmentReason(step, qualified, workerID)
				isOT := blockEnd > cfg.AfternoonEndMinute
				result.Blocks = append(result.Blocks, Block{
					DemandID:         d.ID,
					BOMStepID:        step.ID,
					BatchNumber:      item.batch,
					BatchQuantity:    item.batchQuantity,
					Date:             date,
					StartMinute:      start,
					EndMinute:        blockEnd,
					PlannedOutput:    plannedOutput,
					WorkerIDs:        []uint{workerID},
					AssignmentReason: reason,
					IsOvertime:       isOT,
				})

				regularPortion, overtimePortion := splitRegularOvertime(cfg, start, blockEnd)
				result.Metrics.LaborMinutes += regularPortion
				result.Metrics.OvertimeMinutes += overtimePortion
				durationHours := float64(blockEnd-start) / 60.0
				if w, ok := workersByID[workerID]; ok {
					result.Metrics.LaborCost += durationHours * w.CostPerHour
				}
				if step.EquipmentID != nil {
					if e, ok := equipByID[*step.EquipmentID]; ok {
						result.Metrics.EquipmentCost += durationHours * e.HourlyCost
					}
				}

				if !tracker.Get(step.ID, item.batch).Started {
					tracker.MarkStarted(step.ID, item.batch, depstate.Moment{Date: date, Minute: start})
				}

				item.remainingMinutes -= workMinutes
				if date.After(cursorDate) {
					cursorDate = date
				}
				if !hasBlock || date.After(lastDate) {
					lastDate = date
					hasBlock = true
				}

				if item.remainingMinutes <= 0 {
					tracker.MarkCompleted(step.ID, item.batch, depstate.Moment{Date: date, Minute: blockEnd})
					delete(pending, key)
					pendingOrder = removeKey(pendingOrder, key)
				}
			}
		}

		if hasBlock {
			projection.ProjectedCompletionDate = lastDate
			if projection.CanMeetTarget {
				projection.CanMeetTarget = !lastDate.After(d.DueDate)
			}
		}
		if projection.CanMeetTarget {
			result.Metrics.DeadlinesMet++
		} else {
			result.Metrics.DeadlinesMissed++
		}
		if hasBlock && lastDate.After(result.Metrics.LatestCompletionDate) {
			result.Metrics.LatestCompletionDate = lastDate
		}
		result.DemandProjections[d.ID] = projection
	}

	return result, nil
}

func validateInput(input ScenarioInput) error {
	if input.PlanningWindow[1].Before(input.PlanningWindow[0]) {
		return &planerr.PreconditionError{Message: "planning window end precedes start"}
	}
	for _, d := range input.Demand {
		steps := input.BOMSteps[d.BOMID]
		if len(steps) == 0 {
			return &planerr.PreconditionError{Message: fmt.Sprintf("demand %d references BOM %d with no steps", d.ID, d.BOMID)}
		}
		if len(steps) >= 2 {
			hasDep := false
			for _, s := range steps {
				if len(s.Dependencies) > 0 {
					hasDep = true
					break
				}
			}
			if !hasDep {
				return &planerr.PreconditionError{Message: fmt.Sprintf("BOM %d has %d steps but no dependency edges", d.BOMID, len(steps))}
			}
		}
	}
	return nil
}

// sortDemand orders demand by priority*weight descending, then due_date
// ascending, then demand id ascending.
func sortDemand(demand []DemandInput, weight float64) {
	sort.SliceStable(demand, func(i, j int) bool {
		a, b := demand[i], demand[j]
		aw := float64(a.Priority) * weight
		bw := float64(b.Priority) * weight
		if aw != bw {
			return aw > bw
		}
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

func removeKey(keys []depstate.Key, target depstate.Key) []depstate.Key {
	out := keys[:0]
	for _, k := range keys {
		if k != target {
			out = append(out, k)
		}
	}
	return out
}

// findNextAvailableSlot iterates workers x days, up to LookaheadDays ahead of
// fromDate, and returns the lexicographically earliest (date, start, worker)
// slot of at least 15 minutes.
func findNextAvailableSlot(
	workers []qualify.Worker,
	book *workerday.Book,
	cfg calendar.Config,
	holiday calendar.HolidayFunc,
	fromDate calendar.Date,
	minStartOnFromDate int,
	allowOvertime bool,
	otCapMinutes int,
) (date calendar.Date, start, end int, workerID uint, found bool) {
	for offset := 0; offset < LookaheadDays; offset++ {
		d := fromDate.AddDays(offset)
		if !calendar.IsWorkday(d, holiday) {
			continue
		}
		var earliestStart *int
		if offset == 0 {
			ms := minStartOnFromDate
			earliestStart = &ms
		}

		bestStart, bestEnd := -1, -1
		var bestWorker uint
		for _, w := range workers {
			slots := book.FindSlots(workerday.WorkerID(w.ID), d, earliestStart, allowOvertime, otCapMinutes, 15)
			if len(slots) == 0 {
				continue
			}
			s := slots[0]
			if bestStart == -1 || s.Start < bestStart || (s.Start == bestStart && w.ID < bestWorker) {
				bestStart = s.Start
				bestEnd = s.End
				bestWorker = w.ID
			}
		}
		if bestStart != -1 {
			return d, bestStart, bestEnd, bestWorker, true
		}
	}
	return calendar.Date{}, 0, 0, 0, false
}

func splitRegularOvertime(cfg calendar.Config, start, end int) (regular, overtime int) {
	regularEnd := cfg.AfternoonEndMinute
	if start < regularEnd {
		re := end
		if re > regularEnd {
			re = regularEnd
		}
		regular = cfg.WorkMinutes(start, re)
	}
	if end > regularEnd {
		os := start
		if os < regularEnd {
			os = regularEnd
		}
		overtime = end - os
	}
	return regular, overtime
}

func assignmentReason(step StepInput, qualified []qualify.Worker, workerID uint) string {
	if len(qualified) == 1 {
		return fmt.Sprintf("sole qualified worker for step %q", step.Name)
	}
	if step.EquipmentID != nil {
		return fmt.Sprintf("certified for required equipment on step %q", step.Name)
	}
	return fmt.Sprintf("earliest available slot for step %q", step.Name)
}
