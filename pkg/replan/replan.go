// Package replan regenerates the remaining work of a partially executed
// schedule: starting from the current wall time it reuses the scheduling
// kernel with a single-demand input and a resume cursor, then generates
// overtime suggestions when the projected completion would still slip past
// the due date. The resume point is a plain (date, minute) parameter, so
// this package is a thin orchestration layer over pkg/kernel, not a second
// scheduler.
package replan

import (
	"math"
	"sort"
	"time"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/depstate"
	"github.com/zainhoda/sij-manager-sub003/pkg/kernel"
	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
	"github.com/zainhoda/sij-manager-sub003/pkg/strategy"
)

// CompletedStepBatch records how much of one (step, batch) is already done,
// so Run can derive the remaining units and minutes per step.
type CompletedStepBatch struct {
	StepID       uint
	Batch        int
	ActualOutput int
	// CompletedAt is non-nil when the batch finished; used to seed
	// depstate readiness for downstream steps.
	CompletedAt *depstate.Moment
	Started     bool
	StartedAt   *depstate.Moment
}

// Input is everything Run needs to produce a replan draft for one order.
type Input struct {
	Now            calendar.Date
	NowMinute      int
	Clock          time.Time
	DueDate        calendar.Date
	BOMSteps       []kernel.StepInput
	Quantity       int
	Completed      []CompletedStepBatch
	BatchPref      depstate.BatchPreference
	Workers        []kernel.WorkerInput
	Equipment      []kernel.EquipmentInput
	Certifications []kernel.CertInput
	Strategy       strategy.Config
	CalendarConfig calendar.Config
	Holiday        calendar.HolidayFunc
	DemandID       uint
	BOMID          uint
}

// OvertimeSuggestion is one proposed, not-yet-committed overtime block.
type OvertimeSuggestion struct {
	Date            calendar.Date
	StartMinute     int
	EndMinute       int
	StepID          uint
	WorkerID        uint
	IsOvertime      bool
	IsAutoSuggested bool
}

// Result is the replan draft plus its overtime suggestions.
type Result struct {
	DraftEntries        []kernel.Block
	OvertimeSuggestions []OvertimeSuggestion
	RegularHoursNeeded  float64
	OvertimeHoursNeeded float64
	CanMeetDeadline     bool
	AvailableWorkers    []uint
	Warnings            []string
}

// StartPoint computes the next legal work moment at-or-after (date,
// minute), jumping weekends, pre-morning-start, lunch, and post-day-end.
// The minute is rounded up to the next 15-minute boundary, matching the
// kernel's minimum slot granularity.
func StartPoint(cfg calendar.Config, holiday calendar.HolidayFunc, date calendar.Date, minute int) (calendar.Date, int) {
	minute = roundUpTo15(minute)

	for {
		if !calendar.IsWorkday(date, holiday) {
			date = calendar.NextWorkday(date.AddDays(-1), holiday)
			minute = cfg.MorningStartMinute
			continue
		}
		if minute < cfg.MorningStartMinute {
			minute = cfg.MorningStartMinute
		}
		if minute >= cfg.LunchStartMinute && minute < cfg.LunchEndMinute {
			minute = cfg.LunchEndMinute
		}
		if minute >= cfg.AfternoonEndMinute {
			date = calendar.NextWorkday(date, holiday)
			minute = cfg.MorningStartMinute
			continue
		}
		return date, minute
	}
}

func roundUpTo15(minute int) int {
	if minute%15 == 0 {
		return minute
	}
	return minute + (15 - minute%15)
}

// Run produces the replan draft for one order.
func Run(input Input) (*Result, error) {
	cfg := input.CalendarConfig
	if (cfg == calendar.Config{}) {
		cfg = calendar.DefaultConfig()
	}

	startDate, startMinute := StartPoint(cfg, input.Holiday, input.Now, input.NowMinute)

	remainingQty := input.Quantity - totalCompletedForFinalStep(input)
	if remainingQty < 0 {
		remainingQty = 0
	}

	scenarioInput := kernel.ScenarioInput{
		PlanningWindow: [2]calendar.Date{startDate, input.DueDate.AddDays(kernel.LookaheadDays)},
		Demand: []kernel.DemandInput{{
			ID:        input.DemandID,
			BOMID:     input.BOMID,
			Quantity:  remainingQty,
			DueDate:   input.DueDate,
			Priority:  1,
			BatchPref: input.BatchPref,
		}},
		BOMSteps:       map[uint][]kernel.StepInput{input.BOMID: input.BOMSteps},
		Workers:        input.Workers,
		Equipment:      input.Equipment,
		Certifications: input.Certifications,
		Strategy:       input.Strategy,
		CalendarConfig: cfg,
		Holiday:        input.Holiday,
		Now:            input.Clock,
		StartMinuteOverride: &startMinute,
	}

	if remainingQty <= 0 {
		return &Result{CanMeetDeadline: true}, nil
	}

	sr, err := kernel.Run(scenarioInput)
	if err != nil {
		return nil, err
	}

	proj := sr.DemandProjections[input.DemandID]
	res := &Result{
		DraftEntries:    sr.Blocks,
		CanMeetDeadline: proj.CanMeetTarget,
		Warnings:        sr.Warnings,
		RegularHoursNeeded: float64(sr.Metrics.LaborMinutes) / 60.0,
		OvertimeHoursNeeded: float64(sr.Metrics.OvertimeMinutes) / 60.0,
	}

	qualifiedIDs := make(map[uint]struct{})
	for _, w := range input.Workers {
		qualifiedIDs[w.ID] = struct{}{}
	}
	for id := range qualifiedIDs {
		res.AvailableWorkers = append(res.AvailableWorkers, id)
	}
	sort.Slice(res.AvailableWorkers, func(i, j int) bool { return res.AvailableWorkers[i] < res.AvailableWorkers[j] })

	if !proj.CanMeetTarget {
		suggestions, shortfallMinutes := generateOvertimeSuggestions(input, cfg, proj.ProjectedCompletionDate, startDate)
		res.OvertimeSuggestions = suggestions
		res.OvertimeHoursNeeded += float64(shortfallMinutes) / 60.0
	}

	return res, nil
}

func totalCompletedForFinalStep(input Input) int {
	if len(input.BOMSteps) == 0 {
		return 0
	}
	last := input.BOMSteps[0]
	for _, s := range input.BOMSteps {
		if s.Sequence > last.Sequence {
			last = s
		}
	}
	total := 0
	for _, c := range input.Completed {
		if c.StepID == last.ID {
			total += c.ActualOutput
		}
	}
	return total
}

// generateOvertimeSuggestions proposes 15:30-18:00 candidate blocks,
// clipped to the overtime cap, until the accrued minutes cover the
// shortfall plus a buffer. It always picks the first step that still needs
// work, not the critical-path step.
func generateOvertimeSuggestions(input Input, cfg calendar.Config, projected, startDate calendar.Date) ([]OvertimeSuggestion, int) {
	if len(input.BOMSteps) == 0 || len(input.Workers) == 0 {
		return nil, 0
	}
	steps := append([]kernel.StepInput(nil), input.BOMSteps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	var firstStep kernel.StepInput
	found := false
	for _, s := range steps {
		done := 0
		for _, c := range input.Completed {
			if c.StepID == s.ID {
				done += c.ActualOutput
			}
		}
		if done < input.Quantity {
			firstStep, found = s, true
			break
		}
	}
	if !found {
		return nil, 0
	}

	qualifiedWorkers := qualifyForStep(firstStep, input)
	if len(qualifiedWorkers) == 0 {
		return nil, 0
	}

	shortfallMinutes := 0
	if projected.After(input.DueDate) {
		shortfallMinutes = daysBetween(input.DueDate, projected) * cfg.RegularMinutesPerDay()
	}
	targetMinutes := shortfallMinutes + 120

	var suggestions []OvertimeSuggestion
	accrued := 0
	workerIdx := 0
	for date := startDate; !date.After(input.DueDate) && accrued < targetMinutes; date = date.AddDays(1) {
		if !calendar.IsWorkday(date, input.Holiday) {
			continue
		}
		start := cfg.AfternoonEndMinute
		end := cfg.AfternoonEndMinute + 150 // 15:30 -> 18:00, clipped to the cap below
		capEnd := cfg.AfternoonEndMinute + input.Strategy.OvertimeCapMinutesPerDay
		if end > capEnd {
			end = capEnd
		}
		if end <= start {
			continue
		}
		worker := qualifiedWorkers[workerIdx%len(qualifiedWorkers)]
		workerIdx++
		suggestions = append(suggestions, OvertimeSuggestion{
			Date:            date,
			StartMinute:     start,
			EndMinute:       end,
			StepID:          firstStep.ID,
			WorkerID:        worker,
			IsOvertime:      true,
			IsAutoSuggested: true,
		})
		accrued += end - start
	}

	return suggestions, int(math.Max(0, float64(targetMinutes-accrued)))
}

func qualifyForStep(step kernel.StepInput, input Input) []uint {
	certs := make(map[qualify.CertKey]qualify.Certification, len(input.Certifications))
	for _, c := range input.Certifications {
		certs[qualify.CertKey{WorkerID: c.WorkerID, EquipmentID: c.EquipmentID}] = qualify.Certification{ExpiresAt: c.ExpiresAt}
	}
	workers := make([]qualify.Worker, 0, len(input.Workers))
	for _, w := range input.Workers {
		workers = append(workers, qualify.Worker{ID: w.ID, Status: w.Status})
	}
	qualified := qualify.Filter(qualify.Step{EquipmentID: step.EquipmentID}, workers, certs, input.Clock)
	ids := make([]uint, 0, len(qualified))
	for _, w := range qualified {
		ids = append(ids, w.ID)
	}
	return ids
}

func daysBetween(a, b calendar.Date) int {
	days := 0
	for cur := a; cur.Before(b); cur = cur.AddDays(1) {
		days++
	}
	return days
}
