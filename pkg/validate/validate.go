// Package validate implements the schedule validator: a pure
// function over a set of edited blocks that checks certification, worker
// status, time-overlap, and time-window sanity, returning separate fatal
// errors and accepted-but-flagged warnings.
package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/qualify"
)

// Block is the subset of a schedule block the validator inspects.
type Block struct {
	ID          uint
	StepID      uint
	WorkerIDs   []uint
	Date        calendar.Date
	StartMinute int
	EndMinute   int
	PlannedOutput int
}

// Context supplies the reference data the validator checks blocks against.
type Context struct {
	KnownWorkers map[uint]qualify.Worker
	KnownSteps   map[uint]qualify.Step
	Certifications map[qualify.CertKey]qualify.Certification
	Now          time.Time
}

// Result holds the errors (reject the edit) and warnings (accepted) found.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the schedule has no fatal errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Validate checks blocks against ctx.
func Validate(blocks []Block, ctx Context) Result {
	var res Result

	byWorkerDate := make(map[uint]map[calendar.Date][]Block)

	for _, b := range blocks {
		if b.EndMinute <= b.StartMinute {
			res.Errors = append(res.Errors, fmt.Sprintf("block %d: end_time <= start_time", b.ID))
		}
		if b.PlannedOutput <= 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("block %d: planned_output <= 0", b.ID))
		}

		step, stepKnown := ctx.KnownSteps[b.StepID]
		if !stepKnown {
			res.Errors = append(res.Errors, fmt.Sprintf("block %d: unknown step id %d", b.ID, b.StepID))
		}

		if len(b.WorkerIDs) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("block %d: no workers assigned", b.ID))
		}

		for _, wid := range b.WorkerIDs {
			worker, known := ctx.KnownWorkers[wid]
			if !known {
				res.Errors = append(res.Errors, fmt.Sprintf("block %d: unknown worker id %d", b.ID, wid))
				continue
			}
			if worker.Status != qualify.StatusActive {
				res.Warnings = append(res.Warnings, fmt.Sprintf("block %d: worker %d is not active", b.ID, wid))
			}
			if stepKnown && step.EquipmentID != nil {
				if !qualify.Qualified(step, worker, ctx.Certifications, ctx.Now) {
					res.Errors = append(res.Errors, fmt.Sprintf("block %d: worker %d lacks a valid certification for step %d's equipment", b.ID, wid, b.StepID))
				}
			}

			if byWorkerDate[wid] == nil {
				byWorkerDate[wid] = make(map[calendar.Date][]Block)
			}
			byWorkerDate[wid][b.Date] = append(byWorkerDate[wid][b.Date], b)
		}
	}

	for _, byDate := range byWorkerDate {
		for _, dayBlocks := range byDate {
			sort.Slice(dayBlocks, func(i, j int) bool { return dayBlocks[i].StartMinute < dayBlocks[j].StartMinute })
			for i := 1; i < len(dayBlocks); i++ {
				if dayBlocks[i].StartMinute < dayBlocks[i-1].EndMinute {
					res.Errors = append(res.Errors, fmt.Sprintf("blocks %d and %d overlap for the same worker on %s", dayBlocks[i-1].ID, dayBlocks[i].ID, dayBlocks[i].Date))
				}
			}
		}
	}

	return res
}
