// Package proficiency implements the performance-driven proficiency engine
//: efficiency derivation from completed blocks, the 1..5
// level banding, the auto-adjustment batch, and output-history trend
// metrics.
package proficiency

import (
	"math"
	"sort"
	"time"
)

// Level is a proficiency level, 1 (slowest) through 5 (fastest).
type Level int

// CompletedBlock is one completed assignment's actual performance, used to
// compute efficiency.
type CompletedBlock struct {
	WorkerID            uint
	StepID              uint
	ActualOutput        int
	TimePerPieceSeconds int
	Start               time.Time
	End                 time.Time
	LunchSeconds        int // lunch overlap to subtract from actual_time, if any
	CompletedAt         time.Time
}

// EfficiencyPct computes (planned_time / actual_time) * 100 for one
// completed block.
func EfficiencyPct(b CompletedBlock) float64 {
	plannedSeconds := float64(b.ActualOutput * b.TimePerPieceSeconds)
	actualSeconds := b.End.Sub(b.Start).Seconds() - float64(b.LunchSeconds)
	if actualSeconds <= 0 {
		return 0
	}
	return plannedSeconds / actualSeconds * 100
}

// DeriveLevel maps an average efficiency percentage to a 1..5 level band.
func DeriveLevel(avgEfficiencyPct float64) Level {
	switch {
	case avgEfficiencyPct >= 130:
		return 5
	case avgEfficiencyPct >= 115:
		return 4
	case avgEfficiencyPct >= 85:
		return 3
	case avgEfficiencyPct >= 70:
		return 2
	default:
		return 1
	}
}

// AdjustmentReason names why a proficiency change was proposed or applied.
type AdjustmentReason string

const (
	ReasonAutoIncrease AdjustmentReason = "auto_increase"
	ReasonAutoDecrease AdjustmentReason = "auto_decrease"
	ReasonManual       AdjustmentReason = "manual"
)

// Adjustment is a proposed or applied level change for one (worker, step).
type Adjustment struct {
	WorkerID      uint
	StepID        uint
	FromLevel     Level
	ToLevel       Level
	Reason        AdjustmentReason
	AvgEfficiency float64
	SampleSize    int
}

// workerStep groups completed blocks for the auto-adjustment batch.
type workerStep struct {
	WorkerID uint
	StepID   uint
}

// CurrentLevel is looked up by the caller for each (worker, step) pair that
// has enough recent history to be considered for auto-adjustment.
type CurrentLevel func(workerID, stepID uint) Level

// AutoAdjust is the periodic adjustment batch: for every (worker, step)
// pair with at least 5 completed blocks in the last 30 days (relative to
// now), proposes auto_increase when the mean efficiency exceeds 120% and the
// current level is below 5, or auto_decrease when it is below 80% and the
// current level is above 1.
func AutoAdjust(blocks []CompletedBlock, now time.Time, currentLevel CurrentLevel) []Adjustment {
	cutoff := now.AddDate(0, 0, -30)
	grouped := make(map[workerStep][]CompletedBlock)
	for _, b := range blocks {
		if b.CompletedAt.Before(cutoff) {
			continue
		}
		key := workerStep{WorkerID: b.WorkerID, StepID: b.StepID}
		grouped[key] = append(grouped[key], b)
	}

	var keys []workerStep
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].WorkerID != keys[j].WorkerID {
			return keys[i].WorkerID < keys[j].WorkerID
		}
		return keys[i].StepID < keys[j].StepID
	})

	var adjustments []Adjustment
	for _, key := range keys {
		group := grouped[key]
		if len(group) < 5 {
			continue
		}
		sum := 0.0
		for _, b := range group {
			sum += EfficiencyPct(b)
		}
		mean := sum / float64(len(group))
		current := currentLevel(key.WorkerID, key.StepID)

		switch {
		case mean > 120 && current < 5:
			adjustments = append(adjustments, Adjustment{
				WorkerID: key.WorkerID, StepID: key.StepID,
				FromLevel: current, ToLevel: current + 1,
				Reason: ReasonAutoIncrease, AvgEfficiency: mean, SampleSize: len(group),
			})
		case mean < 80 && current > 1:
			adjustments = append(adjustments, Adjustment{
				WorkerID: key.WorkerID, StepID: key.StepID,
				FromLevel: current, ToLevel: current - 1,
				Reason: ReasonAutoDecrease, AvgEfficiency: mean, SampleSize: len(group),
			})
		}
	}
	return adjustments
}

// OutputSample is one append-only output-history record for an assignment.
type OutputSample struct {
	Output     int
	RecordedAt time.Time
}

// Trend is the output-history trend summary.
type Trend struct {
	BeginRate   float64 // seconds per unit, first quartile
	MiddleRate  float64 // seconds per unit, middle half
	EndRate     float64 // seconds per unit, last quartile
	SpeedupPct  float64
	SampleCount int
}

// DeriveTrend computes begin/middle/end pace and speedup percentage from an
// append-only (output, recorded_at) stream. Requires at least 2 samples with
// positive delta-output; returns ok=false otherwise.
func DeriveTrend(samples []OutputSample) (Trend, bool) {
	sorted := append([]OutputSample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RecordedAt.Before(sorted[j].RecordedAt) })

	type interval struct {
		secondsPerUnit float64
	}
	var intervals []interval
	for i := 1; i < len(sorted); i++ {
		dOutput := sorted[i].Output - sorted[i-1].Output
		if dOutput <= 0 {
			continue
		}
		dSeconds := sorted[i].RecordedAt.Sub(sorted[i-1].RecordedAt).Seconds()
		intervals = append(intervals, interval{secondsPerUnit: dSeconds / float64(dOutput)})
	}
	if len(intervals) < 2 {
		return Trend{}, false
	}

	n := len(intervals)
	q := n / 4
	if q == 0 {
		q = 1
	}
	beginSlice := intervals[:q]
	endSlice := intervals[n-q:]
	middleSlice := intervals[q : n-q]
	if len(middleSlice) == 0 {
		middleSlice = intervals
	}

	avg := func(xs []interval) float64 {
		if len(xs) == 0 {
			return 0
		}
		sum := 0.0
		for _, x := range xs {
			sum += x.secondsPerUnit
		}
		return sum / float64(len(xs))
	}

	begin := avg(beginSlice)
	middle := avg(middleSlice)
	end := avg(endSlice)

	var speedup float64
	if begin > 0 {
		speedup = (begin - end) / begin * 100
	}

	return Trend{
		BeginRate:   begin,
		MiddleRate:  middle,
		EndRate:     end,
		SpeedupPct:  math.Round(speedup*100) / 100,
		SampleCount: len(sorted),
	}, true
}
