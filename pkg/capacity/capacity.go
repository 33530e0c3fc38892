// Package capacity implements the capacity/deadline-risk analyzer: a
// scenario-agnostic estimate of available workforce hours versus required
// hours for open demand over a horizon.
package capacity

import (
	"sort"
	"time"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
)

// DefaultHoursPerDay is the assumed per-worker daily capacity when no
// override is supplied.
const DefaultHoursPerDay = 8.0

// WorkerOverride lets a caller mark a worker unavailable, or set a
// non-default daily hour count, for the horizon being analyzed.
type WorkerOverride struct {
	Available   bool
	HoursPerDay float64
}

// Worker is the subset of worker fields the analyzer needs.
type Worker struct {
	ID     uint
	Active bool
}

// DemandStep is one BOM step's per-piece time contribution, in seconds.
type DemandStep struct {
	TimePerPieceSeconds int
}

// Demand is one open demand entry to assess.
type Demand struct {
	ID       uint
	Quantity int
	DueDate  calendar.Date
	Steps    []DemandStep
}

// Risk is the per-demand capacity assessment.
type Risk struct {
	DemandID               uint    `json:"demand_id"`
	RequiredHours          float64 `json:"required_hours"`
	AvailableHoursUntilDue float64 `json:"available_hours_until_due"`
	CanMeet                bool    `json:"can_meet"`
	ShortfallHours         float64 `json:"shortfall_hours"`
}

// WeekPoint is one Monday's available/required hours in the weekly
// breakdown.
type WeekPoint struct {
	WeekOf         calendar.Date `json:"week_of"`
	AvailableHours float64       `json:"available_hours"`
	RequiredHours  float64       `json:"required_hours"`
}

// Report is the full analyzer output for a date range.
type Report struct {
	AvailableHours  float64       `json:"available_hours"`
	Risks           map[uint]Risk `json:"risks"`
	WeeklyBreakdown []WeekPoint   `json:"weekly_breakdown"`
}

// weekdaysInRange counts Mon-Fri days in [start, end] inclusive, honoring an
// optional holiday predicate.
func weekdaysInRange(start, end calendar.Date, holiday calendar.HolidayFunc) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDays(1) {
		if calendar.IsWorkday(d, holiday) {
			count++
		}
	}
	return count
}

// Analyze computes available hours across the range for the active worker
// pool (honoring per-worker overrides), and per-demand required-hours risk,
// optionally scaled by a proficiency multiplier (1.0 when absent).
func Analyze(
	start, end calendar.Date,
	workers []Worker,
	overrides map[uint]WorkerOverride,
	demand []Demand,
	proficiencyMultiplier map[uint]float64, // keyed by demand id; 1.0 if absent
	holiday calendar.HolidayFunc,
) Report {
	weekdays := weekdaysInRange(start, end, holiday)

	available := 0.0
	for _, w := range workers {
		if ov, ok := overrides[w.ID]; ok {
			if !ov.Available {
				continue
			}
			hrs := ov.HoursPerDay
			if hrs <= 0 {
				hrs = DefaultHoursPerDay
			}
			available += hrs * float64(weekdays)
			continue
		}
		if !w.Active {
			continue
		}
		available += DefaultHoursPerDay * float64(weekdays)
	}

	risks := make(map[uint]Risk, len(demand))
	for _, d := range demand {
		totalSeconds := 0
		for _, s := range d.Steps {
			totalSeconds += s.TimePerPieceSeconds
		}
		requiredHours := float64(d.Quantity) * float64(totalSeconds) / 3600.0
		mult := 1.0
		if m, ok := proficiencyMultiplier[d.ID]; ok && m > 0 {
			mult = m
		}
		requiredHours /= mult

		untilDue := d.DueDate
		if untilDue.After(end) {
			untilDue = end
		}
		availableUntilDue := 0.0
		daysUntilDue := weekdaysInRange(start, untilDue, holiday)
		if weekdays > 0 {
			availableUntilDue = available * float64(daysUntilDue) / float64(weekdays)
		}

		shortfall := requiredHours - availableUntilDue
		if shortfall < 0 {
			shortfall = 0
		}
		risks[d.ID] = Risk{
			DemandID:               d.ID,
			RequiredHours:          requiredHours,
			AvailableHoursUntilDue: availableUntilDue,
			CanMeet:                requiredHours <= availableUntilDue,
			ShortfallHours:         shortfall,
		}
	}

	var weekly []WeekPoint
	for d := mondayOnOrAfter(start); !d.After(end); d = d.AddDays(7) {
		weekEnd := d.AddDays(6)
		if weekEnd.After(end) {
			weekEnd = end
		}
		wdays := weekdaysInRange(d, weekEnd, holiday)
		weekAvailable := 0.0
		if weekdays > 0 {
			weekAvailable = available * float64(wdays) / float64(weekdays)
		}
		weekRequired := 0.0
		for _, d2 := range demand {
			if !d2.DueDate.Before(d) && !d2.DueDate.After(weekEnd) {
				totalSeconds := 0
				for _, s := range d2.Steps {
					totalSeconds += s.TimePerPieceSeconds
				}
				weekRequired += float64(d2.Quantity) * float64(totalSeconds) / 3600.0
			}
		}
		weekly = append(weekly, WeekPoint{WeekOf: d, AvailableHours: weekAvailable, RequiredHours: weekRequired})
	}
	sort.Slice(weekly, func(i, j int) bool { return weekly[i].WeekOf.Before(weekly[j].WeekOf) })

	return Report{AvailableHours: available, Risks: risks, WeeklyBreakdown: weekly}
}

func mondayOnOrAfter(d calendar.Date) calendar.Date {
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}
