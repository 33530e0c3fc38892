package capacity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/capacity"
)

func TestAnalyzeAvailableHoursCountsWeekdaysOnly(t *testing.T) {
	// Mon 2026-07-27 through Sun 2026-08-02: 5 weekdays.
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 27), calendar.NewDate(2026, 8, 2),
		[]capacity.Worker{{ID: 1, Active: true}, {ID: 2, Active: true}},
		nil, nil, nil, nil,
	)
	assert.Equal(t, 2*8.0*5, report.AvailableHours)
}

func TestAnalyzeSkipsInactiveWorkers(t *testing.T) {
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 27), calendar.NewDate(2026, 7, 31),
		[]capacity.Worker{{ID: 1, Active: true}, {ID: 2, Active: false}},
		nil, nil, nil, nil,
	)
	assert.Equal(t, 8.0*5, report.AvailableHours)
}

func TestAnalyzeHonorsOverrides(t *testing.T) {
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 27), calendar.NewDate(2026, 7, 31),
		[]capacity.Worker{{ID: 1, Active: true}, {ID: 2, Active: true}},
		map[uint]capacity.WorkerOverride{
			1: {Available: false},
			2: {Available: true, HoursPerDay: 4},
		},
		nil, nil, nil,
	)
	assert.Equal(t, 4.0*5, report.AvailableHours)
}

func TestAnalyzeDemandRisk(t *testing.T) {
	// One worker, one week: 40 available hours. Demand needs
	// 100 x (600+840)s = 40h exactly, due at the end of the range.
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 27), calendar.NewDate(2026, 7, 31),
		[]capacity.Worker{{ID: 1, Active: true}},
		nil,
		[]capacity.Demand{{
			ID:       7,
			Quantity: 100,
			DueDate:  calendar.NewDate(2026, 7, 31),
			Steps:    []capacity.DemandStep{{TimePerPieceSeconds: 600}, {TimePerPieceSeconds: 840}},
		}},
		nil, nil,
	)
	risk, ok := report.Risks[7]
	require.True(t, ok)
	assert.InDelta(t, 40.0, risk.RequiredHours, 0.001)
	assert.True(t, risk.CanMeet)
	assert.Equal(t, 0.0, risk.ShortfallHours)
}

func TestAnalyzeShortfallWhenDueEarly(t *testing.T) {
	// Due after 2 of 5 weekdays: 16 of 40 hours available until due, but
	// 40 hours required.
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 27), calendar.NewDate(2026, 7, 31),
		[]capacity.Worker{{ID: 1, Active: true}},
		nil,
		[]capacity.Demand{{
			ID:       7,
			Quantity: 100,
			DueDate:  calendar.NewDate(2026, 7, 28),
			Steps:    []capacity.DemandStep{{TimePerPieceSeconds: 1440}},
		}},
		nil, nil,
	)
	risk := report.Risks[7]
	assert.False(t, risk.CanMeet)
	assert.InDelta(t, 16.0, risk.AvailableHoursUntilDue, 0.001)
	assert.InDelta(t, 24.0, risk.ShortfallHours, 0.001)
}

func TestAnalyzeProficiencyMultiplierScalesRequired(t *testing.T) {
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 27), calendar.NewDate(2026, 7, 31),
		[]capacity.Worker{{ID: 1, Active: true}},
		nil,
		[]capacity.Demand{{
			ID:       7,
			Quantity: 10,
			DueDate:  calendar.NewDate(2026, 7, 31),
			Steps:    []capacity.DemandStep{{TimePerPieceSeconds: 3600}},
		}},
		map[uint]float64{7: 2.0},
		nil,
	)
	assert.InDelta(t, 5.0, report.Risks[7].RequiredHours, 0.001)
}

func TestAnalyzeWeeklyBreakdownStartsOnMondays(t *testing.T) {
	report := capacity.Analyze(
		calendar.NewDate(2026, 7, 29), calendar.NewDate(2026, 8, 14),
		[]capacity.Worker{{ID: 1, Active: true}},
		nil, nil, nil, nil,
	)
	require.NotEmpty(t, report.WeeklyBreakdown)
	for _, wp := range report.WeeklyBreakdown {
		assert.Equal(t, "Monday", wp.WeekOf.Weekday().String())
	}
}
