package workerday_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
	"github.com/zainhoda/sij-manager-sub003/pkg/workerday"
)

func TestFindSlotsEmptyDaySplitsAroundLunch(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	date := calendar.NewDate(2026, 7, 29)

	slots := book.FindSlots(1, date, nil, false, 0, 15)
	require.Len(t, slots, 2)
	assert.Equal(t, cfg.MorningStartMinute, slots[0].Start)
	assert.Equal(t, cfg.LunchStartMinute, slots[0].End)
	assert.Equal(t, cfg.LunchEndMinute, slots[1].Start)
	assert.Equal(t, cfg.AfternoonEndMinute, slots[1].End)
}

func TestFindSlotsRespectsEarliestStart(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	date := calendar.NewDate(2026, 7, 29)
	earliest := cfg.MorningStartMinute + 60

	slots := book.FindSlots(1, date, &earliest, false, 0, 15)
	require.NotEmpty(t, slots)
	assert.Equal(t, earliest, slots[0].Start)
}

func TestFindSlotsExcludesCommittedTime(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	date := calendar.NewDate(2026, 7, 29)

	require.NoError(t, book.CommitSlot(1, date, cfg.MorningStartMinute, cfg.MorningStartMinute+60))

	slots := book.FindSlots(1, date, nil, false, 0, 15)
	require.NotEmpty(t, slots)
	assert.Equal(t, cfg.MorningStartMinute+60, slots[0].Start)
}

func TestFindSlotsOvertimeWindow(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	date := calendar.NewDate(2026, 7, 29)

	withoutOT := book.FindSlots(1, date, nil, false, 120, 15)
	withOT := book.FindSlots(1, date, nil, true, 120, 15)

	var lastWithout, lastWithOT int
	for _, s := range withoutOT {
		if s.End > lastWithout {
			lastWithout = s.End
		}
	}
	for _, s := range withOT {
		if s.End > lastWithOT {
			lastWithOT = s.End
		}
	}
	assert.Equal(t, cfg.AfternoonEndMinute, lastWithout)
	assert.Equal(t, cfg.OvertimeWindowEnd(120), lastWithOT)
}

func TestCommitSlotRejectsOverlap(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	date := calendar.NewDate(2026, 7, 29)

	require.NoError(t, book.CommitSlot(1, date, 420, 480))
	err := book.CommitSlot(1, date, 450, 500)
	assert.Error(t, err)
}

func TestCommitSlotAccruesRegularAndOvertime(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	date := calendar.NewDate(2026, 7, 29)

	require.NoError(t, book.CommitSlot(1, date, cfg.AfternoonEndMinute-30, cfg.AfternoonEndMinute+30))
	regular, overtime := book.Usage(1, date)
	assert.Equal(t, 30, regular)
	assert.Equal(t, 30, overtime)
}

func TestUsageIsPerWorkerPerDate(t *testing.T) {
	cfg := calendar.DefaultConfig()
	book := workerday.NewBook(cfg)
	d1 := calendar.NewDate(2026, 7, 29)
	d2 := calendar.NewDate(2026, 7, 30)

	require.NoError(t, book.CommitSlot(1, d1, 420, 480))
	regular, _ := book.Usage(1, d2)
	assert.Equal(t, 0, regular)
	regular, _ = book.Usage(2, d1)
	assert.Equal(t, 0, regular)
}
