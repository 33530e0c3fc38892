package calendar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
)

func TestTimeToMinutesRoundTrip(t *testing.T) {
	m, err := calendar.TimeToMinutes("07:00")
	require.NoError(t, err)
	assert.Equal(t, 420, m)
	assert.Equal(t, "07:00", calendar.MinutesToTime(m))

	m, err = calendar.TimeToMinutes("15:30")
	require.NoError(t, err)
	assert.Equal(t, 930, m)
}

func TestTimeToMinutesInvalid(t *testing.T) {
	_, err := calendar.TimeToMinutes("25:99")
	assert.Error(t, err)
}

func TestDefaultConfigRegularMinutes(t *testing.T) {
	cfg := calendar.DefaultConfig()
	assert.Equal(t, 480, cfg.RegularMinutesPerDay())
}

func TestWorkMinutesExcludesLunch(t *testing.T) {
	cfg := calendar.DefaultConfig()
	// 07:00 to 15:30 spans the whole day including lunch.
	assert.Equal(t, 480, cfg.WorkMinutes(420, 930))
	// A block entirely before lunch.
	assert.Equal(t, 50, cfg.WorkMinutes(420, 470))
	// A block spanning lunch exactly.
	assert.Equal(t, 30, cfg.WorkMinutes(650, 710)) // 10:50-11:50, 30 min lunch removed
}

func TestAdvanceTimeSkipsLunch(t *testing.T) {
	cfg := calendar.DefaultConfig()
	// Starting at 10:50, advancing 20 minutes of work crosses lunch.
	end := cfg.AdvanceTime(650, 20, cfg.AfternoonEndMinute)
	assert.Equal(t, cfg.LunchEndMinute+10, end)
}

func TestAdvanceTimeClipsAtAfternoonEnd(t *testing.T) {
	cfg := calendar.DefaultConfig()
	end := cfg.AdvanceTime(900, 1000, cfg.AfternoonEndMinute)
	assert.Equal(t, cfg.AfternoonEndMinute, end)
}

func TestNextWorkdaySkipsWeekend(t *testing.T) {
	// 2026-07-31 is a Friday.
	fri := calendar.NewDate(2026, 7, 31)
	next := calendar.NextWorkday(fri, nil)
	assert.Equal(t, calendar.NewDate(2026, 8, 3), next) // Monday
}

func TestNextWorkdayHonorsHolidayPredicate(t *testing.T) {
	mon := calendar.NewDate(2026, 8, 3)
	holiday := func(d calendar.Date) bool { return d == calendar.NewDate(2026, 8, 4) }
	next := calendar.NextWorkday(mon, holiday)
	assert.Equal(t, calendar.NewDate(2026, 8, 5), next)
}

func TestDateCompare(t *testing.T) {
	a := calendar.NewDate(2026, 1, 1)
	b := calendar.NewDate(2026, 1, 2)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestDateStringRoundTrip(t *testing.T) {
	d := calendar.NewDate(2026, 7, 29)
	parsed, err := calendar.ParseDate(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}
