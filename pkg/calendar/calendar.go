// Package calendar implements the work-day model shared by the whole
// scheduling kernel: morning/lunch/afternoon minute arithmetic, weekend
// skipping, and the overtime window. Dates are an opaque comparable type
// (day arithmetic uses time.Time internally); times are
// minutes-since-midnight integers, so slot arithmetic is free of timezone
// and wall-clock ambiguity. The kernel takes a time.Time only as the clock
// for certification expiry checks.
package calendar

import (
	"fmt"
	"time"
)

// Config is the work-calendar policy. Overtime_limit_hours_per_day is
// supplied per scenario, not baked into Config, since it varies by strategy.
type Config struct {
	MorningStartMinute int
	LunchStartMinute   int
	LunchEndMinute     int
	AfternoonEndMinute int
}

// DefaultConfig is the standard shop day: 07:00 start, lunch 11:00-11:30,
// afternoon end 15:30 — 480 regular minutes/day.
func DefaultConfig() Config {
	return Config{
		MorningStartMinute: 7 * 60,
		LunchStartMinute:   11 * 60,
		LunchEndMinute:     11*60 + 30,
		AfternoonEndMinute: 15*60 + 30,
	}
}

// RegularMinutesPerDay is the work day length excluding lunch.
func (c Config) RegularMinutesPerDay() int {
	return (c.AfternoonEndMinute - c.MorningStartMinute) - (c.LunchEndMinute - c.LunchStartMinute)
}

// OvertimeWindowEnd returns the last workable minute given a per-day
// overtime cap in minutes.
func (c Config) OvertimeWindowEnd(overtimeCapMinutes int) int {
	return c.AfternoonEndMinute + overtimeCapMinutes
}

// Date is an opaque, comparable calendar date (no time-of-day, no timezone).
type Date struct {
	Year, Month, Day int
}

func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses the external ISO "YYYY-MM-DD" representation.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// String renders the external ISO "YYYY-MM-DD" representation.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func fromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ToTime returns midnight UTC on d, for handing dates back to storage.
func (d Date) ToTime() time.Time { return d.toTime() }

// MarshalJSON renders the external ISO form.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses the external ISO form.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date json %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FromTime extracts the calendar date of t in t's own location.
func FromTime(t time.Time) Date { return fromTime(t) }

// Before reports whether d comes strictly before o.
func (d Date) Before(o Date) bool { return d.toTime().Before(o.toTime()) }

// After reports whether d comes strictly after o.
func (d Date) After(o Date) bool { return d.toTime().After(o.toTime()) }

// Equal reports whether d and o name the same calendar day.
func (d Date) Equal(o Date) bool { return d == o }

// Compare returns -1, 0, or 1 as d is before, equal to, or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Before(o):
		return -1
	case d.After(o):
		return 1
	default:
		return 0
	}
}

// AddDays returns the date n calendar days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return fromTime(d.toTime().AddDate(0, 0, n))
}

// IsWeekend reports whether d falls on a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.toTime().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Weekday returns d's day of week.
func (d Date) Weekday() time.Weekday {
	return d.toTime().Weekday()
}

// HolidayFunc is an injectable predicate for non-weekend non-work days. A
// nil HolidayFunc means "weekends are the only non-work days".
type HolidayFunc func(Date) bool

// NextWorkday returns the next date (strictly after d) that is not a
// weekend and not a holiday per the supplied predicate.
func NextWorkday(d Date, holiday HolidayFunc) Date {
	next := d.AddDays(1)
	for next.IsWeekend() || (holiday != nil && holiday(next)) {
		next = next.AddDays(1)
	}
	return next
}

// IsWorkday reports whether d itself is a work day (not weekend, not
// holiday).
func IsWorkday(d Date, holiday HolidayFunc) bool {
	if d.IsWeekend() {
		return false
	}
	if holiday != nil && holiday(d) {
		return false
	}
	return true
}

// TimeToMinutes parses "HH:MM" (24-hour) into minutes since midnight.
func TimeToMinutes(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", hhmm)
	}
	return h*60 + m, nil
}

// MinutesToTime renders minutes since midnight as "HH:MM".
func MinutesToTime(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// WorkMinutes returns the minutes between start and end, excluding any
// overlap with the lunch window.
func (c Config) WorkMinutes(start, end int) int {
	if end <= start {
		return 0
	}
	total := end - start
	total -= c.lunchOverlap(start, end)
	if total < 0 {
		total = 0
	}
	return total
}

func (c Config) lunchOverlap(start, end int) int {
	lo := max(start, c.LunchStartMinute)
	hi := min(end, c.LunchEndMinute)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// AdvanceTime adds delta minutes of *work* time to start, skipping over the
// lunch window and clipping at afternoonEnd (the caller decides whether
// afternoonEnd is the regular end or an overtime-extended end).
func (c Config) AdvanceTime(start, delta, afternoonEnd int) int {
	cur := start
	remaining := delta
	for remaining > 0 {
		if cur >= afternoonEnd {
			return afternoonEnd
		}
		// Jump straight to lunch end if we're inside the lunch window.
		if cur >= c.LunchStartMinute && cur < c.LunchEndMinute {
			cur = c.LunchEndMinute
			continue
		}
		// Distance to the next boundary (lunch start or afternoonEnd).
		nextBoundary := afternoonEnd
		if cur < c.LunchStartMinute && c.LunchStartMinute < nextBoundary {
			nextBoundary = c.LunchStartMinute
		}
		available := nextBoundary - cur
		if available <= 0 {
			cur = nextBoundary
			continue
		}
		if remaining <= available {
			cur += remaining
			remaining = 0
		} else {
			cur = nextBoundary
			remaining -= available
		}
	}
	if cur > afternoonEnd {
		cur = afternoonEnd
	}
	return cur
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
