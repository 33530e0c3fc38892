// Package workerday is the per-worker-per-day slot book: it
// tracks which minutes of a worker's day are already committed and finds the
// gaps the kernel can assign new work into, including the optional overtime
// extension past the regular afternoon end.
package workerday

import (
	"fmt"
	"sort"

	"github.com/zainhoda/sij-manager-sub003/pkg/calendar"
)

// WorkerID identifies a worker. Kept as its own named type rather than a
// bare uint so kernel code reads clearly at call sites.
type WorkerID uint

// Slot is a committed or candidate [Start, End) minute interval within a day.
type Slot struct {
	Start int
	End   int
}

// Minutes returns the length of the slot.
func (s Slot) Minutes() int { return s.End - s.Start }

// DayBook is one worker's committed time on one date.
type DayBook struct {
	RegularMinutesUsed  int
	OvertimeMinutesUsed int
	Slots               []Slot
}

// Book is the slot book for every worker across every date it has touched.
type Book struct {
	cfg  calendar.Config
	days map[WorkerID]map[calendar.Date]*DayBook
}

// NewBook creates an empty slot book against the given work-calendar config.
func NewBook(cfg calendar.Config) *Book {
	return &Book{
		cfg:  cfg,
		days: make(map[WorkerID]map[calendar.Date]*DayBook),
	}
}

func (b *Book) dayBook(workerID WorkerID, date calendar.Date) *DayBook {
	byDate, ok := b.days[workerID]
	if !ok {
		byDate = make(map[calendar.Date]*DayBook)
		b.days[workerID] = byDate
	}
	db, ok := byDate[date]
	if !ok {
		db = &DayBook{}
		byDate[date] = db
	}
	return db
}

// FindSlots returns every free gap of at least minBlock minutes within the
// worker's day on date, optionally starting no earlier than earliestStart,
// optionally extending into the overtime window up to maxOTMinutes past the
// regular afternoon end. Gaps are returned in chronological order, each
// already clipped to the requested earliest-start and window bounds.
func (b *Book) FindSlots(workerID WorkerID, date calendar.Date, earliestStart *int, allowOvertime bool, maxOTMinutes int, minBlock int) []Slot {
	db := b.dayBook(workerID, date)

	windowStart := b.cfg.MorningStartMinute
	if earliestStart != nil && *earliestStart > windowStart {
		windowStart = *earliestStart
	}
	windowEnd := b.cfg.AfternoonEndMinute
	if allowOvertime {
		windowEnd = b.cfg.OvertimeWindowEnd(maxOTMinutes)
	}
	if windowEnd <= windowStart {
		return nil
	}

	busy := make([]Slot, len(db.Slots))
	copy(busy, db.Slots)
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	var gaps []Slot
	cursor := windowStart
	addGap := func(start, end int) {
		for _, part := range splitAroundLunch(b.cfg, start, end) {
			if part.Minutes() >= minBlock {
				gaps = append(gaps, part)
			}
		}
	}

	for _, s := range busy {
		if s.End <= cursor {
			continue
		}
		if s.Start >= windowEnd {
			break
		}
		gapStart := cursor
		gapEnd := s.Start
		if gapEnd > windowEnd {
			gapEnd = windowEnd
		}
		if gapEnd > gapStart {
			addGap(gapStart, gapEnd)
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < windowEnd {
		addGap(cursor, windowEnd)
	}

	return gaps
}

// splitAroundLunch breaks [start, end) into up to two sub-intervals that
// each avoid the lunch window entirely.
func splitAroundLunch(cfg calendar.Config, start, end int) []Slot {
	if start >= cfg.LunchEndMinute || end <= cfg.LunchStartMinute {
		return []Slot{{Start: start, End: end}}
	}
	var out []Slot
	if start < cfg.LunchStartMinute {
		out = append(out, Slot{Start: start, End: cfg.LunchStartMinute})
	}
	if end > cfg.LunchEndMinute {
		out = append(out, Slot{Start: cfg.LunchEndMinute, End: end})
	}
	return out
}

// CommitSlot books [start, end) for workerID on date. The caller must pass a
// gap returned by FindSlots (or a trimmed prefix of one); CommitSlot does not
// re-derive availability, it only records the booking and accrues regular vs
// overtime minutes against the configured afternoon end.
func (b *Book) CommitSlot(workerID WorkerID, date calendar.Date, start, end int) error {
	if end <= start {
		return fmt.Errorf("workerday: invalid slot [%d,%d)", start, end)
	}
	db := b.dayBook(workerID, date)
	for _, s := range db.Slots {
		if start < s.End && s.Start < end {
			return fmt.Errorf("workerday: slot [%d,%d) overlaps existing [%d,%d) for worker %d on %s", start, end, s.Start, s.End, workerID, date)
		}
	}
	db.Slots = append(db.Slots, Slot{Start: start, End: end})

	regularEnd := b.cfg.AfternoonEndMinute
	regularPortion := 0
	overtimePortion := 0
	if start < regularEnd {
		re := end
		if re > regularEnd {
			re = regularEnd
		}
		regularPortion = b.cfg.WorkMinutes(start, re)
	}
	if end > regularEnd {
		os := start
		if os < regularEnd {
			os = regularEnd
		}
		overtimePortion = end - os
	}
	db.RegularMinutesUsed += regularPortion
	db.OvertimeMinutesUsed += overtimePortion
	return nil
}

// Usage returns the day's accrued regular/overtime minutes, for callers that
// need to check a worker's daily overtime cap before offering a slot.
func (b *Book) Usage(workerID WorkerID, date calendar.Date) (regular, overtime int) {
	db := b.dayBook(workerID, date)
	return db.RegularMinutesUsed, db.OvertimeMinutesUsed
}
