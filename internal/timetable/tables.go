package timetable

import (
	"strconv"
	"strings"
	"time"
)

// Period is a fixed daily time block identified by its lesson-slot code.
type Period struct {
	Code  string // comma-joined lesson slots, e.g. "1,2,3"
	Start string // "7:00"
	End   string // "9:25"
}

// Label is the human time range, e.g. "7:00 - 9:25".
func (p Period) Label() string {
	return p.Start + " - " + p.End
}

// PeriodTable maps period codes to time blocks.
type PeriodTable []Period

// DefaultPeriods is the institution's lesson-slot table.
var DefaultPeriods = PeriodTable{
	{Code: "1,2,3", Start: "7:00", End: "9:25"},
	{Code: "4,5,6", Start: "9:35", End: "12:00"},
	{Code: "7,8,9", Start: "12:30", End: "14:55"},
	{Code: "10,11,12", Start: "15:05", End: "17:00"},
	{Code: "13,14,15", Start: "18:00", End: "21:15"},
}

// Label returns the time range for a period code, or "" if the code is unknown.
func (t PeriodTable) Label(code string) string {
	if p, ok := t.ByCode(code); ok {
		return p.Label()
	}
	return ""
}

func (t PeriodTable) ByCode(code string) (Period, bool) {
	code = strings.Join(strings.Fields(code), "")
	for _, p := range t {
		if p.Code == code {
			return p, true
		}
	}
	return Period{}, false
}

// ByLabel finds the period whose Label equals label. Downstream consumers
// only see the label on a ScheduleEntry, so this is how they recover the
// start and end clock times.
func (t PeriodTable) ByLabel(label string) (Period, bool) {
	for _, p := range t {
		if p.Label() == label {
			return p, true
		}
	}
	return Period{}, false
}

// GetTimeByPeriod looks a period code up in DefaultPeriods.
func GetTimeByPeriod(code string) string {
	return DefaultPeriods.Label(code)
}

// Weekday ordinals follow the timetable export: 1 = Sunday ... 7 = Saturday.
var weekdayNames = map[int]string{
	1: "Chủ nhật",
	2: "Thứ Hai",
	3: "Thứ Ba",
	4: "Thứ Tư",
	5: "Thứ Năm",
	6: "Thứ Sáu",
	7: "Thứ Bảy",
}

// WeekdayName returns the localized weekday name for an ordinal, or "".
func WeekdayName(ordinal int) string {
	return weekdayNames[ordinal]
}

// ZeroBasedWeekday converts a 1..7 ordinal (1 = Sunday) to 0..6 (0 = Sunday).
func ZeroBasedWeekday(ordinal int) int {
	if ordinal == 1 {
		return 0
	}
	return ordinal - 1
}

// ValidOrdinal reports whether ordinal is in 1..7.
func ValidOrdinal(ordinal int) bool {
	return ordinal >= 1 && ordinal <= 7
}

// Weekday converts an ordinal to a time.Weekday.
func Weekday(ordinal int) time.Weekday {
	return time.Weekday(ZeroBasedWeekday(ordinal))
}

// ClockOn places an "H:MM" clock reading on the calendar day of date, in loc.
func ClockOn(date time.Time, clock string, loc *time.Location) (time.Time, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return time.Time{}, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, loc), true
}
