package timetable

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var dateRangePattern = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})-(\d{1,2}/\d{1,2}/\d{4})`)

// rruleWeekdays is indexed by the zero-based (0 = Sunday) weekday.
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// DateRange is a "D/M/YYYY-D/M/YYYY" token. Start and End are zero when
// the matching side is not a real calendar date.
type DateRange struct {
	StartRaw string
	EndRaw   string
	Start    time.Time // midnight UTC
	End      time.Time // midnight UTC
}

// Valid reports whether both sides are real calendar dates.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// ParseDateRange extracts the first date-range token from s. ok reports
// whether the token pattern matched at all; a matched token with a bad
// date such as 31/02/2024 is returned with Valid() false.
func ParseDateRange(s string) (DateRange, bool) {
	m := dateRangePattern.FindStringSubmatch(s)
	if m == nil {
		return DateRange{}, false
	}
	r := DateRange{StartRaw: m[1], EndRaw: m[2]}
	if start, ok := parseDMY(m[1]); ok {
		r.Start = start
	}
	if end, ok := parseDMY(m[2]); ok {
		r.End = end
	}
	return r, true
}

// minYear bounds accepted years. 01/01/0001 is the zero time.Time, which
// rrule reads as "no DTSTART".
const minYear = 1000

func parseDMY(s string) (time.Time, bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	d, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || y < minYear {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject instead.
	if t.Day() != d || int(t.Month()) != m || t.Year() != y {
		return time.Time{}, false
	}
	return t, true
}

// ExpandDates returns every date in [r.Start, r.End] falling on the weekday
// given by ordinal (1 = Sunday ... 7 = Saturday), in ascending order. It
// returns nil for an invalid range or ordinal.
func ExpandDates(r DateRange, ordinal int) []time.Time {
	if !r.Valid() || !ValidOrdinal(ordinal) || r.End.Before(r.Start) {
		return nil
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[ZeroBasedWeekday(ordinal)]},
		Dtstart:   r.Start,
		Until:     r.End,
	})
	if err != nil {
		return nil
	}
	return rule.All()
}
