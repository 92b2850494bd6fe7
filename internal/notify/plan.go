package notify

import (
	"sort"
	"strconv"
	"time"
	"unicode/utf16"

	"tkbcal/internal/model"
	"tkbcal/internal/timetable"
)

// DefaultLead is how long before a class starts its reminder fires.
const DefaultLead = 15 * time.Minute

// Reminder is one planned notification for one schedule entry.
type Reminder struct {
	ID        int64               `json:"id"`
	DateKey   string              `json:"dateKey"`
	Index     int                 `json:"index"`
	Title     string              `json:"title"`
	Body      string              `json:"body"`
	StartAt   time.Time           `json:"startAt"`
	TriggerAt time.Time           `json:"triggerAt"`
	Entry     model.ScheduleEntry `json:"entry"`
}

// PlanOptions controls reminder planning.
type PlanOptions struct {
	Lead     time.Duration
	Location *time.Location
	Periods  timetable.PeriodTable
}

func (o PlanOptions) normalize() PlanOptions {
	if o.Lead <= 0 {
		o.Lead = DefaultLead
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if len(o.Periods) == 0 {
		o.Periods = timetable.DefaultPeriods
	}
	return o
}

// Plan lists a reminder for every entry that has a known period and starts
// after now, ordered by trigger time.
func Plan(res model.Result, now time.Time, opts PlanOptions) []Reminder {
	opts = opts.normalize()
	out := make([]Reminder, 0)

	for _, key := range res.DateKeys() {
		for i, e := range res.ScheduleByDate[key] {
			p, ok := opts.Periods.ByLabel(e.PeriodLabel)
			if !ok {
				continue
			}
			start, ok := timetable.ClockOn(e.Date, p.Start, opts.Location)
			if !ok || !start.After(now) {
				continue
			}
			out = append(out, Reminder{
				ID:        NotificationID(key, e.SubjectCode, i),
				DateKey:   key,
				Index:     i,
				Title:     "Môn " + e.SubjectName,
				Body:      p.Start + ", " + e.Room,
				StartAt:   start,
				TriggerAt: start.Add(-opts.Lead),
				Entry:     e,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggerAt.Before(out[j].TriggerAt)
	})
	return out
}

// NotificationID derives a numeric id from (dateKey, code, index): the
// absolute value of a 32-bit rolling hash over the UTF-16 code units of the
// concatenation, cut to its first 9 decimal digits. Distinct entries can
// collide; a colliding reminder replaces the earlier one on devices that key
// notifications by id.
func NotificationID(dateKey, code string, index int) int64 {
	h := int64(hashString(dateKey + code + strconv.Itoa(index)))
	if h < 0 {
		h = -h
	}
	digits := strconv.FormatInt(h, 10)
	if len(digits) > 9 {
		digits = digits[:9]
	}
	id, _ := strconv.ParseInt(digits, 10, 64)
	return id
}

func hashString(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	return h
}
