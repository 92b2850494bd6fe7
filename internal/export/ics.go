package export

import (
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"tkbcal/internal/model"
	"tkbcal/internal/timetable"
)

const productID = "-//tkbcal//timetable//VI"

// uidNamespace scopes the name-based event UIDs.
var uidNamespace = uuid.MustParse("6f1c7c1e-8a55-4b8e-9a59-0f3b7f2e4d10")

// ICSOptions controls calendar emission.
type ICSOptions struct {
	Periods timetable.PeriodTable
	// Location is the zone class times are given in. Nil means time.Local.
	Location *time.Location
	// Now stamps DTSTAMP; nil means time.Now.
	Now func() time.Time
}

// WriteICS writes one VEVENT per schedule entry. Event UIDs depend only on
// the date, subject key and position in the day, so re-exporting the same
// timetable updates events instead of duplicating them.
func WriteICS(w io.Writer, res model.Result, opts ICSOptions) error {
	if len(opts.Periods) == 0 {
		opts.Periods = timetable.DefaultPeriods
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	stamp := opts.Now().UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, key := range res.DateKeys() {
		for i, e := range res.ScheduleByDate[key] {
			startClock, endClock := clockRange(opts.Periods, e.PeriodLabel)
			start, ok := timetable.ClockOn(e.Date, startClock, opts.Location)
			if !ok {
				continue
			}
			end, ok := timetable.ClockOn(e.Date, endClock, opts.Location)
			if !ok {
				continue
			}

			ev := cal.AddEvent(EventUID(key, e.SubjectKey, i))
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary(e.SubjectName)
			if e.Room != "" {
				ev.SetLocation(e.Room)
			}
			ev.SetDescription(describe(e))
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// EventUID derives a stable UID for the index-th entry of a day.
func EventUID(dateKey, subjectKey string, index int) string {
	name := dateKey + "|" + subjectKey + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + "@tkbcal"
}

func describe(e model.ScheduleEntry) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.SubjectCode, e.PeriodLabel, e.Teacher} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
