package export

import (
	"encoding/csv"
	"io"
	"time"

	"tkbcal/internal/model"
	"tkbcal/internal/timetable"
)

// Fallback clock readings for entries whose period is not in the table.
const (
	fallbackStart = "18:00"
	fallbackEnd   = "21:00"
)

var csvHeader = []string{
	"Subject",
	"Start Date",
	"Start Time",
	"End Date",
	"End Time",
	"All Day Event",
	"Description",
}

// WriteCSV writes the schedule in the CSV layout Google Calendar, Outlook and
// Apple Calendar accept for import: one row per entry, dates first to last.
func WriteCSV(w io.Writer, res model.Result, periods timetable.PeriodTable) error {
	if len(periods) == 0 {
		periods = timetable.DefaultPeriods
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, key := range res.DateKeys() {
		for _, e := range res.ScheduleByDate[key] {
			start, end := clockRange(periods, e.PeriodLabel)
			date := e.Date.Format("01/02/2006")
			record := []string{
				e.SubjectName,
				date,
				formatTime12(start),
				date,
				formatTime12(end),
				"False",
				e.PeriodLabel + " " + e.Room,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func clockRange(periods timetable.PeriodTable, label string) (string, string) {
	if p, ok := periods.ByLabel(label); ok {
		return p.Start, p.End
	}
	return fallbackStart, fallbackEnd
}

// formatTime12 renders "15:05" as "3:05 PM".
func formatTime12(clock string) string {
	t, ok := timetable.ClockOn(time.Time{}, clock, time.UTC)
	if !ok {
		return ""
	}
	return t.Format("3:04 PM")
}
