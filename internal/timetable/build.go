package timetable

import (
	appLog "tkbcal/internal/log"
	"tkbcal/internal/model"
)

// Build runs column inference and date-range expansion over rows and
// returns a fresh schedule index. Rows that cannot be resolved, or whose
// time-range cell holds no date-range token, are skipped silently. A row
// whose token matches but names an impossible date, or whose weekday is
// not in 1..7, still registers its subject and contributes no dates.
// Build keeps no state between calls, so the same rows always produce the
// same result. The returned maps are owned by the caller.
func Build(rows []model.RawRow, opts Options) model.Result {
	res := model.EmptyResult()
	if len(rows) == 0 {
		return res
	}

	opts = opts.normalize()
	in := newInferrer(opts)
	seen := make(map[string]bool)

	for _, row := range rows {
		f, ok := in.resolve(row)
		if !ok {
			continue
		}
		rng, ok := ParseDateRange(f.TimeRangeRaw)
		if !ok {
			continue
		}

		period := opts.Periods.Label(f.PeriodCode)
		weekday := WeekdayName(f.WeekdayOrdinal)
		key := f.SubjectKey()

		group, ok := res.SubjectGroups[key]
		if !ok {
			group = model.SubjectGroup{
				Code:        f.SubjectCode,
				Name:        f.SubjectName,
				Teacher:     f.Teacher,
				TimePeriods: []model.TimePeriod{},
			}
		}
		group.TimePeriods = append(group.TimePeriods, model.TimePeriod{
			StartDate:      rng.StartRaw,
			EndDate:        rng.EndRaw,
			Room:           f.Room,
			Period:         period,
			WeekdayName:    weekday,
			WeekdayOrdinal: f.WeekdayOrdinal,
			TimeRange:      f.TimeRangeRaw,
		})
		res.SubjectGroups[key] = group

		for _, d := range ExpandDates(rng, f.WeekdayOrdinal) {
			dateKey := d.Format(opts.DateKeyLayout)
			res.ScheduleByDate[dateKey] = append(res.ScheduleByDate[dateKey], model.ScheduleEntry{
				Date:           d,
				SubjectName:    f.SubjectName,
				SubjectCode:    f.SubjectCode,
				Room:           f.Room,
				PeriodLabel:    period,
				Teacher:        f.Teacher,
				WeekdayName:    weekday,
				WeekdayOrdinal: f.WeekdayOrdinal,
				TimeRangeRaw:   f.TimeRangeRaw,
				SubjectKey:     key,
			})
		}

		if f.SubjectName != "" && !seen[f.SubjectName] {
			seen[f.SubjectName] = true
			res.Subjects = append(res.Subjects, f.SubjectName)
		}
	}

	appLog.Debug("timetable built",
		"rows", len(rows),
		"dates", len(res.ScheduleByDate),
		"subjects", len(res.Subjects),
		"subject_groups", len(res.SubjectGroups),
	)
	return res
}
