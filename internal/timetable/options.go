package timetable

// DefaultDateKeyLayout renders date keys as DD/MM/YYYY, e.g. "24/11/2025".
const DefaultDateKeyLayout = "02/01/2006"

// Options tunes column inference and date-key rendering. The zero value is
// usable; missing fields take their defaults.
type Options struct {
	// SubjectColumn is the positional index tried first for the subject name.
	SubjectColumn int
	// SubjectLabels are label substrings tried when SubjectColumn is absent.
	SubjectLabels []string
	// DateKeyLayout is the time layout used for ScheduleByDate keys.
	DateKeyLayout string
	// Periods maps period codes to time ranges.
	Periods PeriodTable
}

func DefaultOptions() Options {
	return Options{
		SubjectColumn: DefaultSubjectColumn,
		SubjectLabels: DefaultSubjectLabels,
		DateKeyLayout: DefaultDateKeyLayout,
		Periods:       DefaultPeriods,
	}
}

func (o Options) normalize() Options {
	// Column 0 holds the weekday, so it can never be the subject.
	if o.SubjectColumn <= 0 {
		o.SubjectColumn = DefaultSubjectColumn
	}
	if len(o.SubjectLabels) == 0 {
		o.SubjectLabels = DefaultSubjectLabels
	}
	if o.DateKeyLayout == "" {
		o.DateKeyLayout = DefaultDateKeyLayout
	}
	if len(o.Periods) == 0 {
		o.Periods = DefaultPeriods
	}
	return o
}
