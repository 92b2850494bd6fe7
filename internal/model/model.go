package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column is one labelled cell of a decoded spreadsheet row.
type Column struct {
	Label string `json:"label"`
	// Value is a string or a float64; anything else is stringified with fmt.
	Value any `json:"value"`
}

// RawRow is one decoded spreadsheet row. Column order is the sheet order
// and is significant: several fields are located by position.
type RawRow []Column

// NewRawRow builds a row from alternating label, value arguments.
func NewRawRow(kv ...any) RawRow {
	row := make(RawRow, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		label, _ := kv[i].(string)
		row = append(row, Column{Label: label, Value: kv[i+1]})
	}
	return row
}

// At returns the column at position i.
func (r RawRow) At(i int) (Column, bool) {
	if i < 0 || i >= len(r) {
		return Column{}, false
	}
	return r[i], true
}

// Get returns the value of the first column with the given label.
func (r RawRow) Get(label string) (any, bool) {
	for _, c := range r {
		if c.Label == label {
			return c.Value, true
		}
	}
	return nil, false
}

// Labels returns the column labels in sheet order.
func (r RawRow) Labels() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Label
	}
	return out
}

// IsBlank reports whether every cell is empty.
func (r RawRow) IsBlank() bool {
	for _, c := range r {
		if CellString(c.Value) != "" {
			return false
		}
	}
	return true
}

// CellString renders a cell value the way it would read in the sheet:
// whole numbers lose their fractional part and nil is empty.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ScheduleEntry is one class meeting on one calendar date.
type ScheduleEntry struct {
	Date           time.Time `json:"date"`
	SubjectName    string    `json:"subject"`
	SubjectCode    string    `json:"code"`
	Room           string    `json:"room"`
	PeriodLabel    string    `json:"period"`
	Teacher        string    `json:"teacher"`
	WeekdayName    string    `json:"dayOfWeek"`
	WeekdayOrdinal int       `json:"dayOfWeekNumber"`
	TimeRangeRaw   string    `json:"timeRange"`
	SubjectKey     string    `json:"subjectKey"`
}

// TimePeriod is one pre-expansion date-range rule contributed to a subject.
type TimePeriod struct {
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Room           string `json:"room"`
	Period         string `json:"period"`
	WeekdayName    string `json:"dayOfWeek"`
	WeekdayOrdinal int    `json:"dayOfWeekNumber"`
	TimeRange      string `json:"timeRange"`
}

// SubjectGroup collects every rule seen for one subject key.
type SubjectGroup struct {
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Teacher     string       `json:"teacher"`
	TimePeriods []TimePeriod `json:"timePeriods"`
}

// Result is the read-only snapshot produced by one expansion pass.
type Result struct {
	ScheduleByDate map[string][]ScheduleEntry `json:"scheduleByDate"`
	Subjects       []string                   `json:"subjects"`
	SubjectGroups  map[string]SubjectGroup    `json:"subjectGroups"`
}

// EmptyResult is the zero-value result returned for empty input.
func EmptyResult() Result {
	return Result{
		ScheduleByDate: map[string][]ScheduleEntry{},
		Subjects:       []string{},
		SubjectGroups:  map[string]SubjectGroup{},
	}
}

// IsEmpty reports whether no date has any entry.
func (r Result) IsEmpty() bool {
	return len(r.ScheduleByDate) == 0
}

// Entries returns the entries recorded for a date key, or nil.
func (r Result) Entries(dateKey string) []ScheduleEntry {
	return r.ScheduleByDate[dateKey]
}

// HasEntries answers the calendar view's "anything on this day" question.
func (r Result) HasEntries(dateKey string) bool {
	return len(r.ScheduleByDate[dateKey]) > 0
}

// DateKeys returns the date keys in calendar order.
func (r Result) DateKeys() []string {
	keys := make([]string, 0, len(r.ScheduleByDate))
	for k := range r.ScheduleByDate {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := r.ScheduleByDate[keys[i]], r.ScheduleByDate[keys[j]]
		if len(a) > 0 && len(b) > 0 && !a[0].Date.Equal(b[0].Date) {
			return a[0].Date.Before(b[0].Date)
		}
		return keys[i] < keys[j]
	})
	return keys
}

// SubjectKeys returns the subject group keys sorted lexically.
func (r Result) SubjectKeys() []string {
	keys := make([]string, 0, len(r.SubjectGroups))
	for k := range r.SubjectGroups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot is the persisted form of an imported timetable: the raw rows,
// never the derived index.
type Snapshot struct {
	FileName   string    `json:"fileName"`
	UploadedAt time.Time `json:"uploadDate"`
	Rows       []RawRow  `json:"data"`
}
