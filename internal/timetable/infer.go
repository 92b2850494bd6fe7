package timetable

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"tkbcal/internal/model"
)

const (
	// DefaultSubjectName and DefaultSubjectCode stand in when no column resolves.
	DefaultSubjectName = "Môn học"
	DefaultSubjectCode = "ERR"

	// DefaultSubjectColumn is the positional guess for the subject name.
	// Older exports put it at 4; see Options.SubjectColumn.
	DefaultSubjectColumn = 3

	weekdayColumn = 0
	codeColumn    = 1
)

// DefaultSubjectLabels are matched against column labels when the subject
// column is not available by position.
var DefaultSubjectLabels = []string{"tên", "môn"}

var (
	codeLabels    = []string{"mã"}
	roomLabels    = []string{"phòng"}
	periodLabels  = []string{"tiết"}
	teacherLabels = []string{"giảng viên", "cbgd"}
)

// Fields holds the semantic values resolved from one RawRow.
type Fields struct {
	WeekdayOrdinal int
	TimeRangeRaw   string
	SubjectName    string
	SubjectCode    string
	Room           string
	PeriodCode     string
	Teacher        string
}

// SubjectKey groups rows by code and name.
func (f Fields) SubjectKey() string {
	return f.SubjectCode + "_" + f.SubjectName
}

// stage locates one column in a row. Stages are chained with firstOf.
type stage func(row model.RawRow) (model.Column, bool)

// inferrer resolves Fields from rows. It caches folded labels and is not
// safe for concurrent use.
type inferrer struct {
	opts   Options
	caser  cases.Caser
	folded map[string]string

	subject stage
	code    stage
	room    stage
	period  stage
	teacher stage
	timeCol stage
}

func newInferrer(opts Options) *inferrer {
	in := &inferrer{
		opts:   opts,
		caser:  cases.Lower(language.Vietnamese),
		folded: make(map[string]string),
	}
	in.timeCol = firstOf(valueWhere(isSlashString), lastColumn)
	in.subject = firstOf(atPosition(opts.SubjectColumn), in.labelContains(opts.SubjectLabels, false))
	in.code = firstOf(atPosition(codeColumn), in.labelContains(codeLabels, false))
	in.room = in.labelContains(roomLabels, true)
	in.period = in.labelContains(periodLabels, false)
	in.teacher = in.labelContains(teacherLabels, false)
	return in
}

// InferFields resolves the fields of a single row. ok is false when the
// weekday or time-range cell is missing or empty, in which case the row
// contributes nothing. WeekdayOrdinal is 0 when the weekday cell is not
// numeric.
func InferFields(row model.RawRow, opts Options) (Fields, bool) {
	return newInferrer(opts.normalize()).resolve(row)
}

func (in *inferrer) resolve(row model.RawRow) (Fields, bool) {
	var f Fields

	wd, ok := atPosition(weekdayColumn)(row)
	if !ok {
		return f, false
	}
	raw := model.CellString(wd.Value)
	if strings.TrimSpace(raw) == "" {
		return f, false
	}
	// A weekday that is not a number in 1..7 still resolves; it just
	// matches no date during expansion.
	f.WeekdayOrdinal, _ = parseLeadingInt(raw)

	tc, ok := in.timeCol(row)
	if !ok {
		return f, false
	}
	f.TimeRangeRaw = model.CellString(tc.Value)
	if f.TimeRangeRaw == "" {
		return f, false
	}

	f.SubjectName = valueOr(in.subject, row, DefaultSubjectName)
	f.SubjectCode = valueOr(in.code, row, DefaultSubjectCode)
	f.Room = valueOr(in.room, row, "")
	f.PeriodCode = valueOr(in.period, row, "")
	f.Teacher = valueOr(in.teacher, row, "")
	return f, true
}

func valueOr(s stage, row model.RawRow, def string) string {
	c, ok := s(row)
	if !ok {
		return def
	}
	return model.CellString(c.Value)
}

func firstOf(stages ...stage) stage {
	return func(row model.RawRow) (model.Column, bool) {
		for _, s := range stages {
			if c, ok := s(row); ok {
				return c, true
			}
		}
		return model.Column{}, false
	}
}

func atPosition(i int) stage {
	return func(row model.RawRow) (model.Column, bool) {
		return row.At(i)
	}
}

func lastColumn(row model.RawRow) (model.Column, bool) {
	return row.At(len(row) - 1)
}

func valueWhere(pred func(any) bool) stage {
	return func(row model.RawRow) (model.Column, bool) {
		for _, c := range row {
			if pred(c.Value) {
				return c, true
			}
		}
		return model.Column{}, false
	}
}

// labelContains matches the first column whose folded label contains any of
// words. With nonEmpty set, columns with an empty value are passed over.
func (in *inferrer) labelContains(words []string, nonEmpty bool) stage {
	folded := make([]string, 0, len(words))
	for _, w := range words {
		if w = in.fold(w); w != "" {
			folded = append(folded, w)
		}
	}
	return func(row model.RawRow) (model.Column, bool) {
		for _, c := range row {
			if nonEmpty && model.CellString(c.Value) == "" {
				continue
			}
			label := in.fold(c.Label)
			for _, w := range folded {
				if strings.Contains(label, w) {
					return c, true
				}
			}
		}
		return model.Column{}, false
	}
}

func (in *inferrer) fold(s string) string {
	if v, ok := in.folded[s]; ok {
		return v
	}
	v := in.caser.String(norm.NFC.String(s))
	in.folded[s] = v
	return v
}

func isSlashString(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, "/")
}

// parseLeadingInt reads the integer prefix of s ("2", " 3 ", "4.0", "5abc").
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
