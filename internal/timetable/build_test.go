package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkbcal/internal/model"
)

func countEntries(res model.Result) int {
	n := 0
	for _, day := range res.ScheduleByDate {
		n += len(day)
	}
	return n
}

func TestBuild(t *testing.T) {
	t.Run("Should index a single class row", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "Nguyễn Văn A", "01/01/2024-15/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		assert.Equal(t, []string{"01/01/2024", "08/01/2024", "15/01/2024"}, res.DateKeys())
		assert.Equal(t, []string{"Algorithms"}, res.Subjects)

		day := res.ScheduleByDate["08/01/2024"]
		require.Len(t, day, 1)
		e := day[0]
		assert.Equal(t, "08/01/2024", e.Date.Format(DefaultDateKeyLayout))
		assert.Equal(t, "Algorithms", e.SubjectName)
		assert.Equal(t, "IT001", e.SubjectCode)
		assert.Equal(t, "A101", e.Room)
		assert.Equal(t, "7:00 - 9:25", e.PeriodLabel)
		assert.Equal(t, "Nguyễn Văn A", e.Teacher)
		assert.Equal(t, "Thứ Hai", e.WeekdayName)
		assert.Equal(t, 2, e.WeekdayOrdinal)
		assert.Equal(t, "01/01/2024-15/01/2024", e.TimeRangeRaw)
		assert.Equal(t, "IT001_Algorithms", e.SubjectKey)

		group, ok := res.SubjectGroups["IT001_Algorithms"]
		require.True(t, ok)
		assert.Equal(t, "IT001", group.Code)
		assert.Equal(t, "Algorithms", group.Name)
		assert.Equal(t, "Nguyễn Văn A", group.Teacher)
		assert.Equal(t, []model.TimePeriod{{
			StartDate:      "01/01/2024",
			EndDate:        "15/01/2024",
			Room:           "A101",
			Period:         "7:00 - 9:25",
			WeekdayName:    "Thứ Hai",
			WeekdayOrdinal: 2,
			TimeRange:      "01/01/2024-15/01/2024",
		}}, group.TimePeriods)
	})

	t.Run("Should return an empty result for nil and empty input", func(t *testing.T) {
		for _, rows := range [][]model.RawRow{nil, {}} {
			res := Build(rows, DefaultOptions())

			assert.True(t, res.IsEmpty())
			assert.NotNil(t, res.ScheduleByDate)
			assert.NotNil(t, res.SubjectGroups)
			assert.Empty(t, res.Subjects)
		}
	})

	t.Run("Should skip rows without a date range token", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "", "HK1 2024/2025"),
			classRow("2", "IT002", "Networks", "4,5,6", "B2", "", "not-a-date"),
			classRow("", "IT003", "Databases", "7,8,9", "C3", "", "01/01/2024-15/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		assert.True(t, res.IsEmpty())
		assert.Empty(t, res.Subjects)
		assert.Empty(t, res.SubjectGroups)
	})

	t.Run("Should keep a subject group when its range yields no dates", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("3", "IT001", "Algorithms", "1,2,3", "A101", "", "01/01/2024-01/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		assert.Empty(t, res.ScheduleByDate)
		assert.Equal(t, []string{"Algorithms"}, res.Subjects)
		require.Contains(t, res.SubjectGroups, "IT001_Algorithms")
		assert.Len(t, res.SubjectGroups["IT001_Algorithms"].TimePeriods, 1)
	})

	t.Run("Should register a subject whose weekday is out of range", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("9", "IT001", "Algorithms", "1,2,3", "A101", "", "01/01/2024-15/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		assert.Empty(t, res.ScheduleByDate)
		assert.Equal(t, []string{"Algorithms"}, res.Subjects)
		require.Len(t, res.SubjectGroups, 1)
		periods := res.SubjectGroups["IT001_Algorithms"].TimePeriods
		require.Len(t, periods, 1)
		assert.Equal(t, 9, periods[0].WeekdayOrdinal)
		assert.Equal(t, "", periods[0].WeekdayName)
	})

	t.Run("Should register a subject whose range names an impossible date", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT002", "Networks", "4,5,6", "B2", "", "31/02/2024-15/03/2024"),
		}

		res := Build(rows, DefaultOptions())

		assert.Empty(t, res.ScheduleByDate)
		assert.Equal(t, []string{"Networks"}, res.Subjects)
		periods := res.SubjectGroups["IT002_Networks"].TimePeriods
		require.Len(t, periods, 1)
		assert.Equal(t, "31/02/2024", periods[0].StartDate)
		assert.Equal(t, "15/03/2024", periods[0].EndDate)
	})

	t.Run("Should merge rows of the same subject into one group", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "Nguyễn Văn A", "01/01/2024-15/01/2024"),
			classRow("5", "IT001", "Algorithms", "7,8,9", "Lab 1", "Trần B", "04/01/2024-18/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		group := res.SubjectGroups["IT001_Algorithms"]
		require.Len(t, group.TimePeriods, 2)
		assert.Equal(t, "Nguyễn Văn A", group.Teacher, "first row wins")
		assert.Equal(t, "Thứ Hai", group.TimePeriods[0].WeekdayName)
		assert.Equal(t, "Thứ Năm", group.TimePeriods[1].WeekdayName)
		assert.Equal(t, []string{"Algorithms"}, res.Subjects)
		assert.Equal(t, 6, countEntries(res))
	})

	t.Run("Should list distinct subjects in first seen order", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT002", "Networks", "1,2,3", "A1", "", "01/01/2024-15/01/2024"),
			classRow("3", "IT001", "Algorithms", "4,5,6", "A2", "", "01/01/2024-15/01/2024"),
			classRow("4", "IT009", "Networks", "7,8,9", "A3", "", "01/01/2024-15/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		assert.Equal(t, []string{"Networks", "Algorithms"}, res.Subjects)
		assert.Len(t, res.SubjectGroups, 3)
	})

	t.Run("Should stack entries on a shared date in row order", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "", "01/01/2024-01/01/2024"),
			classRow("2", "IT002", "Networks", "7,8,9", "B202", "", "01/01/2024-01/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		day := res.ScheduleByDate["01/01/2024"]
		require.Len(t, day, 2)
		assert.Equal(t, "Algorithms", day[0].SubjectName)
		assert.Equal(t, "Networks", day[1].SubjectName)
	})

	t.Run("Should leave the period empty for an unknown code", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "16,17", "A101", "", "01/01/2024-01/01/2024"),
		}

		res := Build(rows, DefaultOptions())

		require.Len(t, res.ScheduleByDate["01/01/2024"], 1)
		assert.Equal(t, "", res.ScheduleByDate["01/01/2024"][0].PeriodLabel)
	})

	t.Run("Should produce equal results on repeated calls", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "", "01/01/2024-29/01/2024"),
			classRow("6", "IT002", "Networks", "4,5,6", "B1", "", "05/01/2024-26/01/2024"),
		}

		first := Build(rows, DefaultOptions())
		second := Build(rows, DefaultOptions())

		assert.Equal(t, first, second)
	})

	t.Run("Should honor a custom date key layout", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "", "01/01/2024-08/01/2024"),
		}

		res := Build(rows, Options{DateKeyLayout: "2006-01-02"})

		assert.Equal(t, []string{"2024-01-01", "2024-01-08"}, res.DateKeys())
	})

	t.Run("Should honor a custom period table", func(t *testing.T) {
		rows := []model.RawRow{
			classRow("2", "IT001", "Algorithms", "A", "A101", "", "01/01/2024-01/01/2024"),
		}
		opts := Options{Periods: PeriodTable{{Code: "A", Start: "8:00", End: "10:00"}}}

		res := Build(rows, opts)

		assert.Equal(t, "8:00 - 10:00", res.ScheduleByDate["01/01/2024"][0].PeriodLabel)
	})
}
