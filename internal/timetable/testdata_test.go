package timetable

import "tkbcal/internal/model"

// classRow builds a row in the column order of the institution's export.
func classRow(weekday any, code, name, period, room, teacher, timeRange string) model.RawRow {
	return model.NewRawRow(
		"Thứ", weekday,
		"Mã học phần", code,
		"Nhóm", "01",
		"Tên học phần", name,
		"Tiết", period,
		"Phòng học", room,
		"CBGD", teacher,
		"Thời gian học", timeRange,
	)
}
