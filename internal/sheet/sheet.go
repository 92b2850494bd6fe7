package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	appLog "tkbcal/internal/log"
	"tkbcal/internal/model"
)

// DefaultHeaderRow is the zero-based row holding column labels in the
// timetable export; everything above it is a title block.
const DefaultHeaderRow = 9

var (
	ErrNoRows            = errors.New("sheet: no data rows found")
	ErrUnsupportedFormat = errors.New("sheet: unsupported spreadsheet format")
)

// Format identifies a spreadsheet container.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// Options controls decoding.
type Options struct {
	// HeaderRow is the zero-based index of the label row. Data starts on
	// the following row. Negative means DefaultHeaderRow.
	HeaderRow int
	// Charset is passed to the legacy .xls reader.
	Charset string
}

func DefaultOptions() Options {
	return Options{HeaderRow: DefaultHeaderRow, Charset: "utf-8"}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat picks the container from the file extension, falling back
// to the leading magic bytes.
func DetectFormat(name string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	}
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, oleMagic):
		return FormatXLS, nil
	}
	return "", ErrUnsupportedFormat
}

// Decode reads the first sheet of a spreadsheet into rows keyed by the
// labels found on opts.HeaderRow. Blank rows are dropped and missing cells
// default to "".
func Decode(r io.Reader, name string, opts Options) ([]model.RawRow, error) {
	if opts.HeaderRow < 0 {
		opts.HeaderRow = DefaultHeaderRow
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}

	format, err := DetectFormat(name, body)
	if err != nil {
		return nil, err
	}

	var grid [][]string
	switch format {
	case FormatXLSX:
		grid, err = readXLSX(body)
	case FormatXLS:
		grid, err = readXLS(body, opts.Charset)
	}
	if err != nil {
		return nil, err
	}

	rows := RowsFromGrid(grid, opts.HeaderRow)
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	appLog.Info("spreadsheet decoded", "name", name, "format", format, "rows", len(rows))
	return rows, nil
}

func readXLSX(body []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRows
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return grid, nil
}

func readXLS(body []byte, charset string) ([][]string, error) {
	if charset == "" {
		charset = "utf-8"
	}
	wb, err := xls.OpenReader(bytes.NewReader(body), charset)
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoRows
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, ErrNoRows
	}

	grid := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// RowsFromGrid turns a cell grid into RawRows using grid[headerRow] as
// labels.
func RowsFromGrid(grid [][]string, headerRow int) []model.RawRow {
	if headerRow < 0 || headerRow >= len(grid) {
		return nil
	}
	labels := uniqueLabels(grid[headerRow])
	if len(labels) == 0 {
		return nil
	}

	rows := make([]model.RawRow, 0, len(grid)-headerRow-1)
	for _, cells := range grid[headerRow+1:] {
		row := make(model.RawRow, len(labels))
		for i, label := range labels {
			v := ""
			if i < len(cells) {
				v = cells[i]
			}
			row[i] = model.Column{Label: label, Value: v}
		}
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// uniqueLabels names blank headers "__EMPTY", "__EMPTY_1", ... and suffixes
// repeated headers with "_1", "_2", ... so every label is distinct.
func uniqueLabels(header []string) []string {
	// Trailing blank header cells carry no column.
	n := len(header)
	for n > 0 && strings.TrimSpace(header[n-1]) == "" {
		n--
	}

	seen := make(map[string]int, n)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		base := strings.TrimSpace(header[i])
		if base == "" {
			base = "__EMPTY"
		}
		label := base
		for {
			count, dup := seen[label]
			if !dup {
				break
			}
			seen[label] = count + 1
			label = base + "_" + strconv.Itoa(count+1)
		}
		seen[label] = 0
		out[i] = label
	}
	return out
}
