// Package sheet summarizes xlsx workbooks so the UI can show what was
// uploaded or generated without shipping the whole file to the browser.
package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"invoice-console/internal/util"
)

// previewRows caps how much of the first sheet is echoed back to the UI.
const previewRows = 10

// Info is a compact summary of a workbook.
type Info struct {
	Sheets         []string   `json:"sheets"`
	ActiveSheet    string     `json:"active_sheet"`
	Rows           int        `json:"rows"`
	Columns        int        `json:"columns"`
	Headers        []string   `json:"headers,omitempty"`
	NumericColumns []int      `json:"numeric_columns,omitempty"`
	Preview        [][]string `json:"preview,omitempty"`
}

// Inspect reads a workbook and summarizes its first sheet.
func Inspect(r io.Reader) (*Info, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	info := &Info{Sheets: f.GetSheetList()}
	if len(info.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	info.ActiveSheet = f.GetSheetName(0)

	rows, err := f.GetRows(info.ActiveSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", info.ActiveSheet, err)
	}

	info.Rows = len(rows)
	for _, row := range rows {
		if len(row) > info.Columns {
			info.Columns = len(row)
		}
	}

	if len(rows) == 0 {
		return info, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}
	info.Headers = headers
	info.NumericColumns = detectNumericColumns(rows[1:], info.Columns)

	n := len(rows)
	if n > previewRows {
		n = previewRows
	}
	info.Preview = rows[:n]

	return info, nil
}

// detectNumericColumns reports columns where at least 80% of the non-empty
// cells parse as numbers.
func detectNumericColumns(rows [][]string, columns int) []int {
	var numeric []int
	for col := 0; col < columns; col++ {
		if isColumnNumeric(rows, col) {
			numeric = append(numeric, col)
		}
	}
	return numeric
}

func isColumnNumeric(rows [][]string, col int) bool {
	numericCount := 0
	totalCount := 0
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[col])
		if val == "" {
			continue
		}
		totalCount++
		if _, ok := util.ToFloat64(val); ok {
			numericCount++
		}
	}
	if totalCount == 0 {
		return false
	}
	return float64(numericCount)/float64(totalCount) >= 0.8
}
