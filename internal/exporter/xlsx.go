// Package exporter writes operation results to files callers can download
// or feed into spreadsheets.
package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fintools/internal/provider"
)

// historyHeader is the column layout of an exported price history sheet.
var historyHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// XLSX writes workbooks into a configured directory.
type XLSX struct {
	dir string
	now func() time.Time
}

// NewXLSX creates an exporter rooted at dir. The directory is created on
// first use.
func NewXLSX(dir string) *XLSX {
	return &XLSX{dir: dir, now: time.Now}
}

// WriteHistory writes one price history to an .xlsx workbook and returns the
// file path and the number of data rows written.
func (x *XLSX) WriteHistory(history *provider.History) (string, int, error) {
	if history == nil || len(history.Bars) == 0 {
		return "", 0, fmt.Errorf("exporter: no bars to export")
	}

	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return "", 0, fmt.Errorf("exporter: create directory %s: %w", x.dir, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(history.Symbol)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", 0, fmt.Errorf("exporter: rename sheet: %w", err)
	}

	for col, title := range historyHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", 0, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return "", 0, fmt.Errorf("exporter: write header: %w", err)
		}
	}

	for row, bar := range history.Bars {
		values := []any{bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return "", 0, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return "", 0, fmt.Errorf("exporter: write row %d: %w", row+1, err)
			}
		}
	}

	path := filepath.Join(x.dir, x.fileName(history))
	if err := f.SaveAs(path); err != nil {
		return "", 0, fmt.Errorf("exporter: save %s: %w", path, err)
	}

	return path, len(history.Bars), nil
}

// fileName builds a collision-resistant workbook name like
// AAPL_1mo_1d_20250602T143000.xlsx.
func (x *XLSX) fileName(history *provider.History) string {
	stamp := x.now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s_%s_%s_%s.xlsx",
		sanitize(history.Symbol), sanitize(history.Range), sanitize(history.Interval), stamp)
}

// sheetName keeps sheet names within excelize's 31-character limit.
func sheetName(symbol string) string {
	name := sanitize(symbol)
	if name == "" {
		name = "History"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// sanitize strips path and sheet-name hostile characters.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
}
