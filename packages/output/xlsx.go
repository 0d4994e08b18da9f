package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/xuri/excelize/v2"
)

const (
	casesSheet   = "Cases"
	summarySheet = "Summary"
	columnWidth  = 28

	failedFill  = "#FFC7CE"
	skippedFill = "#FFEB9C"
)

var xlsxHeaders = []string{
	"Suite", "Case", "Description", "Method", "URL", "Status",
	"Result", "Reason", "Response ms", "Failures", "Curl",
}

// XLSXFormatter writes one workbook with a row per case and a summary
// sheet per suite.
type XLSXFormatter struct {
	writer  io.Writer
	reports []*runner.SuiteReport
}

type XLSXOption func(*XLSXFormatter)

func NewXLSXFormatter(opts ...XLSXOption) *XLSXFormatter {
	f := &XLSXFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func XLSXWithWriter(w io.Writer) XLSXOption {
	return func(f *XLSXFormatter) {
		f.writer = w
	}
}

func (f *XLSXFormatter) FormatResult(report *runner.SuiteReport) {
	f.reports = append(f.reports, report)
}

func (f *XLSXFormatter) FormatError(err error) {}

func (f *XLSXFormatter) FormatHeader(version string) {}

// Flush builds the workbook and writes it.
func (f *XLSXFormatter) Flush(totalDuration time.Duration) error {
	book, err := f.Workbook(totalDuration)
	if err != nil {
		return err
	}
	defer book.Close()
	if err := book.Write(f.writer); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Workbook renders the accumulated reports.
func (f *XLSXFormatter) Workbook(totalDuration time.Duration) (*excelize.File, error) {
	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", casesSheet); err != nil {
		book.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if _, err := book.NewSheet(summarySheet); err != nil {
		book.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}

	failedStyle, err := fillStyle(book, failedFill)
	if err != nil {
		book.Close()
		return nil, err
	}
	skippedStyle, err := fillStyle(book, skippedFill)
	if err != nil {
		book.Close()
		return nil, err
	}

	last, _ := excelize.ColumnNumberToName(len(xlsxHeaders))
	_ = book.SetColWidth(casesSheet, "A", last, columnWidth)
	if err := writeRow(book, casesSheet, 1, toCells(xlsxHeaders)); err != nil {
		book.Close()
		return nil, err
	}

	row := 2
	for _, report := range f.reports {
		for _, c := range report.Cases {
			if err := writeRow(book, casesSheet, row, caseCells(report, c)); err != nil {
				book.Close()
				return nil, err
			}
			style := 0
			switch {
			case c.Skipped:
				style = skippedStyle
			case c.Failed():
				style = failedStyle
			}
			if style != 0 {
				from, _ := excelize.CoordinatesToCellName(1, row)
				to, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), row)
				_ = book.SetCellStyle(casesSheet, from, to, style)
			}
			row++
		}
	}

	summary := [][]any{{"Suite", "Total", "Passed", "Failed", "Skipped", "p50 ms", "p95 ms", "Duration ms"}}
	for _, r := range f.reports {
		summary = append(summary, []any{
			r.Name, r.Total, r.Passed, r.Failed, r.Skipped,
			ms(r.Latency.P50), ms(r.Latency.P95), ms(r.Duration),
		})
	}
	summary = append(summary, []any{"Total time ms", ms(totalDuration)})
	_ = book.SetColWidth(summarySheet, "A", "A", columnWidth)
	for i, cells := range summary {
		if err := writeRow(book, summarySheet, i+1, cells); err != nil {
			book.Close()
			return nil, err
		}
	}

	return book, nil
}

func caseCells(report *runner.SuiteReport, c *runner.CaseResult) []any {
	result := "passed"
	switch {
	case c.Skipped:
		result = "skipped"
	case c.Failed():
		result = "failed"
	}
	var method, url, curl string
	if c.Request != nil {
		method, url, curl = c.Request.Method, c.Request.URL, c.Request.CurlCommand()
	}
	failures := strings.Join(failureLines(c), "\n")
	if c.Skipped {
		failures = c.SkipReason
	}
	return []any{
		report.Name, c.ID, c.Description, method, url, c.StatusCode,
		result, string(c.Reason), ms(c.ResponseTime), failures, curl,
	}
}

func fillStyle(book *excelize.File, color string) (int, error) {
	style, err := book.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return 0, fmt.Errorf("creating style: %w", err)
	}
	return style, nil
}

func writeRow(book *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
