package output

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// Formatter renders suite reports.
type Formatter interface {
	FormatResult(report *runner.SuiteReport)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that accumulate reports and
// write them once at the end.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap", "xlsx"}

// New returns the formatter registered under name, writing to w.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	case "xlsx", "excel":
		return NewXLSXFormatter(XLSXWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (expected one of %s)", name, strings.Join(Formats, ", "))
}

// checkLine renders one failed check as "description: expected X, got Y".
func checkLine(description string, expected, actual any) string {
	return fmt.Sprintf("%s: expected %s, got %s", description, formatValue(expected, 200), formatValue(actual, 200))
}

// failureLines lists everything that made a case fail, one line each.
func failureLines(c *runner.CaseResult) []string {
	if c.Error != nil {
		return []string{c.Error.Error()}
	}
	var lines []string
	for _, a := range c.FailedChecks() {
		if a.Message != "" {
			lines = append(lines, a.Description+": "+a.Message)
			continue
		}
		lines = append(lines, checkLine(a.Description, a.Expected, a.Actual))
	}
	return lines
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case string:
		v = fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) <= maxLen {
		return str
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}
	return str[:cut] + "..."
}
