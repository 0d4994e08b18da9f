package output

import (
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(report *runner.SuiteReport) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := report.Name
	if report.Source != "" {
		title += " (" + report.Source + ")"
	}
	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+title))

	for _, c := range report.Cases {
		if c.Skipped {
			if c.SkipReason == runner.SkipFiltered && !f.verbose {
				continue
			}
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), c.ID)
			if c.SkipReason != "" {
				fmt.Fprintf(f.writer, " (%s)", c.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if c.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), c.ID, red(fmt.Sprintf("[%s] %v", c.Reason, c.Error)))
			f.writeRequest(c)
			continue
		}

		symbol := green("✓")
		if !c.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, c.ID, cyan(fmt.Sprintf("(%dms)", c.ResponseTime.Milliseconds())))

		if f.verbose && c.Description != "" {
			fmt.Fprintf(f.writer, "    %s\n", c.Description)
		}
		if f.verbose {
			fmt.Fprintf(f.writer, "    Status: %d\n", c.StatusCode)
		}

		if c.Passed {
			continue
		}
		for _, a := range c.FailedChecks() {
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), a.Description)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Message)
			}
		}
		f.writeRequest(c)
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if report.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", report.Passed)))
	}
	if report.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", report.Failed)))
	}
	if report.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", report.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", report.Total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", report.Duration.Milliseconds())
	if l := report.Latency; l.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: min %dms, p50 %dms, p95 %dms, max %dms\n",
			l.Min.Milliseconds(), l.P50.Milliseconds(), l.P95.Milliseconds(), l.Max.Milliseconds())
	}
	if f.verbose && report.Failed > 0 {
		for reason, n := range report.ByReason() {
			fmt.Fprintf(f.writer, "  %s: %d\n", reason, n)
		}
	}
	fmt.Fprintf(f.writer, "\n")
}

// writeRequest prints a curl reproduction of a failed case in verbose mode.
func (f *ConsoleFormatter) writeRequest(c *runner.CaseResult) {
	if !f.verbose || c.Request == nil {
		return
	}
	fmt.Fprintf(f.writer, "    Reproduce:\n      %s\n", c.Request.CurlCommand())
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("apicheck"), version)
}
