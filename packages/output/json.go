package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Suites   []JSONSuite `json:"suites"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int            `json:"total"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

type JSONSuite struct {
	Name     string       `json:"name"`
	Source   string       `json:"source,omitempty"`
	Summary  JSONSummary  `json:"summary"`
	Latency  *JSONLatency `json:"latency,omitempty"`
	Duration float64      `json:"duration"`
	Cases    []JSONCase   `json:"cases"`
}

// JSONLatency holds response time percentiles in milliseconds.
type JSONLatency struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Max   float64 `json:"max"`
}

type JSONCase struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Passed      bool          `json:"passed"`
	Skipped     bool          `json:"skipped,omitempty"`
	SkipReason  string        `json:"skipReason,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    float64       `json:"duration"`
	Request     *JSONRequest  `json:"request,omitempty"`
	Response    *JSONResponse `json:"response,omitempty"`
	Schema      *JSONSchema   `json:"schema,omitempty"`
	Checks      []JSONCheck   `json:"checks,omitempty"`
}

type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Curl    string            `json:"curl"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

type JSONSchema struct {
	Name   string   `json:"name"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type JSONCheck struct {
	Description string `json:"description"`
	Subject     string `json:"subject"`
	Operator    string `json:"operator"`
	Expected    any    `json:"expected"`
	Actual      any    `json:"actual"`
	Passed      bool   `json:"passed"`
	Skipped     bool   `json:"skipped,omitempty"`
	Message     string `json:"message,omitempty"`
}

// JSONFormatter formats suite reports as one JSON document.
type JSONFormatter struct {
	writer io.Writer
	suites []JSONSuite
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		suites: make([]JSONSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(report *runner.SuiteReport) {
	s := JSONSuite{
		Name:     report.Name,
		Source:   report.Source,
		Summary:  summarize(report),
		Duration: ms(report.Duration),
		Cases:    make([]JSONCase, 0, len(report.Cases)),
	}
	if l := report.Latency; l.Count > 0 {
		s.Latency = &JSONLatency{Count: l.Count, Min: ms(l.Min), P50: ms(l.P50), P95: ms(l.P95), Max: ms(l.Max)}
	}

	for _, c := range report.Cases {
		jc := JSONCase{
			ID:          c.ID,
			Description: c.Description,
			Tags:        c.Tags,
			Passed:      c.Passed,
			Skipped:     c.Skipped,
			SkipReason:  c.SkipReason,
			Reason:      string(c.Reason),
			Duration:    ms(c.Duration),
		}
		if c.Error != nil {
			jc.Error = c.Error.Error()
		}
		if c.Request != nil {
			jc.Request = &JSONRequest{
				Method:  c.Request.Method,
				URL:     c.Request.URL,
				Headers: c.Request.Headers,
				Curl:    c.Request.CurlCommand(),
			}
		}
		if c.StatusCode != 0 {
			jc.Response = &JSONResponse{
				StatusCode: c.StatusCode,
				Headers:    c.Headers,
				Duration:   ms(c.ResponseTime),
			}
		}
		if v := c.Validation; v != nil {
			jc.Schema = &JSONSchema{Name: v.Schema, Valid: v.Valid}
			for _, e := range v.Errors {
				jc.Schema.Errors = append(jc.Schema.Errors, e.Error())
			}
		}
		for _, a := range c.Assertions {
			jc.Checks = append(jc.Checks, JSONCheck{
				Description: a.Description,
				Subject:     a.Subject,
				Operator:    a.Operator,
				Expected:    a.Expected,
				Actual:      a.Actual,
				Passed:      a.Passed,
				Skipped:     a.Skipped,
				Message:     a.Message,
			})
		}
		s.Cases = append(s.Cases, jc)
	}

	f.suites = append(f.suites, s)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual case results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var total JSONSummary
	for _, s := range f.suites {
		total.Total += s.Summary.Total
		total.Passed += s.Summary.Passed
		total.Failed += s.Summary.Failed
		total.Skipped += s.Summary.Skipped
		for reason, n := range s.Summary.Reasons {
			if total.Reasons == nil {
				total.Reasons = make(map[string]int)
			}
			total.Reasons[reason] += n
		}
	}

	output := JSONOutput{
		Summary:  total,
		Suites:   f.suites,
		Duration: ms(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func summarize(report *runner.SuiteReport) JSONSummary {
	s := JSONSummary{
		Total:   report.Total,
		Passed:  report.Passed,
		Failed:  report.Failed,
		Skipped: report.Skipped,
	}
	for reason, n := range report.ByReason() {
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		s.Reasons[string(reason)] = n
	}
	return s
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
