package runner

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
)

// Reason classifies why a case failed.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonAssertionFailure Reason = "ASSERTION_FAILURE"
	ReasonTransportFailure Reason = "TRANSPORT_FAILURE"
	ReasonMissingParameter Reason = "MISSING_PARAMETER"
)

// Skip reasons set by the runner itself.
const (
	SkipFiltered  = "filtered out"
	SkipCancelled = "run cancelled"
	SkipBailed    = "not run after earlier failure"
)

// CaseResult is the outcome of one case. The response body is not kept;
// status, headers and timing are.
type CaseResult struct {
	ID          string
	Description string
	Tags        []string
	Passed      bool
	Skipped     bool
	SkipReason  string
	Reason      Reason
	Error       error
	Request     *http.Request
	StatusCode  int
	Headers     map[string]string
	Validation  *schema.Result
	Assertions  []*assertions.Result
	// ResponseTime is the HTTP round trip; Duration covers the whole case.
	ResponseTime time.Duration
	Duration     time.Duration
}

// Failed reports whether the case ran and did not pass.
func (c *CaseResult) Failed() bool {
	return !c.Passed && !c.Skipped
}

// FailedChecks returns the checks that ran and failed.
func (c *CaseResult) FailedChecks() []*assertions.Result {
	var failed []*assertions.Result
	for _, a := range c.Assertions {
		if !a.Passed && !a.Skipped {
			failed = append(failed, a)
		}
	}
	return failed
}

// Message is a one-line failure summary.
func (c *CaseResult) Message() string {
	switch {
	case c.Skipped:
		return c.SkipReason
	case c.Error != nil:
		return c.Error.Error()
	}
	if failed := c.FailedChecks(); len(failed) > 0 {
		return failed[0].Description + ": " + failed[0].Message
	}
	return ""
}

// Latency summarizes response times of the cases that sent a request.
type Latency struct {
	Count int
	Min   time.Duration
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

type SuiteReport struct {
	Name      string
	Source    string
	Cases     []*CaseResult
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	StartedAt time.Time
	Duration  time.Duration
	Latency   Latency
}

// OK reports whether no case failed.
func (r *SuiteReport) OK() bool {
	return r.Failed == 0
}

// Failures returns the failed cases in suite order.
func (r *SuiteReport) Failures() []*CaseResult {
	var failed []*CaseResult
	for _, c := range r.Cases {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// ByReason counts failed cases per reason.
func (r *SuiteReport) ByReason() map[Reason]int {
	counts := make(map[Reason]int)
	for _, c := range r.Failures() {
		counts[c.Reason]++
	}
	return counts
}

// maxLatencyUs bounds the histogram at ten minutes, well above the
// default request timeout.
const maxLatencyUs = 600_000_000

func (r *SuiteReport) tally() {
	r.Total = len(r.Cases)
	r.Passed, r.Failed, r.Skipped = 0, 0, 0

	// Latencies are recorded in microseconds, 3 significant digits.
	hist := hdrhistogram.New(1, maxLatencyUs, 3)
	for _, c := range r.Cases {
		switch {
		case c.Skipped:
			r.Skipped++
		case c.Passed:
			r.Passed++
		default:
			r.Failed++
		}
		if c.ResponseTime <= 0 {
			continue
		}
		us := c.ResponseTime.Microseconds()
		if us < 1 {
			us = 1
		}
		if us > maxLatencyUs {
			us = maxLatencyUs
		}
		_ = hist.RecordValue(us)
	}

	if hist.TotalCount() == 0 {
		r.Latency = Latency{}
		return
	}
	r.Latency = Latency{
		Count: int(hist.TotalCount()),
		Min:   time.Duration(hist.Min()) * time.Microsecond,
		P50:   time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		Max:   time.Duration(hist.Max()) * time.Microsecond,
	}
}
