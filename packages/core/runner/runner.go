package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency is the default number of concurrent cases in parallel mode
	DefaultConcurrency = 5
)

// Logger receives progress lines. It matches log.Logger's Printf.
type Logger interface {
	Printf(format string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Printf(string, ...any) {}

// NullLogger discards everything.
func NullLogger() Logger {
	return nullLogger{}
}

type Runner struct {
	client  suite.Executor
	config  *Config
	limiter *rate.Limiter
	logger  Logger
}

type Config struct {
	Timeout     time.Duration
	Parallel    bool
	Concurrency int
	// Rate caps requests per second across the run, lookups included.
	// Zero means unlimited.
	Rate float64
	// FailFast stops evaluating a case's checks at the first failure.
	FailFast bool
	// Bail stops the run after the first failed case (sequential mode).
	Bail       bool
	StrictAll  bool
	NameFilter string
	TagsFilter []string
}

type Option func(*Runner)

// WithClient sets the executor used for lookups and cases.
func WithClient(client suite.Executor) Option {
	return func(r *Runner) {
		r.client = client
	}
}

func WithLogger(logger Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config: cfg,
		logger: NullLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		clientOpts := []http.ClientOption{}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		r.client = http.NewClient(clientOpts...)
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

// Execute sends one request through the rate limiter. It lets the runner
// itself serve as the executor for suite lookups.
func (r *Runner) Execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			// A cancelled run is not a timeout; Wait also fails early when
			// the deadline is too close for the next token.
			kind := http.KindTimeout
			if errors.Is(err, context.Canceled) {
				kind = http.KindConnection
			}
			return nil, &http.TransportError{Kind: kind, Method: req.Method, URL: req.URL, Err: err}
		}
	}
	return r.client.Execute(ctx, req)
}

// Run validates the suite, prepares lookups and runs every selected case.
// Case failures never abort the run; only an invalid suite returns an
// error.
func (r *Runner) Run(ctx context.Context, s *suite.Suite) (*SuiteReport, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &SuiteReport{
		Name:      s.Name,
		Source:    s.Source,
		StartedAt: start,
		Cases:     make([]*CaseResult, len(s.Cases)),
	}

	var selected []int
	for i, c := range s.Cases {
		switch {
		case !r.shouldRun(c):
			report.Cases[i] = skipped(c, SkipFiltered)
		case c.Skip != "":
			report.Cases[i] = skipped(c, c.Skip)
		default:
			selected = append(selected, i)
		}
	}

	cases := make([]*suite.Case, 0, len(selected))
	for _, i := range selected {
		cases = append(cases, s.Cases[i])
	}
	bindings := suite.NewBindings()
	if len(cases) > 0 && len(s.Lookups) > 0 {
		r.logger.Printf("preparing lookups for %s", s.Name)
		bindings = s.Prepare(ctx, r, cases)
	}

	if r.config.Parallel {
		r.runParallel(ctx, s, selected, bindings, report.Cases)
	} else {
		r.runSequential(ctx, s, selected, bindings, report.Cases)
	}

	report.Duration = time.Since(start)
	report.tally()
	return report, nil
}

func (r *Runner) runSequential(ctx context.Context, s *suite.Suite, selected []int, bindings *suite.Bindings, results []*CaseResult) {
	stopped := ""
	for _, i := range selected {
		c := s.Cases[i]
		if stopped == "" && ctx.Err() != nil {
			stopped = SkipCancelled
		}
		if stopped != "" {
			results[i] = skipped(c, stopped)
			continue
		}

		results[i] = r.runCase(ctx, s, c, bindings)
		if results[i].Failed() && r.config.Bail {
			stopped = SkipBailed
		}
	}
}

func (r *Runner) runParallel(ctx context.Context, s *suite.Suite, selected []int, bindings *suite.Bindings, results []*CaseResult) {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, i := range selected {
		wg.Add(1)
		sem <- struct{}{} // acquire semaphore

		go func(idx int, c *suite.Case) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			if ctx.Err() != nil {
				results[idx] = skipped(c, SkipCancelled)
				return
			}
			results[idx] = r.runCase(ctx, s, c, bindings)
		}(i, s.Cases[i])
	}

	wg.Wait()
}

func (r *Runner) shouldRun(c *suite.Case) bool {
	if r.config.NameFilter != "" {
		if !matchesPattern(c.ID, r.config.NameFilter) {
			return false
		}
	}

	if len(r.config.TagsFilter) > 0 {
		if !hasAnyTag(c.Tags, r.config.TagsFilter) {
			return false
		}
	}

	return true
}

// Selected returns the cases that pass the name and tag filters, in
// suite order. Disabled cases are included.
func (r *Runner) Selected(s *suite.Suite) []*suite.Case {
	return s.Filter(r.shouldRun)
}

func skipped(c *suite.Case, reason string) *CaseResult {
	return &CaseResult{
		ID:          c.ID,
		Description: c.Description,
		Tags:        c.Tags,
		Skipped:     true,
		SkipReason:  reason,
	}
}

// runCase builds, sends, validates and evaluates one case. It only ever
// writes to the result it returns.
func (r *Runner) runCase(ctx context.Context, s *suite.Suite, c *suite.Case, bindings *suite.Bindings) *CaseResult {
	result := &CaseResult{
		ID:          c.ID,
		Description: c.Description,
		Tags:        c.Tags,
	}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	fail := func(reason Reason, err error) *CaseResult {
		result.Reason = reason
		result.Error = err
		r.logger.Printf("%s: %s: %v", c.ID, reason, err)
		return result
	}

	params, err := c.ResolveParams(bindings)
	if err != nil {
		var te *http.TransportError
		if errors.As(err, &te) {
			return fail(ReasonTransportFailure, err)
		}
		return fail(ReasonMissingParameter, err)
	}

	req, err := endpoint.Build(s.Templates[c.Template], params,
		endpoint.WithMethod(c.Method),
		endpoint.WithQuery(c.Query),
		endpoint.WithHeaders(c.Headers),
		endpoint.WithBody(c.Body, c.ContentType),
		endpoint.WithTimeout(c.Timeout),
	)
	if err != nil {
		var mp *endpoint.MissingParameterError
		if errors.As(err, &mp) {
			return fail(ReasonMissingParameter, err)
		}
		return fail(ReasonTransportFailure, fmt.Errorf("building request: %w", err))
	}
	result.Request = req

	r.logger.Printf("%s: %s %s", c.ID, req.Method, req.URL)
	resp, err := r.Execute(ctx, req)
	if err != nil {
		return fail(ReasonTransportFailure, err)
	}
	result.StatusCode = resp.StatusCode
	result.Headers = resp.Headers
	result.ResponseTime = resp.Duration

	if c.Schema != "" {
		result.Validation = schema.Validate(s.Schemas[c.Schema], resp.Body,
			schema.WithPath(c.SchemaPath),
			schema.WithStrictAll(c.StrictAll || r.config.StrictAll),
		)
	}

	report := assertions.Evaluate(resp, result.Validation, c.Checks(), assertions.WithFailFast(r.config.FailFast))
	result.Assertions = report.Results
	result.Passed = report.Passed
	if !result.Passed {
		result.Reason = ReasonAssertionFailure
	}
	return result
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
