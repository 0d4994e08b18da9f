package assertions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Description string
	Passed      bool
	// Skipped is set for checks left unevaluated after a fail-fast stop.
	Skipped  bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

// Report is the ordered outcome of every check of one case.
type Report struct {
	Results []*Result
	Passed  bool
}

// Failures returns the checks that ran and failed.
func (r *Report) Failures() []*Result {
	var failed []*Result
	for _, res := range r.Results {
		if !res.Passed && !res.Skipped {
			failed = append(failed, res)
		}
	}
	return failed
}

// Expectation is one declarative check against a response.
type Expectation struct {
	Description string
	Subject     string
	Operator    string
	Expected    any
	check       func(e *Evaluator) (actual any, passed bool, message string)
}

// Describe returns the description, or a generated one.
func (x Expectation) Describe() string {
	if x.Description != "" {
		return x.Description
	}
	if x.Expected == nil {
		return x.Subject + " " + x.Operator
	}
	return fmt.Sprintf("%s %s %s", x.Subject, x.Operator, render(x.Expected))
}

// As sets a human description for reports.
func (x Expectation) As(description string) Expectation {
	x.Description = description
	return x
}

type Evaluator struct {
	response   *http.Response
	bodyJSON   gjson.Result
	validation *schema.Result
}

func NewEvaluator(resp *http.Response, validation *schema.Result) *Evaluator {
	return &Evaluator{
		response:   resp,
		bodyJSON:   resp.JSON(),
		validation: validation,
	}
}

func (e *Evaluator) Evaluate(x Expectation) *Result {
	result := &Result{
		Description: x.Describe(),
		Subject:     x.Subject,
		Operator:    x.Operator,
		Expected:    x.Expected,
	}
	if x.check == nil {
		result.Message = "expectation has no check"
		return result
	}
	result.Actual, result.Passed, result.Message = x.check(e)
	return result
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

// field resolves a body path. The empty path is the whole body.
func (e *Evaluator) field(path string) (any, bool, string) {
	path = convertBracketNotation(strings.TrimSpace(path))
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true, ""
		}
		return nil, false, "response body is not JSON"
	}
	if path == "" {
		return jsonValue(e.bodyJSON), true, ""
	}
	r := e.bodyJSON.Get(path)
	if !r.Exists() {
		return nil, false, fmt.Sprintf("field %q not found", path)
	}
	return jsonValue(r), true, ""
}

// jsonValue is r.Value() with numbers kept as json.Number.
func jsonValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		raw := strings.TrimSpace(r.Raw)
		if raw != "" && json.Valid([]byte(raw)) {
			return json.Number(raw)
		}
		return json.Number(strconv.FormatFloat(r.Num, 'g', -1, 64))
	case gjson.JSON:
		if v, err := decodeJSON([]byte(r.Raw)); err == nil {
			return v
		}
	}
	return r.Value()
}

func bodySubject(path string) string {
	if path == "" {
		return "body"
	}
	return "body." + path
}

// StatusEquals checks the response status code.
func StatusEquals(code int) Expectation {
	return Expectation{
		Subject:  "status",
		Operator: "equals",
		Expected: code,
		check: func(e *Evaluator) (any, bool, string) {
			actual := e.response.StatusCode
			if actual == code {
				return actual, true, ""
			}
			return actual, false, fmt.Sprintf("expected status %d, got %d", code, actual)
		},
	}
}

// FieldEquals checks a body field for exact equality.
func FieldEquals(path string, value any) Expectation {
	return FieldMatches(path, Equals(value))
}

// FieldMatches applies a predicate to a body field.
func FieldMatches(path string, p Predicate) Expectation {
	return Expectation{
		Subject:  bodySubject(path),
		Operator: p.Name,
		Expected: p.Expected,
		check: func(e *Evaluator) (any, bool, string) {
			actual, ok, msg := e.field(path)
			if !ok {
				return nil, false, msg
			}
			passed, msg := p.Test(actual)
			return actual, passed, msg
		},
	}
}

// CollectionLengthEquals checks the size of an array or object field.
func CollectionLengthEquals(path string, n int) Expectation {
	return Expectation{
		Subject:  bodySubject(path),
		Operator: "length",
		Expected: n,
		check: func(e *Evaluator) (any, bool, string) {
			actual, ok, msg := e.field(path)
			if !ok {
				return nil, false, msg
			}
			var size int
			switch v := actual.(type) {
			case []any:
				size = len(v)
			case map[string]any:
				size = len(v)
			default:
				return actual, false, fmt.Sprintf("expected a collection, got %s", typeName(actual))
			}
			if size == n {
				return size, true, ""
			}
			return size, false, fmt.Sprintf("expected length %d, got %d", n, size)
		},
	}
}

// SchemaValid passes when the case's record schema validation succeeded.
func SchemaValid() Expectation {
	return Expectation{
		Subject:  "schema",
		Operator: "valid",
		check: func(e *Evaluator) (any, bool, string) {
			if e.validation == nil {
				return nil, false, "no schema validation was performed"
			}
			if e.validation.Valid {
				return "valid", true, ""
			}
			return e.validation.Summary(), false, fmt.Sprintf("schema %s: %s", e.validation.Schema, e.validation.Summary())
		},
	}
}

// HeaderMatches applies a predicate to a response header value.
func HeaderMatches(name string, p Predicate) Expectation {
	return Expectation{
		Subject:  "header " + name,
		Operator: p.Name,
		Expected: p.Expected,
		check: func(e *Evaluator) (any, bool, string) {
			value := e.response.Header(name)
			if value == "" {
				return nil, false, fmt.Sprintf("header %q not present", name)
			}
			passed, msg := p.Test(value)
			return value, passed, msg
		},
	}
}

// MatchesJSONSchema validates a body field against a JSON Schema document.
func MatchesJSONSchema(path string, document []byte) Expectation {
	loader := gojsonschema.NewBytesLoader(document)
	return Expectation{
		Subject:  bodySubject(path),
		Operator: "json_schema",
		check: func(e *Evaluator) (any, bool, string) {
			actual, ok, msg := e.field(path)
			if !ok {
				return nil, false, msg
			}
			actualJSON, err := json.Marshal(actual)
			if err != nil {
				return actual, false, fmt.Sprintf("failed to marshal actual value: %v", err)
			}
			result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(actualJSON))
			if err != nil {
				return actual, false, fmt.Sprintf("schema validation error: %v", err)
			}
			if result.Valid() {
				return actual, true, ""
			}
			var errs []string
			for _, desc := range result.Errors() {
				errs = append(errs, desc.String())
			}
			return actual, false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
		},
	}
}

type options struct {
	failFast bool
}

type Option func(*options)

// WithFailFast stops at the first failing check; the rest are reported
// as skipped.
func WithFailFast(failFast bool) Option {
	return func(o *options) {
		o.failFast = failFast
	}
}

// Evaluate runs every expectation against the response. Without fail-fast
// all checks run, so a report lists every failure of the case.
func Evaluate(resp *http.Response, validation *schema.Result, expectations []Expectation, opts ...Option) *Report {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	evaluator := NewEvaluator(resp, validation)
	report := &Report{Results: make([]*Result, 0, len(expectations)), Passed: true}
	stopped := false
	for _, x := range expectations {
		if stopped {
			report.Results = append(report.Results, &Result{
				Description: x.Describe(),
				Subject:     x.Subject,
				Operator:    x.Operator,
				Expected:    x.Expected,
				Skipped:     true,
				Message:     "not evaluated after earlier failure",
			})
			continue
		}
		res := evaluator.Evaluate(x)
		report.Results = append(report.Results, res)
		if !res.Passed {
			report.Passed = false
			stopped = o.failFast
		}
	}
	return report
}
