package suite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
)

// ErrInvalidSuite wraps every misconfiguration found by Validate.
var ErrInvalidSuite = errors.New("invalid suite")

// BindingPrefix marks a parameter value filled from a lookup, as in
// {"id": "@random_brewery"}.
const BindingPrefix = "@"

// DefaultContentType is attached to structured bodies.
const DefaultContentType = "application/json; charset=UTF-8"

// Case is one parametrized test case. Cases hold literal values only and
// are never mutated by the runner.
type Case struct {
	ID          string
	Description string
	Template    string
	Params      map[string]string
	Query       map[string]string
	Headers     map[string]string
	Method      string
	Body        []byte
	ContentType string
	Timeout     time.Duration

	ExpectStatus int
	Schema       string
	SchemaPath   string
	StrictAll    bool
	Expect       []assertions.Expectation
	Tags         []string
	// Skip, when set, is reported instead of running the case.
	Skip string
}

// Checks lists the case's expectations in evaluation order: status,
// schema validity, then the declared checks.
func (c *Case) Checks() []assertions.Expectation {
	checks := make([]assertions.Expectation, 0, len(c.Expect)+2)
	checks = append(checks, assertions.StatusEquals(c.ExpectStatus))
	if c.Schema != "" {
		checks = append(checks, assertions.SchemaValid())
	}
	return append(checks, c.Expect...)
}

// Bindings returns the lookup names the case's parameters refer to.
func (c *Case) Bindings() []string {
	var names []string
	for _, k := range sortedKeys(c.Params) {
		if name, ok := bindingName(c.Params[k]); ok {
			names = append(names, name)
		}
	}
	return names
}

func bindingName(v string) (string, bool) {
	if !strings.HasPrefix(v, BindingPrefix) || len(v) == len(BindingPrefix) {
		return "", false
	}
	return v[len(BindingPrefix):], true
}

// Lookup is a pre-flight request whose result feeds case parameters, such
// as fetching an id that is known to exist.
type Lookup struct {
	Name     string
	Template string
	Params   map[string]string
	Query    map[string]string
	// Path is a gjson path into the response body.
	Path string
}

type Suite struct {
	Name      string
	Source    string
	Templates map[string]*endpoint.Template
	Schemas   map[string]*schema.Schema
	Lookups   []*Lookup
	Cases     []*Case
}

func New(name string) *Suite {
	return &Suite{
		Name:      name,
		Templates: make(map[string]*endpoint.Template),
		Schemas:   make(map[string]*schema.Schema),
	}
}

func (s *Suite) AddTemplate(t *endpoint.Template) *Suite {
	s.Templates[t.Name] = t
	return s
}

func (s *Suite) AddSchema(sc *schema.Schema) *Suite {
	s.Schemas[sc.Name] = sc
	return s
}

func (s *Suite) AddLookup(l *Lookup) *Suite {
	s.Lookups = append(s.Lookups, l)
	return s
}

func (s *Suite) AddCase(cases ...*Case) *Suite {
	s.Cases = append(s.Cases, cases...)
	return s
}

func (s *Suite) Lookup(name string) (*Lookup, bool) {
	for _, l := range s.Lookups {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}

// Validate reports every misconfiguration at once. A suite that fails
// validation must not run.
func (s *Suite) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.Name == "" {
		fail("suite has no name")
	}

	for _, name := range sortedKeys(s.Templates) {
		t := s.Templates[name]
		if t.Name != name {
			fail("template registered as %q is named %q", name, t.Name)
		}
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, name := range sortedKeys(s.Schemas) {
		if err := s.Schemas[name].Check(); err != nil {
			errs = append(errs, err)
		}
	}

	lookups := make(map[string]bool, len(s.Lookups))
	for _, l := range s.Lookups {
		if l.Name == "" {
			fail("lookup has no name")
			continue
		}
		if lookups[l.Name] {
			fail("duplicate lookup %q", l.Name)
		}
		lookups[l.Name] = true
		if _, ok := s.Templates[l.Template]; !ok {
			fail("lookup %q: unknown template %q", l.Name, l.Template)
		}
		if l.Path == "" {
			fail("lookup %q: path is required", l.Name)
		}
	}

	ids := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		label := c.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			fail("case %s has no id", label)
		} else if ids[c.ID] {
			fail("duplicate case id %q", c.ID)
		}
		ids[c.ID] = true

		if _, ok := s.Templates[c.Template]; !ok {
			fail("case %s: unknown template %q", label, c.Template)
		}
		if c.ExpectStatus < 100 || c.ExpectStatus > 599 {
			fail("case %s: expected status %d is not a valid HTTP status", label, c.ExpectStatus)
		}
		if c.Schema != "" {
			if _, ok := s.Schemas[c.Schema]; !ok {
				fail("case %s: unknown schema %q", label, c.Schema)
			}
		}
		for _, name := range c.Bindings() {
			if !lookups[name] {
				fail("case %s: unknown lookup %q", label, name)
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q:\n%w", ErrInvalidSuite, s.Name, errors.Join(errs...))
}

// Filter returns the cases accepted by keep, in suite order.
func (s *Suite) Filter(keep func(*Case) bool) []*Case {
	var out []*Case
	for _, c := range s.Cases {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
