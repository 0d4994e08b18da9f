package suite

import (
	"context"
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	"github.com/abdul-hamid-achik/apicheck/packages/http"
)

// Executor sends one request. *http.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, req *http.Request) (*http.Response, error)
}

// BindingError reports a case parameter whose lookup produced no value.
type BindingError struct {
	Case   string
	Lookup string
	Err    error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("case %s: lookup %q: %v", e.Case, e.Lookup, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

// Bindings holds lookup outcomes. A lookup is in exactly one of the maps.
type Bindings struct {
	mu     sync.RWMutex
	values map[string]string
	errors map[string]error
}

func NewBindings() *Bindings {
	return &Bindings{
		values: make(map[string]string),
		errors: make(map[string]error),
	}
}

func (b *Bindings) Set(name, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = value
	delete(b.errors, name)
}

func (b *Bindings) Fail(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors[name] = err
	delete(b.values, name)
}

// Get returns the bound value or the reason it is missing.
func (b *Bindings) Get(name string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.values[name]; ok {
		return v, nil
	}
	if err, ok := b.errors[name]; ok {
		return "", err
	}
	return "", fmt.Errorf("lookup %q was not prepared", name)
}

// Values returns a copy of every successful binding.
func (b *Bindings) Values() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Prepare runs the lookups that cases reference, once each, in suite order.
// When cases is nil every lookup runs. Failures are recorded in the
// returned bindings rather than aborting: only the cases that depend on a
// failed lookup fail.
func (s *Suite) Prepare(ctx context.Context, exec Executor, cases []*Case) *Bindings {
	bindings := NewBindings()

	needed := make(map[string]bool)
	for _, c := range cases {
		for _, name := range c.Bindings() {
			needed[name] = true
		}
	}

	for _, l := range s.Lookups {
		if cases != nil && !needed[l.Name] {
			continue
		}
		value, err := s.runLookup(ctx, exec, l)
		if err != nil {
			bindings.Fail(l.Name, err)
			continue
		}
		bindings.Set(l.Name, value)
	}
	return bindings
}

func (s *Suite) runLookup(ctx context.Context, exec Executor, l *Lookup) (string, error) {
	tmpl, ok := s.Templates[l.Template]
	if !ok {
		return "", fmt.Errorf("unknown template %q", l.Template)
	}
	req, err := endpoint.Build(tmpl, l.Params, endpoint.WithQuery(l.Query))
	if err != nil {
		return "", err
	}
	resp, err := exec.Execute(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%s %s returned %d", req.Method, req.URL, resp.StatusCode)
	}
	value := resp.JSON().Get(l.Path)
	if !value.Exists() {
		return "", fmt.Errorf("path %q not found in response", l.Path)
	}
	return value.String(), nil
}

// ResolveParams replaces binding references with their looked-up values.
// The case's own map is not modified.
func (c *Case) ResolveParams(b *Bindings) (map[string]string, error) {
	params := make(map[string]string, len(c.Params))
	for k, v := range c.Params {
		name, ok := bindingName(v)
		if !ok {
			params[k] = v
			continue
		}
		if b == nil {
			return nil, &BindingError{Case: c.ID, Lookup: name, Err: fmt.Errorf("no lookups prepared")}
		}
		value, err := b.Get(name)
		if err != nil {
			return nil, &BindingError{Case: c.ID, Lookup: name, Err: err}
		}
		params[k] = value
	}
	return params, nil
}
