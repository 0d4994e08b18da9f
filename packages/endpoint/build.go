package endpoint

import (
	"fmt"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/http"
)

// MissingParameterError reports a placeholder with no value and no default.
type MissingParameterError struct {
	Template  string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("endpoint %q: missing parameter %q", e.Template, e.Parameter)
}

type buildOptions struct {
	method      string
	query       map[string]string
	headers     map[string]string
	body        []byte
	contentType string
	timeout     time.Duration
}

type BuildOption func(*buildOptions)

// WithMethod overrides the template method.
func WithMethod(method string) BuildOption {
	return func(o *buildOptions) {
		o.method = method
	}
}

// WithQuery adds query parameters; they win over template defaults.
func WithQuery(query map[string]string) BuildOption {
	return func(o *buildOptions) {
		if o.query == nil {
			o.query = make(map[string]string, len(query))
		}
		for k, v := range query {
			o.query[k] = v
		}
	}
}

// WithHeaders adds headers; they win over template defaults.
func WithHeaders(headers map[string]string) BuildOption {
	return func(o *buildOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithBody attaches a pre-serialized body. The builder never encodes
// bodies itself.
func WithBody(body []byte, contentType string) BuildOption {
	return func(o *buildOptions) {
		o.body = body
		o.contentType = contentType
	}
}

func WithTimeout(d time.Duration) BuildOption {
	return func(o *buildOptions) {
		o.timeout = d
	}
}

// Build turns a template plus parameter values into a request descriptor.
// It is deterministic: the same inputs always produce the same request.
func Build(t *Template, params map[string]string, opts ...BuildOption) (*http.Request, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}

	lookup := func(name string) (string, error) {
		if v, ok := params[name]; ok {
			return v, nil
		}
		if v, ok := t.Defaults[name]; ok {
			return v, nil
		}
		return "", &MissingParameterError{Template: t.Name, Parameter: name}
	}

	rawPath, rawQuery, _ := strings.Cut(t.URL, "?")
	path, err := t.expandURL(rawPath, lookup, url.PathEscape)
	if err != nil {
		return nil, err
	}
	literalQuery, err := t.expandURL(rawQuery, lookup, url.QueryEscape)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: invalid url: %w", t.Name, err)
	}

	query, err := url.ParseQuery(literalQuery)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: invalid query: %w", t.Name, err)
	}
	for _, k := range sortedKeys(t.Query) {
		v, err := expand(t.Query[k], lookup, nil)
		if err != nil {
			return nil, err
		}
		query.Set(k, v)
	}
	for k, v := range o.query {
		query.Set(k, v)
	}
	u.RawQuery = query.Encode()

	headers := make(map[string]string, len(t.Headers)+len(o.headers)+1)
	for k, v := range t.Headers {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	if o.contentType != "" {
		headers["Content-Type"] = o.contentType
	}
	for k, v := range o.headers {
		headers[textproto.CanonicalMIMEHeaderKey(k)] = v
	}

	method := t.Method
	if o.method != "" {
		method = o.method
	}

	timeout := t.Timeout
	if o.timeout > 0 {
		timeout = o.timeout
	}

	req := http.NewRequest(strings.ToUpper(method), u.String())
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	if o.body != nil {
		req.SetBody(o.body)
	}
	req.SetTimeout(timeout)
	return req, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
