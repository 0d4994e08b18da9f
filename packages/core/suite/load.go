package suite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/env"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"gopkg.in/yaml.v3"
)

// Suite files are YAML:
//
//	name: posts
//	variables:
//	  baseUrl: https://jsonplaceholder.typicode.com
//	templates:
//	  post: {method: GET, url: "{{baseUrl}}/posts/{id}"}
//	cases:
//	  - id: get_post
//	    template: post
//	    parametrize: [{id: 1}, {id: 20}]
//	    status: 200
//	    expect:
//	      - {field: id, equals: "{id}"}
type fileSuite struct {
	Name      string                  `yaml:"name"`
	Variables map[string]any          `yaml:"variables"`
	Templates map[string]fileTemplate `yaml:"templates"`
	Schemas   map[string]fileSchema   `yaml:"schemas"`
	Lookups   map[string]fileLookup   `yaml:"lookups"`
	Cases     []fileCase              `yaml:"cases"`
}

type fileTemplate struct {
	Method   string         `yaml:"method"`
	URL      string         `yaml:"url"`
	Literal  bool           `yaml:"literal"`
	Query    map[string]any `yaml:"query"`
	Headers  map[string]any `yaml:"headers"`
	Defaults map[string]any `yaml:"defaults"`
	Timeout  string         `yaml:"timeout"`
}

type fileSchema struct {
	Strict bool        `yaml:"strict"`
	Fields []fileField `yaml:"fields"`
}

type fileField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
	Nullable bool   `yaml:"nullable"`
	Default  any    `yaml:"default"`
}

type fileLookup struct {
	Template string         `yaml:"template"`
	Params   map[string]any `yaml:"params"`
	Query    map[string]any `yaml:"query"`
	Path     string         `yaml:"path"`
}

type fileCase struct {
	ID          string           `yaml:"id"`
	Description string           `yaml:"description"`
	Template    string           `yaml:"template"`
	Method      string           `yaml:"method"`
	Params      map[string]any   `yaml:"params"`
	Parametrize []map[string]any `yaml:"parametrize"`
	Query       map[string]any   `yaml:"query"`
	Headers     map[string]any   `yaml:"headers"`
	Body        any              `yaml:"body"`
	ContentType string           `yaml:"content_type"`
	Timeout     string           `yaml:"timeout"`
	Status      any              `yaml:"status"`
	Schema      string           `yaml:"schema"`
	SchemaPath  string           `yaml:"schema_path"`
	StrictAll   bool             `yaml:"strict_all"`
	Expect      []fileCheck      `yaml:"expect"`
	Tags        []string         `yaml:"tags"`
	Skip        string           `yaml:"skip"`
}

// fileCheck is one entry of a case's expect list. A nil Field with no
// Header and no JSONSchema is an error; an empty Field is the whole body.
type fileCheck struct {
	Description string     `yaml:"description"`
	Field       *string    `yaml:"field"`
	Header      string     `yaml:"header"`
	JSONSchema  string     `yaml:"json_schema"`
	Equals      any        `yaml:"equals"`
	Contains    any        `yaml:"contains"`
	Prefix      any        `yaml:"prefix"`
	Matches     any        `yaml:"matches"`
	Length      any        `yaml:"length"`
	Range       []any      `yaml:"range"`
	OneOf       []any      `yaml:"one_of"`
	Type        string     `yaml:"type"`
	NotEmpty    bool       `yaml:"not_empty"`
	Each        *fileCheck `yaml:"each"`
}

type loadOptions struct {
	variables map[string]any
	warn      env.WarnFunc
}

type LoadOption func(*loadOptions)

// WithVariables supplies variables that take precedence over the suite's
// own variables block.
func WithVariables(vars map[string]any) LoadOption {
	return func(o *loadOptions) {
		o.variables = vars
	}
}

// WithWarnFunc receives warnings such as unresolved variables.
func WithWarnFunc(fn env.WarnFunc) LoadOption {
	return func(o *loadOptions) {
		o.warn = fn
	}
}

// LoadFile reads a suite file. A suite without a name takes the file's
// base name.
func LoadFile(path string, opts ...LoadOption) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}
	s, err := Parse(data, filepath.Dir(path), opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	s.Source = path
	return s, nil
}

// Parse decodes a suite document. {{...}} expressions in string values
// are resolved before decoding; relative json_schema paths are read from
// baseDir.
func Parse(data []byte, baseDir string, opts ...LoadOption) (*Suite, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("parsing suite: empty document")
	}

	var head struct {
		Variables map[string]any `yaml:"variables"`
	}
	if err := root.Decode(&head); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}

	resolver := env.NewResolver()
	resolver.SetWarnFunc(o.warn)
	resolver.SetVariables(o.variables)
	for _, name := range sortedKeys(head.Variables) {
		if _, ok := o.variables[name]; ok {
			continue
		}
		resolver.SetVariable(name, resolver.ResolveValue(head.Variables[name]))
	}
	resolveNode(&root, resolver)

	var f fileSuite
	if err := root.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}
	return f.build(baseDir)
}

func resolveNode(n *yaml.Node, r *env.Resolver) {
	if n.Kind == yaml.ScalarNode {
		if n.ShortTag() == "!!str" && strings.Contains(n.Value, "{{") {
			n.Value = r.Resolve(n.Value)
		}
		return
	}
	for _, child := range n.Content {
		resolveNode(child, r)
	}
}

func (f *fileSuite) build(baseDir string) (*Suite, error) {
	s := New(f.Name)
	var errs []error

	for _, name := range sortedKeys(f.Templates) {
		t, err := f.Templates[name].template(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.AddTemplate(t)
	}

	for _, name := range sortedKeys(f.Schemas) {
		sc, err := f.Schemas[name].schema(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.AddSchema(sc)
	}

	for _, name := range sortedKeys(f.Lookups) {
		l := f.Lookups[name]
		s.AddLookup(&Lookup{
			Name:     name,
			Template: l.Template,
			Params:   stringMap(l.Params),
			Query:    stringMap(l.Query),
			Path:     l.Path,
		})
	}

	docs := make(map[string][]byte)
	for i, fc := range f.Cases {
		cases, err := fc.cases(baseDir, docs)
		if err != nil {
			label := fc.ID
			if label == "" {
				label = fmt.Sprintf("#%d", i+1)
			}
			errs = append(errs, fmt.Errorf("case %s: %w", label, err))
			continue
		}
		s.AddCase(cases...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (ft fileTemplate) template(name string) (*endpoint.Template, error) {
	timeout, err := parseTimeout(ft.Timeout)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return &endpoint.Template{
		Name:     name,
		Method:   ft.Method,
		URL:      ft.URL,
		Literal:  ft.Literal,
		Query:    stringMap(ft.Query),
		Headers:  stringMap(ft.Headers),
		Defaults: stringMap(ft.Defaults),
		Timeout:  timeout,
	}, nil
}

func (fs fileSchema) schema(name string) (*schema.Schema, error) {
	sc := schema.New(name)
	sc.Strict = fs.Strict
	for _, ff := range fs.Fields {
		t, err := schema.ParseFieldType(ff.Type)
		if err != nil {
			return nil, fmt.Errorf("schema %q: field %q: %w", name, ff.Name, err)
		}
		sc.Fields = append(sc.Fields, schema.Field{
			Name:     ff.Name,
			Type:     t,
			Required: ff.Required,
			Nullable: ff.Nullable,
			Default:  ff.Default,
		})
	}
	return sc, nil
}

// cases expands a case entry into one case per parametrize set.
func (fc fileCase) cases(baseDir string, docs map[string][]byte) ([]*Case, error) {
	if len(fc.Parametrize) == 0 {
		c, err := fc.instance(fc.ID, fc.Params, baseDir, docs)
		if err != nil {
			return nil, err
		}
		return []*Case{c}, nil
	}

	out := make([]*Case, 0, len(fc.Parametrize))
	for i, set := range fc.Parametrize {
		if len(set) == 0 {
			return nil, fmt.Errorf("parametrize set %d is empty", i+1)
		}
		vars := make(map[string]any, len(fc.Params)+len(set))
		for k, v := range fc.Params {
			vars[k] = v
		}
		labels := make([]string, 0, len(set))
		for _, k := range sortedKeys(set) {
			vars[k] = set[k]
			labels = append(labels, stringify(set[k]))
		}
		id := fmt.Sprintf("%s[%s]", fc.ID, strings.Join(labels, "-"))
		c, err := fc.instance(id, vars, baseDir, docs)
		if err != nil {
			return nil, fmt.Errorf("parametrize set %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (fc fileCase) instance(id string, vars map[string]any, baseDir string, docs map[string][]byte) (*Case, error) {
	timeout, err := parseTimeout(fc.Timeout)
	if err != nil {
		return nil, err
	}
	status, err := toInt(bind(fc.Status, vars))
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	c := &Case{
		ID:           id,
		Description:  substitute(fc.Description, vars),
		Template:     fc.Template,
		Method:       fc.Method,
		Params:       stringMap(vars),
		Query:        stringMap(bindMap(fc.Query, vars)),
		Headers:      stringMap(bindMap(fc.Headers, vars)),
		ContentType:  fc.ContentType,
		Timeout:      timeout,
		ExpectStatus: status,
		Schema:       fc.Schema,
		SchemaPath:   fc.SchemaPath,
		StrictAll:    fc.StrictAll,
		Tags:         fc.Tags,
		Skip:         fc.Skip,
	}

	switch body := bind(fc.Body, vars).(type) {
	case nil:
	case string:
		c.Body = []byte(body)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
		c.Body = data
	}
	if c.Body != nil && c.ContentType == "" {
		c.ContentType = DefaultContentType
	}

	for i, check := range fc.Expect {
		x, err := check.expectation(vars, baseDir, docs)
		if err != nil {
			return nil, fmt.Errorf("expect[%d]: %w", i, err)
		}
		c.Expect = append(c.Expect, x)
	}
	return c, nil
}

func (fc *fileCheck) expectation(vars map[string]any, baseDir string, docs map[string][]byte) (assertions.Expectation, error) {
	var x assertions.Expectation

	if fc.Field != nil && fc.Header != "" {
		return x, fmt.Errorf("check names both a field and a header")
	}

	if fc.JSONSchema != "" {
		if fc.Header != "" || fc.predicateCount() > 0 {
			return x, fmt.Errorf("json_schema cannot be combined with other checks")
		}
		doc, err := readDocument(filepath.Join(baseDir, fc.JSONSchema), docs)
		if err != nil {
			return x, err
		}
		path := ""
		if fc.Field != nil {
			path = substitute(*fc.Field, vars)
		}
		x = assertions.MatchesJSONSchema(path, doc)
		return fc.describe(x, vars), nil
	}

	switch {
	case fc.Header != "":
		if fc.Length != nil {
			return x, fmt.Errorf("length does not apply to headers")
		}
		p, err := fc.predicate(vars)
		if err != nil {
			return x, err
		}
		x = assertions.HeaderMatches(substitute(fc.Header, vars), p)
	case fc.Field != nil:
		path := substitute(*fc.Field, vars)
		if fc.Length != nil {
			if fc.predicateCount() > 1 {
				return x, fmt.Errorf("check has more than one predicate")
			}
			n, err := toInt(bind(fc.Length, vars))
			if err != nil {
				return x, fmt.Errorf("length: %w", err)
			}
			x = assertions.CollectionLengthEquals(path, n)
			break
		}
		p, err := fc.predicate(vars)
		if err != nil {
			return x, err
		}
		x = assertions.FieldMatches(path, p)
	default:
		return x, fmt.Errorf("check needs a field or a header")
	}
	return fc.describe(x, vars), nil
}

func (fc *fileCheck) describe(x assertions.Expectation, vars map[string]any) assertions.Expectation {
	if fc.Description == "" {
		return x
	}
	return x.As(substitute(fc.Description, vars))
}

func (fc *fileCheck) predicateCount() int {
	n := 0
	for _, set := range []bool{
		fc.Equals != nil, fc.Contains != nil, fc.Prefix != nil, fc.Matches != nil,
		fc.Length != nil, fc.Range != nil, fc.OneOf != nil, fc.Type != "",
		fc.NotEmpty, fc.Each != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (fc *fileCheck) predicate(vars map[string]any) (assertions.Predicate, error) {
	switch n := fc.predicateCount(); {
	case n == 0:
		return assertions.Predicate{}, fmt.Errorf("check has no predicate")
	case n > 1:
		return assertions.Predicate{}, fmt.Errorf("check has more than one predicate")
	}

	switch {
	case fc.Equals != nil:
		return assertions.Equals(bind(fc.Equals, vars)), nil
	case fc.Contains != nil:
		return assertions.Contains(bind(fc.Contains, vars)), nil
	case fc.Prefix != nil:
		return assertions.HasPrefix(stringify(bind(fc.Prefix, vars))), nil
	case fc.Matches != nil:
		return assertions.Regex(stringify(bind(fc.Matches, vars))), nil
	case fc.Range != nil:
		if len(fc.Range) != 2 {
			return assertions.Predicate{}, fmt.Errorf("range needs [min, max]")
		}
		lo, err := toFloat(bind(fc.Range[0], vars))
		if err != nil {
			return assertions.Predicate{}, fmt.Errorf("range: %w", err)
		}
		hi, err := toFloat(bind(fc.Range[1], vars))
		if err != nil {
			return assertions.Predicate{}, fmt.Errorf("range: %w", err)
		}
		return assertions.Range(lo, hi), nil
	case fc.OneOf != nil:
		values, _ := bind(fc.OneOf, vars).([]any)
		return assertions.OneOf(values...), nil
	case fc.Type != "":
		return assertions.Type(fc.Type), nil
	case fc.NotEmpty:
		return assertions.NotEmpty(), nil
	case fc.Each != nil:
		if fc.Each.Field != nil || fc.Each.Header != "" || fc.Each.JSONSchema != "" || fc.Each.Length != nil {
			return assertions.Predicate{}, fmt.Errorf("each takes a single predicate")
		}
		inner, err := fc.Each.predicate(vars)
		if err != nil {
			return assertions.Predicate{}, fmt.Errorf("each: %w", err)
		}
		return assertions.Each(inner), nil
	}
	return assertions.Predicate{}, fmt.Errorf("length is only valid on its own")
}

func readDocument(path string, docs map[string][]byte) ([]byte, error) {
	if doc, ok := docs[path]; ok {
		return doc, nil
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("json_schema: %w", err)
	}
	if !json.Valid(doc) {
		return nil, fmt.Errorf("json_schema %s: not valid JSON", path)
	}
	docs[path] = doc
	return doc, nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// bind substitutes case parameters into a decoded value. A string that is
// exactly "{name}" becomes the parameter's typed value, so `equals: "{id}"`
// compares against the integer 5, not "5".
func bind(v any, vars map[string]any) any {
	switch t := v.(type) {
	case string:
		if m := placeholderPattern.FindStringSubmatch(t); m != nil && m[0] == t {
			if value, ok := vars[m[1]]; ok {
				return value
			}
		}
		return substitute(t, vars)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = bind(item, vars)
		}
		return out
	case map[string]any:
		return bindMap(t, vars)
	}
	return v
}

func bindMap(m map[string]any, vars map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = bind(v, vars)
	}
	return out
}

// substitute replaces {name} for known parameters and leaves any other
// braces alone, so regexes such as \d{3} survive.
func substitute(s string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(s, "{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if value, ok := vars[match[1:len(match)-1]]; ok {
			return stringify(value)
		}
		return match
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func stringMap(m map[string]any) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = stringify(v)
	}
	return out
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("value is required")
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%v is not an integer", v)
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%v is not a number", v)
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	return d, nil
}
