// Package openapi converts OpenAPI 3 documents into apicheck suite files.
package openapi

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// BaseURLVariable is the suite variable every generated template URL
// starts with.
const BaseURLVariable = "base_url"

const (
	skipPathParams = "set path parameters before enabling"
	skipWrite      = "review the request before enabling"
)

// Converter converts OpenAPI specs to suite files
type Converter struct {
	baseURL       string
	includeTags   []string
	excludeTags   []string
	includeOnly   []string // specific operation IDs
	generateTests bool
	warn          func(format string, args ...any)
}

// Option is a functional option for Converter
type Option func(*Converter)

// WithBaseURL sets a custom base URL, overriding the one from spec
func WithBaseURL(url string) Option {
	return func(c *Converter) {
		c.baseURL = url
	}
}

// WithTags filters operations by tags
func WithTags(tags []string) Option {
	return func(c *Converter) {
		c.includeTags = tags
	}
}

// WithExcludeTags excludes operations with these tags
func WithExcludeTags(tags []string) Option {
	return func(c *Converter) {
		c.excludeTags = tags
	}
}

// WithOperations filters to specific operation IDs
func WithOperations(ops []string) Option {
	return func(c *Converter) {
		c.includeOnly = ops
	}
}

// WithTests controls whether cases are generated next to the templates.
func WithTests(generate bool) Option {
	return func(c *Converter) {
		c.generateTests = generate
	}
}

// WithWarnFunc receives document validation warnings. The default writes
// to stderr.
func WithWarnFunc(fn func(format string, args ...any)) Option {
	return func(c *Converter) {
		c.warn = fn
	}
}

// NewConverter creates a new OpenAPI converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		generateTests: true,
		warn: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// File is the generated suite document.
type File struct {
	Name      string              `yaml:"name"`
	Variables map[string]string   `yaml:"variables,omitempty"`
	Templates map[string]Template `yaml:"templates"`
	Schemas   map[string]Schema   `yaml:"schemas,omitempty"`
	Cases     []Case              `yaml:"cases,omitempty"`
}

type Template struct {
	Method   string            `yaml:"method"`
	URL      string            `yaml:"url"`
	Query    map[string]string `yaml:"query,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Defaults map[string]string `yaml:"defaults,omitempty"`
}

type Schema struct {
	Fields []Field `yaml:"fields"`
}

type Field struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

type Case struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description,omitempty"`
	Template    string   `yaml:"template"`
	Body        any      `yaml:"body,omitempty"`
	Status      int      `yaml:"status"`
	Schema      string   `yaml:"schema,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Skip        string   `yaml:"skip,omitempty"`
}

// ConvertFile loads an OpenAPI document from a path or URL and converts it.
func (c *Converter) ConvertFile(location string) ([]byte, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	var doc *openapi3.T
	var err error
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		var u *url.URL
		u, err = url.Parse(location)
		if err == nil {
			doc, err = loader.LoadFromURI(u)
		}
	} else {
		doc, err = loader.LoadFromFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}

	return c.Convert(doc)
}

// Convert renders an OpenAPI document as suite YAML.
func (c *Converter) Convert(doc *openapi3.T) ([]byte, error) {
	file, err := c.Build(doc)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Generated from OpenAPI spec")
	if doc.Info != nil && doc.Info.Title != "" {
		sb.WriteString(": ")
		sb.WriteString(doc.Info.Title)
	}
	sb.WriteString("\n")
	if doc.Info != nil && doc.Info.Version != "" {
		sb.WriteString("# Version: ")
		sb.WriteString(doc.Info.Version)
		sb.WriteString("\n")
	}

	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("encoding suite: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding suite: %w", err)
	}
	return []byte(sb.String()), nil
}

// Build converts an OpenAPI document into a suite document.
func (c *Converter) Build(doc *openapi3.T) (*File, error) {
	if doc == nil || doc.Paths == nil {
		return nil, fmt.Errorf("OpenAPI document has no paths")
	}
	if err := doc.Validate(context.Background()); err != nil {
		// Some specs have minor validation issues; convert anyway.
		c.warn("OpenAPI spec validation: %v", err)
	}

	file := &File{
		Name:      "api",
		Variables: map[string]string{BaseURLVariable: c.getBaseURL(doc)},
		Templates: make(map[string]Template),
		Schemas:   c.schemas(doc),
	}
	if doc.Info != nil && doc.Info.Title != "" {
		file.Name = strings.ToLower(sanitizeName(doc.Info.Title))
	}

	// Get sorted paths for consistent output
	paths := make([]string, 0, len(doc.Paths.Map()))
	for p := range doc.Paths.Map() {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		pathItem := doc.Paths.Map()[p]
		if pathItem == nil {
			continue
		}

		operations := []struct {
			method string
			op     *openapi3.Operation
		}{
			{"GET", pathItem.Get},
			{"POST", pathItem.Post},
			{"PUT", pathItem.Put},
			{"PATCH", pathItem.Patch},
			{"DELETE", pathItem.Delete},
		}

		for _, op := range operations {
			if op.op == nil || !c.shouldInclude(op.op) {
				continue
			}
			name := operationName(p, op.method, op.op)
			if _, exists := file.Templates[name]; exists {
				c.warn("duplicate operation name %q, skipping %s %s", name, op.method, p)
				continue
			}
			params := append(append(openapi3.Parameters{}, pathItem.Parameters...), op.op.Parameters...)
			template, unresolved := c.template(p, op.method, params)
			file.Templates[name] = template

			if c.generateTests {
				file.Cases = append(file.Cases, c.testCase(name, op.method, op.op, file.Schemas, unresolved))
			}
		}
	}

	return file, nil
}

func (c *Converter) getBaseURL(doc *openapi3.T) string {
	if c.baseURL != "" {
		return strings.TrimRight(c.baseURL, "/")
	}
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return strings.TrimRight(doc.Servers[0].URL, "/")
	}
	return "http://localhost:3000"
}

func (c *Converter) shouldInclude(op *openapi3.Operation) bool {
	// Check operation ID filter
	if len(c.includeOnly) > 0 && !contains(c.includeOnly, op.OperationID) {
		return false
	}

	// Check tag filters
	if len(c.includeTags) > 0 {
		found := false
		for _, tag := range op.Tags {
			if contains(c.includeTags, tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, tag := range op.Tags {
		if contains(c.excludeTags, tag) {
			return false
		}
	}

	return true
}

// template builds the request template of one operation. Path parameters
// with no usable example are returned as unresolved.
func (c *Converter) template(p, method string, params openapi3.Parameters) (Template, []string) {
	t := Template{
		Method: method,
		URL:    "{{" + BaseURLVariable + "}}" + p,
	}
	var unresolved []string

	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		param := ref.Value
		example, ok := paramExample(param)
		switch param.In {
		case "path":
			if !ok {
				unresolved = append(unresolved, param.Name)
				continue
			}
			if t.Defaults == nil {
				t.Defaults = make(map[string]string)
			}
			t.Defaults[param.Name] = example
		case "query":
			if !param.Required || !ok {
				continue
			}
			if t.Query == nil {
				t.Query = make(map[string]string)
			}
			t.Query[param.Name] = example
		case "header":
			if !ok {
				continue
			}
			if t.Headers == nil {
				t.Headers = make(map[string]string)
			}
			t.Headers[param.Name] = example
		}
	}

	sort.Strings(unresolved)
	return t, unresolved
}

func (c *Converter) testCase(name, method string, op *openapi3.Operation, schemas map[string]Schema, unresolved []string) Case {
	tc := Case{
		ID:          name,
		Description: strings.TrimSpace(op.Summary),
		Template:    name,
		Status:      200,
		Tags:        op.Tags,
	}

	code, resp := successResponse(op)
	if code != 0 {
		tc.Status = code
	}
	if resp != nil {
		if ref := jsonSchemaRef(resp.Content); ref != "" {
			if _, ok := schemas[ref]; ok {
				tc.Schema = ref
			}
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if media := op.RequestBody.Value.Content.Get("application/json"); media != nil && media.Schema != nil {
			tc.Body = exampleValue(media.Schema.Value, 0)
		}
	}

	switch {
	case len(unresolved) > 0:
		tc.Skip = skipPathParams + ": " + strings.Join(unresolved, ", ")
	case method != "GET":
		tc.Skip = skipWrite
	}
	return tc
}

// schemas turns object component schemas into record schemas.
func (c *Converter) schemas(doc *openapi3.T) map[string]Schema {
	out := make(map[string]Schema)
	if doc.Components == nil {
		return out
	}
	for name, ref := range doc.Components.Schemas {
		if ref == nil || ref.Value == nil || !ref.Value.Type.Is("object") || len(ref.Value.Properties) == 0 {
			continue
		}
		s := ref.Value
		props := make([]string, 0, len(s.Properties))
		for prop := range s.Properties {
			props = append(props, prop)
		}
		sort.Strings(props)

		var fields []Field
		for _, prop := range props {
			field := Field{Name: prop, Type: "any", Required: contains(s.Required, prop)}
			if v := s.Properties[prop].Value; v != nil {
				field.Type = fieldType(v)
				field.Nullable = v.Nullable
			}
			fields = append(fields, field)
		}
		out[name] = Schema{Fields: fields}
	}
	return out
}

func successResponse(op *openapi3.Operation) (int, *openapi3.Response) {
	if op.Responses == nil {
		return 0, nil
	}
	codes := make([]string, 0)
	for code := range op.Responses.Map() {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	for _, code := range codes {
		ref := op.Responses.Map()[code]
		n, err := strconv.Atoi(code)
		if err != nil || ref == nil {
			continue
		}
		return n, ref.Value
	}
	return 0, nil
}

// jsonSchemaRef names the component schema of a JSON response, looking
// through arrays.
func jsonSchemaRef(content openapi3.Content) string {
	media := content.Get("application/json")
	if media == nil || media.Schema == nil {
		return ""
	}
	ref := media.Schema
	if ref.Ref == "" && ref.Value != nil && ref.Value.Type.Is("array") && ref.Value.Items != nil {
		ref = ref.Value.Items
	}
	if ref.Ref == "" {
		return ""
	}
	return path.Base(ref.Ref)
}

func fieldType(s *openapi3.Schema) string {
	if s.Type == nil || len(s.Type.Slice()) == 0 {
		return "any"
	}
	switch t := s.Type.Slice()[0]; t {
	case "string", "integer", "number", "boolean", "array", "object":
		return t
	}
	return "any"
}

// paramExample returns a literal value for a parameter, if one can be
// derived from its examples or type.
func paramExample(param *openapi3.Parameter) (string, bool) {
	if param.Example != nil {
		return fmt.Sprintf("%v", param.Example), true
	}
	if param.Schema == nil || param.Schema.Value == nil {
		return "", false
	}
	s := param.Schema.Value
	if s.Example != nil {
		return fmt.Sprintf("%v", s.Example), true
	}
	if len(s.Enum) > 0 {
		return fmt.Sprintf("%v", s.Enum[0]), true
	}
	switch {
	case s.Type.Is("integer"):
		return "1", true
	case s.Type.Is("boolean"):
		return "true", true
	case s.Type.Is("string") && s.Format == "uuid":
		return "{{uuid()}}", true
	}
	return "", false
}

// exampleValue generates a request body value from a schema.
func exampleValue(s *openapi3.Schema, depth int) any {
	if s == nil || depth > 5 {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if s.Type == nil || len(s.Type.Slice()) == 0 {
		return nil
	}

	switch s.Type.Slice()[0] {
	case "object":
		obj := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			if prop == nil || prop.Value == nil || prop.Value.ReadOnly {
				continue
			}
			obj[name] = exampleValue(prop.Value, depth+1)
		}
		return obj
	case "array":
		if s.Items != nil && s.Items.Value != nil {
			return []any{exampleValue(s.Items.Value, depth+1)}
		}
		return []any{}
	case "string":
		if len(s.Enum) > 0 {
			return s.Enum[0]
		}
		switch s.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "{{uuid()}}"
		}
		return "example"
	case "integer":
		if s.Min != nil {
			return int(*s.Min)
		}
		return 1
	case "number":
		if s.Min != nil {
			return *s.Min
		}
		return 1.0
	case "boolean":
		return true
	}
	return nil
}

func operationName(p, method string, op *openapi3.Operation) string {
	if op.OperationID != "" {
		return sanitizeName(op.OperationID)
	}
	return sanitizeName(strings.ToLower(method) + "_" + strings.ReplaceAll(p, "/", "_"))
}

func sanitizeName(name string) string {
	result := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)

	// Remove consecutive underscores
	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	return strings.Trim(result, "_")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ConvertToFile converts and writes to a file
func (c *Converter) ConvertToFile(specPath, outputPath string) error {
	content, err := c.ConvertFile(specPath)
	if err != nil {
		return err
	}

	// Create directory if needed
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(outputPath, content, 0644)
}
