package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Result is the outcome of validating a payload against a schema.
type Result struct {
	Schema string
	Valid  bool
	Errors []*FieldError
	// Records holds the coerced values of every validated element, with
	// defaults applied for absent optional fields.
	Records []map[string]any
}

// Err joins all validation errors, or returns nil for a valid payload.
func (r *Result) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Summary renders the errors on one line.
func (r *Result) Summary() string {
	if r == nil {
		return ""
	}
	if r.Valid {
		return "valid"
	}
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

type options struct {
	strictAll bool
	path      string
}

type Option func(*options)

// WithStrictAll validates every element of an array payload instead of
// only the first.
func WithStrictAll(all bool) Option {
	return func(o *options) {
		o.strictAll = all
	}
}

// WithPath validates the value at a gjson path instead of the whole payload.
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

func Validate(s *Schema, payload []byte, opts ...Option) *Result {
	if !gjson.ValidBytes(payload) {
		return invalid(s, &FieldError{
			Schema: s.Name,
			Kind:   KindInvalidPayload,
			Index:  NoIndex,
			Actual: preview(string(payload)),
		})
	}
	return ValidateResult(s, gjson.ParseBytes(payload), opts...)
}

// ValidateResult validates an already parsed payload.
func ValidateResult(s *Schema, root gjson.Result, opts ...Option) *Result {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.path != "" {
		root = root.Get(o.path)
		if !root.Exists() {
			return invalid(s, &FieldError{
				Schema: s.Name,
				Kind:   KindMissingField,
				Field:  o.path,
				Index:  NoIndex,
			})
		}
	}

	result := &Result{Schema: s.Name}

	switch {
	case root.IsArray():
		elems := root.Array()
		if len(elems) == 0 {
			return invalid(s, &FieldError{Schema: s.Name, Kind: KindEmptyCollection, Index: NoIndex})
		}
		if !o.strictAll {
			elems = elems[:1]
		}
		for i, elem := range elems {
			record, errs := validateRecord(s, elem, i)
			result.Errors = append(result.Errors, errs...)
			if record != nil {
				result.Records = append(result.Records, record)
			}
		}
	case root.IsObject():
		record, errs := validateRecord(s, root, NoIndex)
		result.Errors = append(result.Errors, errs...)
		if record != nil {
			result.Records = append(result.Records, record)
		}
	default:
		result.Errors = append(result.Errors, &FieldError{
			Schema:   s.Name,
			Kind:     KindTypeMismatch,
			Index:    NoIndex,
			Expected: "object or array",
			Actual:   kindOf(root),
		})
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func invalid(s *Schema, err *FieldError) *Result {
	return &Result{Schema: s.Name, Errors: []*FieldError{err}}
}

func validateRecord(s *Schema, v gjson.Result, index int) (map[string]any, []*FieldError) {
	if !v.IsObject() {
		return nil, []*FieldError{{
			Schema:   s.Name,
			Kind:     KindTypeMismatch,
			Index:    index,
			Expected: "object",
			Actual:   kindOf(v),
		}}
	}

	// Keys are collected up front so field names containing gjson syntax
	// (dots, wildcards) are looked up literally.
	present := make(map[string]gjson.Result)
	var order []string
	v.ForEach(func(key, value gjson.Result) bool {
		present[key.Str] = value
		order = append(order, key.Str)
		return true
	})

	record := make(map[string]any, len(s.Fields))
	var errs []*FieldError

	for _, f := range s.Fields {
		val, ok := present[f.Name]
		if !ok {
			if f.Required {
				errs = append(errs, &FieldError{
					Schema:   s.Name,
					Kind:     KindMissingField,
					Field:    f.Name,
					Index:    index,
					Expected: string(f.Type),
				})
			} else if f.Default != nil {
				record[f.Name] = f.Default
			}
			continue
		}

		if val.Type == gjson.Null {
			if !f.Required || f.Nullable || f.Type == Any {
				record[f.Name] = nil
				continue
			}
			errs = append(errs, mismatch(s, f, index, val))
			continue
		}

		coerced, ok := coerce(f.Type, val)
		if !ok {
			errs = append(errs, mismatch(s, f, index, val))
			continue
		}
		record[f.Name] = coerced
	}

	if s.Strict {
		for _, key := range order {
			if _, known := s.Field(key); !known {
				errs = append(errs, &FieldError{
					Schema: s.Name,
					Kind:   KindUnknownField,
					Field:  key,
					Index:  index,
				})
			}
		}
	}

	return record, errs
}

func mismatch(s *Schema, f Field, index int, val gjson.Result) *FieldError {
	return &FieldError{
		Schema:   s.Name,
		Kind:     KindTypeMismatch,
		Field:    f.Name,
		Index:    index,
		Expected: string(f.Type),
		Actual:   describe(val),
	}
}

func coerce(t FieldType, v gjson.Result) (any, bool) {
	switch t {
	case String:
		if v.Type == gjson.String {
			return v.Str, true
		}
	case Integer:
		switch v.Type {
		case gjson.Number:
			return toInteger(v.Raw, v.Num)
		case gjson.String:
			if n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64); err == nil {
				return n, true
			}
		}
	case Number:
		switch v.Type {
		case gjson.Number:
			return v.Num, true
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f, true
			}
		}
	case Boolean:
		switch v.Type {
		case gjson.True, gjson.False:
			return v.Bool(), true
		case gjson.String:
			switch v.Str {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
	case Array:
		if v.IsArray() {
			return v.Value(), true
		}
	case Object:
		if v.IsObject() {
			return v.Value(), true
		}
	case Any:
		return v.Value(), true
	}
	return nil, false
}

func toInteger(raw string, num float64) (any, bool) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	if num == math.Trunc(num) && math.Abs(num) < 1<<53 {
		return int64(num), true
	}
	return nil, false
}

func kindOf(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		if !v.Exists() {
			return "nothing"
		}
		return "null"
	case gjson.False, gjson.True:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	if v.IsArray() {
		return "array"
	}
	return "object"
}

func describe(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number:
		return fmt.Sprintf("%s %s", kindOf(v), preview(v.Raw))
	}
	return kindOf(v)
}

func preview(s string) string {
	const max = 40
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
