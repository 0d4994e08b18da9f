package assertions

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Predicate is a named test over a single JSON value: nil, bool,
// json.Number, string, []any or map[string]any. Numbers keep their JSON
// text so integers beyond float64 precision compare exactly.
type Predicate struct {
	Name     string
	Expected any
	test     func(actual any) (bool, string)
}

// Test applies the predicate.
func (p Predicate) Test(actual any) (bool, string) {
	if p.test == nil {
		return false, "empty predicate"
	}
	return p.test(actual)
}

func Equals(expected any) Predicate {
	return Predicate{
		Name:     "equals",
		Expected: expected,
		test: func(actual any) (bool, string) {
			if valuesEqual(actual, expected) {
				return true, ""
			}
			return false, fmt.Sprintf("expected %s, got %s", render(expected), render(actual))
		},
	}
}

// Contains matches a substring of a string value, or an element of an
// array value.
func Contains(expected any) Predicate {
	return Predicate{
		Name:     "contains",
		Expected: expected,
		test: func(actual any) (bool, string) {
			switch v := actual.(type) {
			case string:
				sub := fmt.Sprintf("%v", expected)
				if strings.Contains(v, sub) {
					return true, ""
				}
				return false, fmt.Sprintf("expected %s to contain %q", render(v), sub)
			case []any:
				for _, item := range v {
					if valuesEqual(item, expected) {
						return true, ""
					}
				}
				return false, fmt.Sprintf("expected array to include %s", render(expected))
			}
			return false, fmt.Sprintf("cannot check containment in %s", typeName(actual))
		},
	}
}

func HasPrefix(prefix string) Predicate {
	return Predicate{
		Name:     "prefix",
		Expected: prefix,
		test: func(actual any) (bool, string) {
			s, ok := actual.(string)
			if !ok {
				return false, fmt.Sprintf("expected string, got %s", typeName(actual))
			}
			if strings.HasPrefix(s, prefix) {
				return true, ""
			}
			return false, fmt.Sprintf("expected %s to start with %q", render(s), prefix)
		},
	}
}

// Regex matches string values against pattern. Surrounding slashes are
// stripped, so /^a/ and ^a are the same pattern.
func Regex(pattern string) Predicate {
	pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")
	re, err := regexp.Compile(pattern)
	return Predicate{
		Name:     "matches",
		Expected: pattern,
		test: func(actual any) (bool, string) {
			if err != nil {
				return false, fmt.Sprintf("invalid regex pattern: %v", err)
			}
			s, ok := actual.(string)
			if !ok {
				s = fmt.Sprintf("%v", actual)
			}
			if re.MatchString(s) {
				return true, ""
			}
			return false, fmt.Sprintf("expected %s to match /%s/", render(actual), pattern)
		},
	}
}

// Range passes numbers within [min, max].
func Range(min, max float64) Predicate {
	return Predicate{
		Name:     "range",
		Expected: []float64{min, max},
		test: func(actual any) (bool, string) {
			n, ok := toFloat64(actual)
			if !ok {
				return false, fmt.Sprintf("expected number, got %s", typeName(actual))
			}
			if n >= min && n <= max {
				return true, ""
			}
			return false, fmt.Sprintf("expected %v to be within [%v, %v]", n, min, max)
		},
	}
}

func OneOf(values ...any) Predicate {
	return Predicate{
		Name:     "one_of",
		Expected: values,
		test: func(actual any) (bool, string) {
			for _, v := range values {
				if valuesEqual(actual, v) {
					return true, ""
				}
			}
			return false, fmt.Sprintf("expected %s to be one of %s", render(actual), render(values))
		},
	}
}

// Type checks the JSON type name: null, boolean, number, string, array,
// object. "integer" accepts integral numbers.
func Type(name string) Predicate {
	return Predicate{
		Name:     "type",
		Expected: name,
		test: func(actual any) (bool, string) {
			got := typeName(actual)
			if got == name {
				return true, ""
			}
			if name == "integer" {
				if r, ok := rational(actual); ok && r.IsInt() {
					return true, ""
				}
			}
			return false, fmt.Sprintf("expected type %s, got %s", name, got)
		},
	}
}

// NotEmpty fails for null, empty strings, empty arrays and empty objects.
func NotEmpty() Predicate {
	return Predicate{
		Name: "not_empty",
		test: func(actual any) (bool, string) {
			switch v := actual.(type) {
			case nil:
				return false, "expected a value, got null"
			case string:
				if v == "" {
					return false, "expected non-empty string"
				}
			case []any:
				if len(v) == 0 {
					return false, "expected non-empty array"
				}
			case map[string]any:
				if len(v) == 0 {
					return false, "expected non-empty object"
				}
			}
			return true, ""
		},
	}
}

// Each applies inner to every element of an array. An empty array passes.
func Each(inner Predicate) Predicate {
	return Predicate{
		Name:     "each " + inner.Name,
		Expected: inner.Expected,
		test: func(actual any) (bool, string) {
			arr, ok := actual.([]any)
			if !ok {
				return false, fmt.Sprintf("expected array for 'each', got %s", typeName(actual))
			}
			for i, item := range arr {
				if passed, msg := inner.Test(item); !passed {
					return false, fmt.Sprintf("item[%d]: %s", i, msg)
				}
			}
			return true, ""
		},
	}
}

// valuesEqual compares JSON values exactly. Numbers compare by value,
// but a number never equals a string, so 5 and "5" differ.
func valuesEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case json.Number:
		bv, ok := b.(json.Number)
		return ok && numbersEqual(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	}
	if _, ok := b.(json.Number); ok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// numbersEqual compares two JSON number texts as exact rationals, so
// 9007199254740993 and 9007199254740992 differ while 1 and 1.0 match.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	ar, aok := new(big.Rat).SetString(string(a))
	br, bok := new(big.Rat).SetString(string(b))
	if !aok || !bok {
		return false
	}
	return ar.Cmp(br) == 0
}

// normalize maps Go values onto the shapes evaluated bodies have, so
// expectations written with int or []string literals compare cleanly.
func normalize(v any) any {
	switch n := v.(type) {
	case nil, bool, string, json.Number:
		return v
	case float64:
		return json.Number(strconv.FormatFloat(n, 'g', -1, 64))
	case float32:
		return json.Number(strconv.FormatFloat(float64(n), 'g', -1, 32))
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int8:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int16:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(n), 10))
	case int64:
		return json.Number(strconv.FormatInt(n, 10))
	case uint:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint8:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint16:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint32:
		return json.Number(strconv.FormatUint(uint64(n), 10))
	case uint64:
		return json.Number(strconv.FormatUint(n, 10))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out, err := decodeJSON(data)
	if err != nil {
		return v
	}
	return out
}

// decodeJSON decodes data with numbers kept as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func rational(v any) (*big.Rat, bool) {
	n, ok := normalize(v).(json.Number)
	if !ok {
		return nil, false
	}
	return new(big.Rat).SetString(string(n))
}

func toFloat64(v any) (float64, bool) {
	n, ok := normalize(v).(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return reflect.TypeOf(v).String()
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return truncate(string(data), 120)
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
