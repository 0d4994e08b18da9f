package assertions

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name   string
		pred   Predicate
		actual any
		passed bool
	}{
		{"equals number", Equals(1), float64(1), true},
		{"equals number vs string", Equals(1), "1", false},
		{"equals string vs number", Equals("1"), float64(1), false},
		{"equals null", Equals(nil), nil, true},
		{"equals object", Equals(map[string]any{"a": 1}), map[string]any{"a": float64(1)}, true},
		{"contains substring", Contains("hound"), "https://images.dog.ceo/breeds/hound-afghan/n1.jpg", true},
		{"contains missing substring", Contains("bulldog"), "https://images.dog.ceo/breeds/hound/n1.jpg", false},
		{"contains array element", Contains("micro"), []any{"nano", "micro"}, true},
		{"contains on number", Contains("1"), float64(1), false},
		{"prefix", HasPrefix("https://"), "https://dog.ceo", true},
		{"prefix non-string", HasPrefix("1"), float64(10), false},
		{"regex", Regex(`/^\d{3}$/`), "404", true},
		{"regex miss", Regex(`^a`), "b", false},
		{"regex invalid", Regex(`(`), "x", false},
		{"range inside", Range(1, 200), float64(200), true},
		{"range outside", Range(1, 200), float64(201), false},
		{"range non-number", Range(1, 2), "1", false},
		{"one of", OneOf("micro", "nano"), "nano", true},
		{"one of miss", OneOf("micro", "nano"), "bar", false},
		{"type string", Type("string"), "x", true},
		{"type array", Type("array"), []any{}, true},
		{"type integer", Type("integer"), float64(3), true},
		{"type integer fraction", Type("integer"), 3.5, false},
		{"type null", Type("null"), nil, true},
		{"not empty", NotEmpty(), "x", true},
		{"not empty blank", NotEmpty(), "", false},
		{"not empty array", NotEmpty(), []any{}, false},
		{"not empty null", NotEmpty(), nil, false},
		{"each", Each(HasPrefix("https://")), []any{"https://a", "https://b"}, true},
		{"each fails", Each(HasPrefix("https://")), []any{"https://a", "ftp://b"}, false},
		{"each non-array", Each(Equals(1)), float64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, msg := tt.pred.Test(tt.actual)
			assert.Equal(t, tt.passed, passed, msg)
			if !passed {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(int64(5), float64(5)))
	assert.True(t, valuesEqual([]int{1, 2}, []any{float64(1), float64(2)}))
	assert.False(t, valuesEqual(5, "5"))
	assert.False(t, valuesEqual(true, "true"))
	assert.False(t, valuesEqual(nil, ""))
	assert.True(t, valuesEqual(json.Number("1.0"), 1))
	assert.True(t, valuesEqual(json.Number("1e2"), 100))
	assert.False(t, valuesEqual(json.Number("9007199254740993"), int64(9007199254740992)))
	assert.False(t, valuesEqual(json.Number("1"), "1"))
}

func TestRender_TruncatesOnRuneBoundary(t *testing.T) {
	out := render([]string{"x" + strings.Repeat("é", 100)})

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 123)
	assert.Equal(t, "abc", truncate("abc", 120))
}

func TestEmptyPredicate(t *testing.T) {
	passed, msg := Predicate{}.Test("x")

	assert.False(t, passed)
	assert.Equal(t, "empty predicate", msg)
}
