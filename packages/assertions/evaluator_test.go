package assertions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

func TestEvaluator_StatusCode(t *testing.T) {
	e := NewEvaluator(createResponse(200, `{}`, nil), nil)

	result := e.Evaluate(StatusEquals(200))
	assert.True(t, result.Passed)
	assert.Equal(t, 200, result.Actual)

	result = e.Evaluate(StatusEquals(404))
	assert.False(t, result.Passed)
	assert.Equal(t, "expected status 404, got 200", result.Message)
	assert.Equal(t, "status equals 404", result.Description)
}

func TestEvaluator_FieldEquals(t *testing.T) {
	resp := createResponse(200, `{"id": 5, "title": "hello", "body": "text", "nested": {"tags": ["a", "b"]}, "flag": true}`, nil)
	e := NewEvaluator(resp, nil)

	tests := []struct {
		name   string
		path   string
		value  any
		passed bool
	}{
		{"integer literal matches number", "id", 5, true},
		{"float literal matches number", "id", 5.0, true},
		{"string does not equal number", "id", "5", false},
		{"string", "title", "hello", true},
		{"bracket path", "nested.tags[1]", "b", true},
		{"slice literal", "nested.tags", []string{"a", "b"}, true},
		{"bool", "flag", true, true},
		{"field named body", "body", "text", true},
		{"missing field", "nope", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(FieldEquals(tt.path, tt.value))
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluator_FieldEqualsLargeIntegers(t *testing.T) {
	resp := createResponse(200, `{"id": 9007199254740993, "ids": [9007199254740993], "price": 1.50}`, nil)
	e := NewEvaluator(resp, nil)

	result := e.Evaluate(FieldEquals("id", int64(9007199254740992)))
	assert.False(t, result.Passed)
	assert.Equal(t, json.Number("9007199254740993"), result.Actual)
	assert.Equal(t, "expected 9007199254740992, got 9007199254740993", result.Message)

	tests := []struct {
		name   string
		x      Expectation
		passed bool
	}{
		{"exact int64", FieldEquals("id", int64(9007199254740993)), true},
		{"exact uint64", FieldEquals("id", uint64(9007199254740993)), true},
		{"contains neighbour", FieldMatches("ids", Contains(int64(9007199254740992))), false},
		{"contains exact", FieldMatches("ids", Contains(int64(9007199254740993))), true},
		{"decimal with trailing zero", FieldEquals("price", 1.5), true},
		{"integer type", FieldMatches("id", Type("integer")), true},
		{"decimal is not integer", FieldMatches("price", Type("integer")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(tt.x)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluator_FieldMissingMessage(t *testing.T) {
	e := NewEvaluator(createResponse(200, `{"a": 1}`, nil), nil)

	result := e.Evaluate(FieldEquals("b", 1))

	assert.False(t, result.Passed)
	assert.Equal(t, `field "b" not found`, result.Message)
	assert.Nil(t, result.Actual)
}

func TestEvaluator_NonJSONBody(t *testing.T) {
	e := NewEvaluator(createResponse(200, `plain text`, map[string]string{"Content-Type": "text/plain"}), nil)

	assert.True(t, e.Evaluate(FieldMatches("", Contains("plain"))).Passed)

	result := e.Evaluate(FieldEquals("id", 1))
	assert.False(t, result.Passed)
	assert.Equal(t, "response body is not JSON", result.Message)
}

func TestEvaluator_EachBreweryType(t *testing.T) {
	body := `[{"brewery_type": "micro"}, {"brewery_type": "micro"}, {"brewery_type": "nano"}]`
	e := NewEvaluator(createResponse(200, body, nil), nil)

	result := e.Evaluate(FieldMatches("#.brewery_type", Each(Equals("micro"))))

	assert.False(t, result.Passed)
	assert.Equal(t, `item[2]: expected "micro", got "nano"`, result.Message)
	assert.Equal(t, "each equals", result.Operator)
}

func TestEvaluator_EachEmptyArrayPasses(t *testing.T) {
	e := NewEvaluator(createResponse(200, `{"message": []}`, nil), nil)

	assert.True(t, e.Evaluate(FieldMatches("message", Each(Contains("hound")))).Passed)
}

func TestEvaluator_CollectionLength(t *testing.T) {
	e := NewEvaluator(createResponse(200, `{"message": ["a", "b", "c"], "status": "success", "obj": {"k": 1}}`, nil), nil)

	result := e.Evaluate(CollectionLengthEquals("message", 3))
	assert.True(t, result.Passed)
	assert.Equal(t, 3, result.Actual)

	result = e.Evaluate(CollectionLengthEquals("message", 10))
	assert.False(t, result.Passed)
	assert.Equal(t, "expected length 10, got 3", result.Message)

	assert.True(t, e.Evaluate(CollectionLengthEquals("obj", 1)).Passed)

	result = e.Evaluate(CollectionLengthEquals("status", 7))
	assert.False(t, result.Passed)
	assert.Equal(t, "expected a collection, got string", result.Message)
}

func TestEvaluator_RootCollectionLength(t *testing.T) {
	e := NewEvaluator(createResponse(200, `[1, 2]`, nil), nil)

	assert.True(t, e.Evaluate(CollectionLengthEquals("", 2)).Passed)
}

func TestEvaluator_SchemaValid(t *testing.T) {
	resp := createResponse(200, `{"id": 1}`, nil)
	s := schema.New("post", schema.Required("id", schema.Integer), schema.Required("title", schema.String))

	result := NewEvaluator(resp, nil).Evaluate(SchemaValid())
	assert.False(t, result.Passed)
	assert.Equal(t, "no schema validation was performed", result.Message)

	validation := schema.Validate(s, resp.Body)
	result = NewEvaluator(resp, validation).Evaluate(SchemaValid())
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "post.title: missing required field")

	s = schema.New("post", schema.Required("id", schema.Integer))
	result = NewEvaluator(resp, schema.Validate(s, resp.Body)).Evaluate(SchemaValid())
	assert.True(t, result.Passed)
}

func TestEvaluator_HeaderMatches(t *testing.T) {
	resp := createResponse(200, `{}`, map[string]string{"Content-Type": "application/json; charset=utf-8"})
	e := NewEvaluator(resp, nil)

	assert.True(t, e.Evaluate(HeaderMatches("content-type", Contains("json"))).Passed)
	assert.False(t, e.Evaluate(HeaderMatches("X-Missing", Contains("x"))).Passed)
}

func TestEvaluator_MatchesJSONSchema(t *testing.T) {
	doc := []byte(`{
		"type": "object",
		"required": ["message", "status"],
		"properties": {
			"message": {"type": "string"},
			"status": {"const": "success"}
		}
	}`)

	good := NewEvaluator(createResponse(200, `{"message": "https://images.dog.ceo/breeds/hound/x.jpg", "status": "success"}`, nil), nil)
	assert.True(t, good.Evaluate(MatchesJSONSchema("", doc)).Passed)

	bad := NewEvaluator(createResponse(200, `{"message": ["a"], "status": "success"}`, nil), nil)
	result := bad.Evaluate(MatchesJSONSchema("", doc))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "schema validation failed")
}

func TestEvaluate_RunsAllChecks(t *testing.T) {
	resp := createResponse(404, `{"title": "x"}`, nil)

	report := Evaluate(resp, nil, []Expectation{
		StatusEquals(200),
		FieldEquals("title", "y"),
		FieldEquals("title", "x"),
	})

	assert.False(t, report.Passed)
	require.Len(t, report.Results, 3)
	assert.False(t, report.Results[0].Passed)
	assert.False(t, report.Results[1].Passed)
	assert.True(t, report.Results[2].Passed)
	assert.Len(t, report.Failures(), 2)
}

func TestEvaluate_FailFast(t *testing.T) {
	resp := createResponse(404, `{"title": "x"}`, nil)

	report := Evaluate(resp, nil, []Expectation{
		StatusEquals(200),
		FieldEquals("title", "x"),
	}, WithFailFast(true))

	assert.False(t, report.Passed)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[1].Skipped)
	assert.Len(t, report.Failures(), 1)
}

func TestEvaluate_AllPass(t *testing.T) {
	resp := createResponse(201, `{"id": 101, "title": "some title", "body": "some body", "userId": 1}`, nil)

	report := Evaluate(resp, nil, []Expectation{
		StatusEquals(201),
		FieldEquals("title", "some title"),
		FieldEquals("body", "some body"),
		FieldEquals("userId", 1),
	})

	assert.True(t, report.Passed)
	assert.Empty(t, report.Failures())
}

func TestExpectation_As(t *testing.T) {
	x := FieldEquals("status", "success").As("breeds listed")

	assert.Equal(t, "breeds listed", x.Describe())
	assert.Equal(t, `body.status equals "success"`, FieldEquals("status", "success").Describe())
}

func TestConvertBracketNotation(t *testing.T) {
	assert.Equal(t, "0.id", convertBracketNotation("[0].id"))
	assert.Equal(t, "items.0.tags.1", convertBracketNotation("items[0].tags[1]"))
	assert.Equal(t, "plain", convertBracketNotation("plain"))
}
