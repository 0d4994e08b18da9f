package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/suite"
	"github.com/abdul-hamid-achik/apicheck/packages/endpoint"
	apihttp "github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postsServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "userId": 1, "title": "a", "body": "b"}, {"id": 2, "userId": 1, "title": "c", "body": "d"}]`))
	})
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/posts/")
		if id != "1" && id != "2" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id": %s, "userId": 1, "title": "t", "body": "b"}`, id)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &hits
}

func postsSuite(baseURL string) *suite.Suite {
	s := suite.New("posts")
	s.AddTemplate(&endpoint.Template{Name: "list", Method: "GET", URL: baseURL + "/posts"})
	s.AddTemplate(&endpoint.Template{Name: "post", Method: "GET", URL: baseURL + "/posts/{id}"})
	s.AddSchema(schema.New("post",
		schema.Optional("id", schema.Integer),
		schema.Required("userId", schema.Integer),
		schema.Required("title", schema.String),
		schema.Required("body", schema.String),
	))
	return s
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.client)
		assert.Nil(t, r.limiter)
	})

	t.Run("with custom config", func(t *testing.T) {
		r := NewRunner(&Config{Parallel: true, Concurrency: 10, Rate: 5})
		assert.True(t, r.config.Parallel)
		assert.NotNil(t, r.limiter)
	})
}

func TestRunner_Run(t *testing.T) {
	server, _ := postsServer(t)
	s := postsSuite(server.URL)
	s.AddCase(
		&suite.Case{ID: "list", Template: "list", ExpectStatus: 200, Schema: "post"},
		&suite.Case{
			ID: "get[1]", Template: "post", Params: map[string]string{"id": "1"},
			ExpectStatus: 200, Schema: "post",
			Expect: []assertions.Expectation{assertions.FieldEquals("id", 1)},
		},
		&suite.Case{ID: "missing[101]", Template: "post", Params: map[string]string{"id": "101"}, ExpectStatus: 404},
	)

	report, err := NewRunner(nil).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, "posts", report.Name)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 0, report.Failed)
	assert.True(t, report.OK())

	list := report.Cases[0]
	assert.True(t, list.Passed)
	require.NotNil(t, list.Validation)
	assert.True(t, list.Validation.Valid)
	require.Len(t, list.Assertions, 2)
	assert.Equal(t, "status", list.Assertions[0].Subject)
	assert.Equal(t, "schema", list.Assertions[1].Subject)

	get := report.Cases[1]
	assert.Equal(t, server.URL+"/posts/1", get.Request.URL)
	assert.Equal(t, 200, get.StatusCode)
	assert.Len(t, get.Assertions, 3)

	assert.Equal(t, 3, report.Latency.Count)
	assert.LessOrEqual(t, report.Latency.Min, report.Latency.Max)
}

func TestRunner_FailureReasons(t *testing.T) {
	server, _ := postsServer(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	s := postsSuite(server.URL)
	s.AddTemplate(&endpoint.Template{Name: "down", Method: "GET", URL: closedURL + "/posts"})
	s.AddCase(
		&suite.Case{ID: "wrong_status", Template: "post", Params: map[string]string{"id": "101"}, ExpectStatus: 200},
		&suite.Case{ID: "unreachable", Template: "down", ExpectStatus: 200},
		&suite.Case{ID: "no_id", Template: "post", ExpectStatus: 200},
		&suite.Case{ID: "still_runs", Template: "list", ExpectStatus: 200},
	)

	report, err := NewRunner(nil).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, report.Passed)
	assert.False(t, report.OK())

	wrong := report.Cases[0]
	assert.Equal(t, ReasonAssertionFailure, wrong.Reason)
	require.Len(t, wrong.FailedChecks(), 1)
	assert.Equal(t, 200, wrong.FailedChecks()[0].Expected)
	assert.Equal(t, 404, wrong.FailedChecks()[0].Actual)
	assert.Contains(t, wrong.Message(), "expected status 200, got 404")

	assert.Equal(t, ReasonTransportFailure, report.Cases[1].Reason)
	assert.Error(t, report.Cases[1].Error)

	noID := report.Cases[2]
	assert.Equal(t, ReasonMissingParameter, noID.Reason)
	var mp *endpoint.MissingParameterError
	require.ErrorAs(t, noID.Error, &mp)
	assert.Equal(t, "id", mp.Parameter)
	assert.Nil(t, noID.Request)

	assert.True(t, report.Cases[3].Passed)
	assert.Equal(t, map[Reason]int{
		ReasonAssertionFailure: 1,
		ReasonTransportFailure: 1,
		ReasonMissingParameter: 1,
	}, report.ByReason())
}

func TestRunner_SchemaFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "title": 7}]`))
	}))
	defer server.Close()

	s := postsSuite(server.URL)
	s.AddCase(&suite.Case{ID: "list", Template: "list", ExpectStatus: 200, Schema: "post"})

	report, err := NewRunner(nil).Run(context.Background(), s)

	require.NoError(t, err)
	c := report.Cases[0]
	assert.Equal(t, ReasonAssertionFailure, c.Reason)
	require.NotNil(t, c.Validation)
	assert.False(t, c.Validation.Valid)
	assert.True(t, errors.Is(c.Validation.Err(), schema.ErrMissingField))
	assert.True(t, errors.Is(c.Validation.Err(), schema.ErrTypeMismatch))
}

func TestRunner_Lookups(t *testing.T) {
	server, _ := postsServer(t)
	s := postsSuite(server.URL)
	s.AddLookup(&suite.Lookup{Name: "second", Template: "list", Path: "1.id"})
	s.AddLookup(&suite.Lookup{Name: "broken", Template: "list", Path: "9.id"})
	s.AddCase(
		&suite.Case{ID: "by_lookup", Template: "post", Params: map[string]string{"id": "@second"}, ExpectStatus: 200,
			Expect: []assertions.Expectation{assertions.FieldEquals("id", 2)}},
		&suite.Case{ID: "by_broken", Template: "post", Params: map[string]string{"id": "@broken"}, ExpectStatus: 200},
	)

	report, err := NewRunner(nil).Run(context.Background(), s)

	require.NoError(t, err)
	assert.True(t, report.Cases[0].Passed)
	assert.Equal(t, server.URL+"/posts/2", report.Cases[0].Request.URL)

	broken := report.Cases[1]
	assert.Equal(t, ReasonMissingParameter, broken.Reason)
	assert.Contains(t, broken.Error.Error(), `path "9.id" not found`)
}

func TestRunner_InvalidSuite(t *testing.T) {
	s := postsSuite("http://127.0.0.1:1")
	s.AddCase(&suite.Case{ID: "a", Template: "nope", ExpectStatus: 200})

	report, err := NewRunner(nil).Run(context.Background(), s)

	assert.Nil(t, report)
	assert.ErrorIs(t, err, suite.ErrInvalidSuite)
}

func TestRunner_Filters(t *testing.T) {
	server, hits := postsServer(t)
	s := postsSuite(server.URL)
	s.AddCase(
		&suite.Case{ID: "list_smoke", Template: "list", ExpectStatus: 200, Tags: []string{"smoke"}},
		&suite.Case{ID: "list_full", Template: "list", ExpectStatus: 200, Tags: []string{"full"}},
		&suite.Case{ID: "get", Template: "post", Params: map[string]string{"id": "1"}, ExpectStatus: 200},
		&suite.Case{ID: "list_skipped", Template: "list", ExpectStatus: 200, Skip: "flaky upstream"},
	)

	t.Run("name", func(t *testing.T) {
		hits.Store(0)
		report, err := NewRunner(&Config{NameFilter: "list*"}).Run(context.Background(), s)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Passed)
		assert.Equal(t, 2, report.Skipped)
		assert.Equal(t, "filtered out", report.Cases[2].SkipReason)
		assert.Equal(t, "flaky upstream", report.Cases[3].SkipReason)
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("tags", func(t *testing.T) {
		report, err := NewRunner(&Config{TagsFilter: []string{"smoke"}}).Run(context.Background(), s)
		require.NoError(t, err)

		assert.True(t, report.Cases[0].Passed)
		assert.True(t, report.Cases[1].Skipped)
		assert.True(t, report.Cases[2].Skipped)
		assert.Equal(t, 1, report.Passed)
	})

	t.Run("selected", func(t *testing.T) {
		var ids []string
		for _, c := range NewRunner(&Config{NameFilter: "list*"}).Selected(s) {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, []string{"list_smoke", "list_full", "list_skipped"}, ids)
		assert.Len(t, NewRunner(nil).Selected(s), 4)
	})
}

func TestRunner_Bail(t *testing.T) {
	server, hits := postsServer(t)
	s := postsSuite(server.URL)
	s.AddCase(
		&suite.Case{ID: "fails", Template: "post", Params: map[string]string{"id": "404"}, ExpectStatus: 200},
		&suite.Case{ID: "never", Template: "list", ExpectStatus: 200},
	)

	report, err := NewRunner(&Config{Bail: true}).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "not run after earlier failure", report.Cases[1].SkipReason)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRunner_FailFast(t *testing.T) {
	server, _ := postsServer(t)
	s := postsSuite(server.URL)
	s.AddCase(&suite.Case{
		ID: "get", Template: "post", Params: map[string]string{"id": "101"}, ExpectStatus: 200,
		Expect: []assertions.Expectation{assertions.FieldEquals("id", 101)},
	})

	all, err := NewRunner(nil).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, all.Cases[0].FailedChecks(), 2)

	fast, err := NewRunner(&Config{FailFast: true}).Run(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, fast.Cases[0].FailedChecks(), 1)
	assert.True(t, fast.Cases[0].Assertions[1].Skipped)
}

func TestRunner_Parallel(t *testing.T) {
	server, hits := postsServer(t)
	s := postsSuite(server.URL)
	for i := 0; i < 20; i++ {
		id := []string{"1", "2", "404"}[i%3]
		status := 200
		if id == "404" {
			status = 404
		}
		s.AddCase(&suite.Case{
			ID:           fmt.Sprintf("get_%d", i),
			Template:     "post",
			Params:       map[string]string{"id": id},
			ExpectStatus: status,
		})
	}

	report, err := NewRunner(&Config{Parallel: true, Concurrency: 4, Rate: 1000}).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, 20, report.Passed)
	assert.Equal(t, int32(20), hits.Load())
	for i, c := range report.Cases {
		assert.Equal(t, fmt.Sprintf("get_%d", i), c.ID, "results keep suite order")
	}
}

func TestRunner_Cancelled(t *testing.T) {
	server, hits := postsServer(t)
	s := postsSuite(server.URL)
	s.AddCase(&suite.Case{ID: "list", Template: "list", ExpectStatus: 200})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewRunner(nil).Run(ctx, s)

	require.NoError(t, err)
	assert.True(t, report.Cases[0].Skipped)
	assert.Equal(t, "run cancelled", report.Cases[0].SkipReason)
	assert.Equal(t, int32(0), hits.Load())
}

func TestRunner_ExecuteRateLimitErrors(t *testing.T) {
	req := apihttp.NewRequest("GET", "http://127.0.0.1:1/posts")

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewRunner(&Config{Rate: 1}).Execute(ctx, req)

		var te *apihttp.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, apihttp.KindConnection, te.Kind)
		assert.False(t, te.Timeout())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("deadline too close", func(t *testing.T) {
		r := NewRunner(&Config{Rate: 0.001})
		require.NoError(t, r.limiter.Wait(context.Background()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := r.Execute(ctx, req)

		var te *apihttp.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, apihttp.KindTimeout, te.Kind)
	})
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestRunner_Logger(t *testing.T) {
	server, _ := postsServer(t)
	s := postsSuite(server.URL)
	s.AddCase(&suite.Case{ID: "list", Template: "list", ExpectStatus: 200})
	logger := &recordingLogger{}

	_, err := NewRunner(nil, WithLogger(logger)).Run(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, []string{"list: GET " + server.URL + "/posts"}, logger.lines)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"exact match", "by_type[micro]", true},
		{"prefix match", "by_type*", true},
		{"suffix match", "*[micro]", true},
		{"contains match", "*type*", true},
		{"no match", "per_page*", false},
		{"empty pattern", "", true},
		{"wildcard", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name+" - "+tt.pattern, func(t *testing.T) {
			result := matchesPattern("by_type[micro]", tt.pattern)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHasAnyTag(t *testing.T) {
	tests := []struct {
		tags     []string
		filters  []string
		expected bool
	}{
		{[]string{"smoke", "api"}, []string{"smoke"}, true},
		{[]string{"smoke", "api"}, []string{"integration"}, false},
		{[]string{"smoke", "api"}, []string{"smoke", "integration"}, true},
		{[]string{}, []string{"smoke"}, false},
		{[]string{"smoke"}, []string{}, false},
	}

	for _, tt := range tests {
		result := hasAnyTag(tt.tags, tt.filters)
		assert.Equal(t, tt.expected, result)
	}
}
