package targets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	apihttp "github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/abdul-hamid-achik/apicheck/packages/twins"
	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twinServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(twins.All())
	t.Cleanup(server.Close)
	return server
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"brewery", "dogs", "jsonplaceholder"}, Names())

	target, ok := Lookup("dogs")
	require.True(t, ok)
	assert.Equal(t, DogsBaseURL, target.BaseURL)
	assert.Contains(t, target.Suite("").Templates["list_breeds"].URL, DogsBaseURL)

	_, ok = Lookup("weather")
	assert.False(t, ok)
}

func TestSuitesAreValid(t *testing.T) {
	for _, target := range All() {
		t.Run(target.Name, func(t *testing.T) {
			s := target.Suite("")
			require.NoError(t, s.Validate())
			assert.NotEmpty(t, s.Cases)
		})
	}
	require.NoError(t, Smoke("", 0).Validate())
}

func TestCaseCatalog(t *testing.T) {
	ids := func(name string) []string {
		target, _ := Lookup(name)
		var out []string
		for _, c := range target.Suite("").Cases {
			out = append(out, c.ID)
		}
		return out
	}

	brewery := ids("brewery")
	assert.Len(t, brewery, 2+10+1+5+1)
	assert.Contains(t, brewery, "by_type[micro]")
	assert.Contains(t, brewery, "by_type[invalid_type_name]")
	assert.Contains(t, brewery, "per_page[500]")
	assert.Contains(t, brewery, "per_page[default]")

	dogs := ids("dogs")
	assert.Len(t, dogs, 1+3+3+1+3+3)
	assert.Contains(t, dogs, "sub_breed_images[hound-afghan]")
	assert.Contains(t, dogs, "random_images[100]")

	posts := ids("jsonplaceholder")
	assert.Equal(t, []string{
		"list_posts",
		"get_post[id=1]", "get_post[id=20]", "get_post[id=100]",
		"get_post[id=101]", "get_post[id=200]",
		"create_post", "update_post[id=5]",
	}, posts)
}

func TestTargetsAgainstTwins(t *testing.T) {
	server := twinServer(t)
	bases := map[string]string{
		"brewery":         server.URL + "/v1",
		"dogs":            server.URL + "/api",
		"jsonplaceholder": server.URL,
	}

	for _, target := range All() {
		t.Run(target.Name, func(t *testing.T) {
			report, err := runner.NewRunner(nil).Run(context.Background(), target.Suite(bases[target.Name]))
			require.NoError(t, err)

			for _, c := range report.Failures() {
				t.Errorf("%s: %s: %s", c.ID, c.Reason, c.Message())
			}
			assert.Equal(t, report.Total, report.Passed)
		})
	}
}

func TestTargetsDetectContractBreaks(t *testing.T) {
	// Every brewery page is empty and every post is missing its title.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/posts/1" {
			_, _ = w.Write([]byte(`{"id": 1, "userId": 1, "body": "b"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	report, err := runner.NewRunner(&runner.Config{NameFilter: "per_page[100]"}).Run(context.Background(), Brewery(server.URL))
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	failed := report.Failures()[0].FailedChecks()
	require.Len(t, failed, 1)
	assert.Equal(t, "length", failed[0].Operator)
	assert.Equal(t, 0, failed[0].Actual)

	report, err = runner.NewRunner(&runner.Config{NameFilter: "get_post[id=1]"}).Run(context.Background(), Placeholder(server.URL))
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	c := report.Failures()[0]
	require.NotNil(t, c.Validation)
	assert.Contains(t, c.Validation.Summary(), "title")
}

func TestTypedRecords(t *testing.T) {
	server := twinServer(t)
	client := apihttp.NewClient()

	resp, err := client.Get(context.Background(), server.URL+"/v1/breweries?by_type=nano", nil)
	require.NoError(t, err)
	result := schema.Validate(BrewerySchema, resp.Body, schema.WithStrictAll(true))
	require.True(t, result.Valid, result.Summary())

	breweries, err := schema.Decode[BreweryRecord](result)
	require.NoError(t, err)
	require.NotEmpty(t, breweries)
	for _, b := range breweries {
		assert.Equal(t, "nano", b.BreweryType)
		assert.NotEmpty(t, b.ID)
	}

	resp, err = client.Get(context.Background(), server.URL+"/posts/20", nil)
	require.NoError(t, err)
	posts, err := schema.Decode[Post](schema.Validate(PostSchema, resp.Body))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].ID)
	assert.Equal(t, 20, *posts[0].ID)
}

func TestSmoke(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusTeapot), func(server *httptest.Server) {
		pass, err := runner.NewRunner(nil).Run(context.Background(), Smoke(server.URL, http.StatusTeapot))
		require.NoError(t, err)
		assert.True(t, pass.OK())

		fail, err := runner.NewRunner(nil).Run(context.Background(), Smoke(server.URL, 0))
		require.NoError(t, err)
		assert.Equal(t, 1, fail.Failed)
		assert.Equal(t, runner.ReasonAssertionFailure, fail.Cases[0].Reason)
	})

	s := Smoke("", 0)
	assert.Equal(t, SmokeURL, s.Templates["smoke"].URL)
	assert.Equal(t, SmokeStatus, s.Cases[0].ExpectStatus)
}

func TestSmoke_URLWithBraces(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("q")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := Smoke(server.URL+"/search?q={json}", 0)
	require.NoError(t, s.Templates["smoke"].Validate())

	report, err := runner.NewRunner(nil).Run(context.Background(), s)

	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, "{json}", got)
}
