package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/assertions"
	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func report(name string, started time.Time, passing bool) *runner.SuiteReport {
	flaky := &runner.CaseResult{ID: "get_post[id=1]", Passed: true, StatusCode: 200, ResponseTime: 12 * time.Millisecond}
	if !passing {
		flaky = &runner.CaseResult{
			ID:         "get_post[id=1]",
			Reason:     runner.ReasonAssertionFailure,
			StatusCode: 500,
			Assertions: []*assertions.Result{
				{Description: "status == 200", Message: "expected 200, got 500", Expected: 200, Actual: 500},
			},
		}
	}
	r := &runner.SuiteReport{
		Name:      name,
		Source:    name + ".yaml",
		StartedAt: started,
		Duration:  250 * time.Millisecond,
		Latency:   runner.Latency{Count: 2, P50: 12 * time.Millisecond, P95: 30 * time.Millisecond},
		Cases: []*runner.CaseResult{
			flaky,
			{ID: "list_posts", Reason: runner.ReasonTransportFailure, Error: errors.New("connection refused")},
			{ID: "update_post[id=5]", Skipped: true, SkipReason: "disabled"},
			{ID: "create_post", Skipped: true, SkipReason: runner.SkipFiltered},
		},
	}
	r.Total = len(r.Cases)
	for _, c := range r.Cases {
		switch {
		case c.Skipped:
			r.Skipped++
		case c.Passed:
			r.Passed++
		default:
			r.Failed++
		}
	}
	return r
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{
		filepath.Join(dir, "plain.db"),
		"sqlite:" + filepath.Join(dir, "colon.db"),
		"sqlite://" + filepath.Join(dir, "slashes.db"),
	} {
		store, err := Open(path)
		require.NoError(t, err, path)
		assert.Equal(t, path, store.Path())
		require.NoError(t, store.Close())
	}

	_, err := Open("  ")
	require.Error(t, err)

	// Reopening keeps existing rows.
	path := filepath.Join(dir, "plain.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Record(context.Background(), report("posts", time.Now(), true))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.Record(ctx, report("posts", started, true))
	require.NoError(t, err)
	second, err := store.Record(ctx, report("posts", started.Add(time.Hour), false))
	require.NoError(t, err)
	_, err = store.Record(ctx, report("dogs", started, true))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	runs, err := store.Recent(ctx, "posts", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.True(t, runs[0].StartedAt.Equal(started.Add(time.Hour)))
	assert.Equal(t, "posts.yaml", runs[0].Source)
	assert.Equal(t, 4, runs[0].Total)
	assert.Equal(t, 2, runs[0].Failed)
	assert.Equal(t, 2, runs[0].Skipped)
	assert.Equal(t, 250*time.Millisecond, runs[0].Duration)
	assert.Equal(t, 30*time.Millisecond, runs[0].P95)

	all, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "dogs", limited[0].Suite)
}

func TestCaseHistory(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Record(ctx, report("posts", started, true))
	require.NoError(t, err)
	_, err = store.Record(ctx, report("posts", started.Add(time.Minute), false))
	require.NoError(t, err)

	runs, err := store.CaseHistory(ctx, "posts", "get_post[id=1]", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, OutcomeFailed, runs[0].Outcome)
	assert.Equal(t, "ASSERTION_FAILURE", runs[0].Reason)
	assert.Equal(t, 500, runs[0].StatusCode)
	assert.Equal(t, "status == 200: expected 200, got 500", runs[0].Message)
	assert.Equal(t, OutcomePassed, runs[1].Outcome)
	assert.Equal(t, 12*time.Millisecond, runs[1].ResponseTime)

	transport, err := store.CaseHistory(ctx, "", "list_posts", 1)
	require.NoError(t, err)
	require.Len(t, transport, 1)
	assert.Equal(t, "connection refused", transport[0].Message)

	skipped, err := store.CaseHistory(ctx, "posts", "update_post[id=5]", 0)
	require.NoError(t, err)
	require.Len(t, skipped, 2)
	assert.Equal(t, OutcomeSkipped, skipped[0].Outcome)

	filtered, err := store.CaseHistory(ctx, "posts", "create_post", 0)
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestFlaky(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, passing := range []bool{true, false, true} {
		_, err := store.Record(ctx, report("posts", now.Add(time.Duration(i)*time.Minute), passing))
		require.NoError(t, err)
	}

	flakes, err := store.Flaky(ctx, "posts", 10)
	require.NoError(t, err)
	require.Len(t, flakes, 1)
	assert.Equal(t, Flake{CaseID: "get_post[id=1]", Passed: 2, Failed: 1}, flakes[0])

	// The last run alone is stable.
	flakes, err = store.Flaky(ctx, "posts", 1)
	require.NoError(t, err)
	assert.Empty(t, flakes)
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := store.Record(ctx, report("posts", now, true))
		require.NoError(t, err)
	}
	_, err := store.Record(ctx, report("dogs", now, true))
	require.NoError(t, err)

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err := store.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	cases, err := store.CaseHistory(ctx, "posts", "list_posts", 0)
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}
