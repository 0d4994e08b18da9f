// Package history records suite runs in a SQLite database so results can
// be compared across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	suite       TEXT    NOT NULL,
	source      TEXT    NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	p50_us      INTEGER NOT NULL DEFAULT 0,
	p95_us      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS case_results (
	run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	case_id     TEXT    NOT NULL,
	outcome     TEXT    NOT NULL,
	reason      TEXT    NOT NULL DEFAULT '',
	status_code INTEGER NOT NULL DEFAULT 0,
	response_us INTEGER NOT NULL DEFAULT 0,
	message     TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS case_results_case ON case_results(case_id, run_id);
CREATE INDEX IF NOT EXISTS runs_suite ON runs(suite, id);
`

// Case outcomes as stored.
const (
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Run is one recorded suite run.
type Run struct {
	ID        int64
	Suite     string
	Source    string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	P50       time.Duration
	P95       time.Duration
}

// CaseRun is one case outcome within a recorded run.
type CaseRun struct {
	RunID        int64
	Suite        string
	CaseID       string
	StartedAt    time.Time
	Outcome      string
	Reason       string
	StatusCode   int
	ResponseTime time.Duration
	Message      string
}

// Flake is a case that both passed and failed within a window of runs.
type Flake struct {
	CaseID string
	Passed int
	Failed int
}

// Store is a run history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path. The
// sqlite:// and sqlite: prefixes are accepted.
func Open(path string) (*Store, error) {
	dsn := parseConnectionString(path)
	if dsn == "" {
		return nil, fmt.Errorf("empty history database path")
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a suite report and returns the new run id. Cases that were
// filtered out of the run are not stored.
func (s *Store) Record(ctx context.Context, report *runner.SuiteReport) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	startedAt := report.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (suite, source, started_at, duration_us, total, passed, failed, skipped, p50_us, p95_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Name, report.Source, startedAt.UnixNano(), report.Duration.Microseconds(),
		report.Total, report.Passed, report.Failed, report.Skipped,
		report.Latency.P50.Microseconds(), report.Latency.P95.Microseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO case_results (run_id, case_id, outcome, reason, status_code, response_us, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("recording cases: %w", err)
	}
	defer stmt.Close()

	for _, c := range report.Cases {
		if c.Skipped && c.SkipReason == runner.SkipFiltered {
			continue
		}
		if _, err := stmt.ExecContext(ctx, runID, c.ID, outcome(c), string(c.Reason),
			c.StatusCode, c.ResponseTime.Microseconds(), c.Message()); err != nil {
			return 0, fmt.Errorf("recording case %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// Recent returns up to limit runs, newest first. An empty suite name
// matches every suite.
func (s *Store) Recent(ctx context.Context, suite string, limit int) ([]Run, error) {
	query := `SELECT id, suite, source, started_at, duration_us, total, passed, failed, skipped, p50_us, p95_us
		FROM runs WHERE (? = '' OR suite = ?) ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, suite, suite, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                   Run
			startedAt, duration int64
			p50, p95            int64
		)
		if err := rows.Scan(&r.ID, &r.Suite, &r.Source, &startedAt, &duration,
			&r.Total, &r.Passed, &r.Failed, &r.Skipped, &p50, &p95); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		r.Duration = time.Duration(duration) * time.Microsecond
		r.P50 = time.Duration(p50) * time.Microsecond
		r.P95 = time.Duration(p95) * time.Microsecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// CaseHistory returns the last limit outcomes of one case, newest first.
func (s *Store) CaseHistory(ctx context.Context, suite, caseID string, limit int) ([]CaseRun, error) {
	query := `SELECT c.run_id, r.suite, c.case_id, r.started_at, c.outcome, c.reason, c.status_code, c.response_us, c.message
		FROM case_results c JOIN runs r ON r.id = c.run_id
		WHERE (? = '' OR r.suite = ?) AND c.case_id = ?
		ORDER BY c.run_id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, suite, suite, caseID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []CaseRun
	for rows.Next() {
		var (
			c                   CaseRun
			startedAt, response int64
		)
		if err := rows.Scan(&c.RunID, &c.Suite, &c.CaseID, &startedAt, &c.Outcome,
			&c.Reason, &c.StatusCode, &response, &c.Message); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.StartedAt = time.Unix(0, startedAt)
		c.ResponseTime = time.Duration(response) * time.Microsecond
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Flaky lists cases of a suite that both passed and failed within its last
// window runs.
func (s *Store) Flaky(ctx context.Context, suite string, window int) ([]Flake, error) {
	query := `SELECT c.case_id,
			SUM(CASE WHEN c.outcome = 'passed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN c.outcome = 'failed' THEN 1 ELSE 0 END)
		FROM case_results c
		WHERE c.run_id IN (SELECT id FROM runs WHERE suite = ? ORDER BY id DESC LIMIT ?)
		GROUP BY c.case_id
		HAVING SUM(CASE WHEN c.outcome = 'passed' THEN 1 ELSE 0 END) > 0
		   AND SUM(CASE WHEN c.outcome = 'failed' THEN 1 ELSE 0 END) > 0
		ORDER BY c.case_id`
	rows, err := s.db.QueryContext(ctx, query, suite, normalizeLimit(window))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var flakes []Flake
	for rows.Next() {
		var f Flake
		if err := rows.Scan(&f.CaseID, &f.Passed, &f.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		flakes = append(flakes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return flakes, nil
}

// Prune deletes all but the newest keep runs of every suite and returns
// the number of runs removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY suite ORDER BY id DESC) AS n FROM runs
		) WHERE n > ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune failed: %w", err)
	}
	return res.RowsAffected()
}

func outcome(c *runner.CaseResult) string {
	switch {
	case c.Skipped:
		return OutcomeSkipped
	case c.Passed:
		return OutcomePassed
	default:
		return OutcomeFailed
	}
}

const defaultLimit = 20

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

// parseConnectionString strips the sqlite:// or sqlite: prefix.
func parseConnectionString(connStr string) string {
	connStr = strings.TrimSpace(connStr)
	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	return strings.TrimPrefix(connStr, "sqlite:")
}
