package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tests (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    status TEXT NOT NULL DEFAULT 'draft',
    variants TEXT NOT NULL,
    primary_metric TEXT NOT NULL,
    secondary_metrics TEXT,
    significance_level REAL NOT NULL,
    minimum_sample_size INTEGER NOT NULL,
    sample_source TEXT NOT NULL,
    target_audience TEXT,
    start_date INTEGER,
    end_date INTEGER,
    results TEXT,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    created_by TEXT,
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_tests_campaign ON tests(campaign_id);
CREATE INDEX IF NOT EXISTS idx_tests_status ON tests(status);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    test_id TEXT NOT NULL,
    variant_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    value REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (test_id) REFERENCES tests(id)
);

CREATE INDEX IF NOT EXISTS idx_events_test ON events(test_id);
CREATE INDEX IF NOT EXISTS idx_events_test_variant ON events(test_id, variant_id, event_type);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTest(ctx context.Context, test *Test) error {
	variantsJSON, err := json.Marshal(test.Variants)
	if err != nil {
		return fmt.Errorf("failed to marshal variants: %w", err)
	}

	var secondaryJSON []byte
	if len(test.SecondaryMetrics) > 0 {
		secondaryJSON, err = json.Marshal(test.SecondaryMetrics)
		if err != nil {
			return fmt.Errorf("failed to marshal secondary metrics: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tests (id, campaign_id, name, description, status, variants,
		    primary_metric, secondary_metrics, significance_level, minimum_sample_size,
		    sample_source, target_audience, created_at, created_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		test.ID, test.CampaignID, test.Name, test.Description, string(test.Status),
		string(variantsJSON), string(test.PrimaryMetric), nullableString(secondaryJSON),
		test.SignificanceLevel, test.MinimumSampleSize, string(test.SampleSource),
		test.TargetAudience, test.CreatedAt.Unix(), test.CreatedBy, test.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert test: %w", err)
	}

	return nil
}

const testColumns = `id, campaign_id, name, description, status, variants,
    primary_metric, secondary_metrics, significance_level, minimum_sample_size,
    sample_source, target_audience, start_date, end_date, results,
    created_at, created_by, updated_at`

func (s *SQLiteStore) GetTest(ctx context.Context, id string) (*Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = ?`, id,
	)

	test, err := scanTest(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	return test, nil
}

func (s *SQLiteStore) ListTests(ctx context.Context, campaignID string) ([]*Test, error) {
	query := `SELECT ` + testColumns + ` FROM tests ORDER BY created_at DESC`
	args := []any{}
	if campaignID != "" {
		query = `SELECT ` + testColumns + ` FROM tests WHERE campaign_id = ? ORDER BY created_at DESC`
		args = append(args, campaignID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	var tests []*Test
	for rows.Next() {
		test, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test: %w", err)
		}
		tests = append(tests, test)
	}

	return tests, rows.Err()
}

func (s *SQLiteStore) UpdateTest(ctx context.Context, test *Test) error {
	variantsJSON, err := json.Marshal(test.Variants)
	if err != nil {
		return fmt.Errorf("failed to marshal variants: %w", err)
	}

	var resultsJSON []byte
	if test.Results != nil {
		resultsJSON, err = json.Marshal(test.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tests SET status = ?, variants = ?, start_date = ?, end_date = ?,
		    results = ?, updated_at = ?
		 WHERE id = ?`,
		string(test.Status), string(variantsJSON),
		nullableTime(test.StartDate), nullableTime(test.EndDate),
		nullableString(resultsJSON), time.Now().Unix(), test.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) DeleteTest(ctx context.Context, id string) error {
	// First delete related events
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE test_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev *Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (test_id, variant_id, event_type, value, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.TestID, ev.VariantID, string(ev.Type), ev.Value, ev.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Events(ctx context.Context, testID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, test_id, variant_id, event_type, value, created_at
		 FROM events WHERE test_id = ? ORDER BY id`,
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var eventType string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.TestID, &e.VariantID, &eventType, &e.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = EventType(eventType)
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (s *SQLiteStore) TotalsByVariant(ctx context.Context, testID string) ([]VariantTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			variant_id,
			COUNT(CASE WHEN event_type = 'impression' THEN 1 END) as impressions,
			COUNT(CASE WHEN event_type = 'click' THEN 1 END) as clicks,
			COUNT(CASE WHEN event_type = 'conversion' THEN 1 END) as conversions,
			COALESCE(SUM(CASE WHEN event_type IN ('conversion', 'revenue') THEN value ELSE 0 END), 0) as revenue,
			COALESCE(SUM(CASE WHEN event_type = 'spend' THEN value ELSE 0 END), 0) as cost
		FROM events
		WHERE test_id = ?
		GROUP BY variant_id
		ORDER BY variant_id
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to get variant totals: %w", err)
	}
	defer rows.Close()

	var totals []VariantTotals
	for rows.Next() {
		var t VariantTotals
		if err := rows.Scan(&t.VariantID, &t.Impressions, &t.Clicks, &t.Conversions, &t.Revenue, &t.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTest(row scanner) (*Test, error) {
	var test Test
	var description, targetAudience, createdBy sql.NullString
	var variantsJSON, status, primaryMetric, sampleSource string
	var secondaryJSON, resultsJSON sql.NullString
	var startDate, endDate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&test.ID, &test.CampaignID, &test.Name, &description, &status,
		&variantsJSON, &primaryMetric, &secondaryJSON, &test.SignificanceLevel,
		&test.MinimumSampleSize, &sampleSource, &targetAudience,
		&startDate, &endDate, &resultsJSON, &createdAt, &createdBy, &updatedAt)
	if err != nil {
		return nil, err
	}

	test.Description = description.String
	test.TargetAudience = targetAudience.String
	test.CreatedBy = createdBy.String
	test.Status = TestStatus(status)
	test.PrimaryMetric = Metric(primaryMetric)
	test.SampleSource = SampleSource(sampleSource)

	if err := json.Unmarshal([]byte(variantsJSON), &test.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}

	if secondaryJSON.Valid && secondaryJSON.String != "" {
		if err := json.Unmarshal([]byte(secondaryJSON.String), &test.SecondaryMetrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal secondary metrics: %w", err)
		}
	}

	if resultsJSON.Valid && resultsJSON.String != "" {
		test.Results = &TestResult{}
		if err := json.Unmarshal([]byte(resultsJSON.String), test.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}

	if startDate.Valid {
		t := time.Unix(startDate.Int64, 0)
		test.StartDate = &t
	}
	if endDate.Valid {
		t := time.Unix(endDate.Int64, 0)
		test.EndDate = &t
	}

	test.CreatedAt = time.Unix(createdAt, 0)
	test.UpdatedAt = time.Unix(updatedAt, 0)

	return &test, nil
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
