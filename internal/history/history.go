// Package history is the durable occurrence and feedback store backed
// by SQLite. Occurrence counts seed severity escalation across process
// restarts; feedback tracks per-pattern false-positive rates.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mattepiu/drift/internal/pattern"
)

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// migrations is the ordered migration list. Never modify an existing
// migration, only append.
var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func migrateV0(tx *sql.Tx) error {
	schema := `
-- One row per produced violation
CREATE TABLE IF NOT EXISTS occurrences (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pattern_id TEXT NOT NULL,
    category TEXT NOT NULL,
    file TEXT NOT NULL,
    line INTEGER NOT NULL,
    col INTEGER NOT NULL DEFAULT 0,
    severity TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_occurrences_pattern ON occurrences(pattern_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_category ON occurrences(category);
CREATE INDEX IF NOT EXISTS idx_occurrences_recorded ON occurrences(recorded_at);

-- Maintainer verdicts on surfaced violations
CREATE TABLE IF NOT EXISTS feedback (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pattern_id TEXT NOT NULL,
    verdict TEXT NOT NULL CHECK (verdict IN ('confirmed', 'fixed', 'dismissed', 'false_positive')),
    comment TEXT DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_pattern ON feedback(pattern_id);
`
	_, err := tx.ExecContext(context.Background(), schema)
	return err
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initDB(db *sql.DB) error {
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	var current int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	for i := current + 1; i < len(migrations); i++ {
		if err := runMigration(db, i); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := migrations[version](tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Occurrence is one produced violation.
type Occurrence struct {
	PatternID  string
	Category   pattern.Category
	File       string
	Line       int
	Column     int
	Severity   pattern.Severity
	RecordedAt time.Time
}

// RecordOccurrence appends one occurrence row.
func (s *Store) RecordOccurrence(ctx context.Context, o Occurrence) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO occurrences (pattern_id, category, file, line, col, severity, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.PatternID, string(o.Category), o.File, o.Line, o.Column, string(o.Severity),
		o.RecordedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record occurrence: %w", err)
	}
	return nil
}

// Counts returns occurrence totals per pattern and per category, the
// shape consumed by the severity manager's SeedCounts.
func (s *Store) Counts(ctx context.Context) (map[string]int, map[pattern.Category]int, error) {
	patterns := make(map[string]int)
	rows, err := s.db.QueryContext(ctx, "SELECT pattern_id, COUNT(*) FROM occurrences GROUP BY pattern_id")
	if err != nil {
		return nil, nil, fmt.Errorf("count by pattern: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, nil, err
		}
		patterns[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	categories := make(map[pattern.Category]int)
	catRows, err := s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM occurrences GROUP BY category")
	if err != nil {
		return nil, nil, fmt.Errorf("count by category: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat string
		var n int
		if err := catRows.Scan(&cat, &n); err != nil {
			return nil, nil, err
		}
		categories[pattern.Category(cat)] = n
	}
	return patterns, categories, catRows.Err()
}

// PruneBefore deletes occurrences recorded before the cutoff and
// returns the number removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM occurrences WHERE recorded_at < ?",
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune occurrences: %w", err)
	}
	return res.RowsAffected()
}

// Verdict values for feedback rows.
const (
	VerdictConfirmed     = "confirmed"
	VerdictFixed         = "fixed"
	VerdictDismissed     = "dismissed"
	VerdictFalsePositive = "false_positive"
)

func validVerdict(v string) bool {
	switch v {
	case VerdictConfirmed, VerdictFixed, VerdictDismissed, VerdictFalsePositive:
		return true
	}
	return false
}

// RecordFeedback appends a maintainer verdict for a pattern's
// violations.
func (s *Store) RecordFeedback(ctx context.Context, patternID, verdict, comment string) error {
	if !validVerdict(verdict) {
		return fmt.Errorf("record feedback: unknown verdict %q", verdict)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO feedback (pattern_id, verdict, comment, created_at) VALUES (?, ?, ?, ?)",
		patternID, verdict, comment, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// FalsePositiveRate returns the share of false_positive verdicts for a
// pattern and the total feedback count.
func (s *Store) FalsePositiveRate(ctx context.Context, patternID string) (float64, int, error) {
	var total, fp int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN verdict = 'false_positive' THEN 1 ELSE 0 END), 0)
		 FROM feedback WHERE pattern_id = ?`, patternID)
	if err := row.Scan(&total, &fp); err != nil {
		return 0, 0, fmt.Errorf("false positive rate: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(fp) / float64(total), total, nil
}

// NoisyPattern identifies a pattern whose false-positive rate crossed
// the alert threshold.
type NoisyPattern struct {
	PatternID string  `json:"patternId"`
	Rate      float64 `json:"rate"`
	Feedback  int     `json:"feedback"`
}

// NoisyPatterns lists patterns with at least minFeedback verdicts whose
// false-positive rate meets or exceeds threshold, noisiest first.
func (s *Store) NoisyPatterns(ctx context.Context, minFeedback int, threshold float64) ([]NoisyPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern_id,
		        CAST(SUM(CASE WHEN verdict = 'false_positive' THEN 1 ELSE 0 END) AS REAL) / COUNT(*) AS rate,
		        COUNT(*) AS total
		 FROM feedback
		 GROUP BY pattern_id
		 HAVING total >= ? AND rate >= ?
		 ORDER BY rate DESC`, minFeedback, threshold)
	if err != nil {
		return nil, fmt.Errorf("noisy patterns: %w", err)
	}
	defer rows.Close()
	var out []NoisyPattern
	for rows.Next() {
		var np NoisyPattern
		if err := rows.Scan(&np.PatternID, &np.Rate, &np.Feedback); err != nil {
			return nil, err
		}
		out = append(out, np)
	}
	return out, rows.Err()
}
