// Package provenance keeps a SQLite diagnostics trail: every observation
// decision and every committed belief. The live belief itself stays in
// memory; this log exists so a run can be inspected after the fact.
package provenance

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelworks/steptrace/internal/engine"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	observation_id TEXT NOT NULL,
	task_id        TEXT,
	step_index     INTEGER,
	level          TEXT NOT NULL,
	similarity     REAL NOT NULL,
	action         TEXT NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS belief_archive (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    TEXT NOT NULL,
	step_index INTEGER NOT NULL,
	title      TEXT,
	level      TEXT NOT NULL,
	similarity REAL NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_log_created ON decision_log(created_at);
`

// #endregion schema

// #region log-struct

// Log is the SQLite-backed decision trail.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the diagnostics database and runs migrations.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("provenance: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("provenance: pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("provenance: migrate: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// #endregion log-struct

// #region record

// RecordDecision appends one observation decision; committed updates are also
// archived as belief rows. Implements the engine's Recorder.
func (l *Log) RecordDecision(rec engine.DecisionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := l.db.Exec(
		`INSERT INTO decision_log (observation_id, task_id, step_index, level, similarity, action, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ObservationID,
		nullIfEmpty(rec.TaskID),
		rec.StepIndex,
		string(rec.Level),
		rec.Similarity,
		string(rec.Action),
		nullIfEmpty(rec.Reason),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("provenance: log decision: %w", err)
	}

	if rec.Action == "update" {
		_, err = l.db.Exec(
			`INSERT INTO belief_archive (task_id, step_index, title, level, similarity, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.TaskID,
			rec.StepIndex,
			nil,
			string(rec.Level),
			rec.Similarity,
			createdAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("provenance: archive belief: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion record

// #region queries

// Decision is one row of the decision log.
type Decision struct {
	ObservationID string
	TaskID        string
	StepIndex     int
	Level         string
	Similarity    float32
	Action        string
	Reason        string
	CreatedAt     time.Time
}

// RecentDecisions returns the newest decisions, most recent first.
func (l *Log) RecentDecisions(limit int) ([]Decision, error) {
	rows, err := l.db.Query(
		`SELECT observation_id, task_id, step_index, level, similarity, action, reason, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("provenance: list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var taskID, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&d.ObservationID, &taskID, &d.StepIndex, &d.Level,
			&d.Similarity, &d.Action, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("provenance: scan decision: %w", err)
		}
		d.TaskID = taskID.String
		d.Reason = reason.String
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// ActionCounts returns how many decisions each action accumulated.
func (l *Log) ActionCounts() (map[string]int, error) {
	rows, err := l.db.Query(`SELECT action, COUNT(*) FROM decision_log GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("provenance: count actions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("provenance: scan count: %w", err)
		}
		counts[action] = n
	}
	return counts, rows.Err()
}

// #endregion queries
