// Package sqlite provides a single-file storage backend for traces and
// scores, letting the agent and evaluator run with no infrastructure.
//
// Timestamps are stored as fixed-width RFC 3339 text (nine fractional
// digits, always UTC) so SQLite's lexicographic TEXT comparison orders
// rows chronologically; the rowid-backed seq column breaks exact ties by
// insertion order, matching the Postgres backend's semantics.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/storage"
)

// timeLayout pads fractional seconds to nine digits. RFC3339Nano trims
// trailing zeros, which breaks TEXT ordering: "…00.3Z" sorts after
// "…00.35Z" because 'Z' > '5'. Fixed width keeps ORDER BY timestamp
// chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a database/sql handle over a local SQLite file. It implements
// storage.Store.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database file and applies the embedded schema.
func New(ctx context.Context, path string, migrationsFS fs.FS, logger *slog.Logger) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// SQLite allows one writer at a time; serializing through a single
	// connection avoids SQLITE_BUSY under concurrent appends.
	handle.SetMaxOpenConns(1)

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	db := &DB{db: handle, logger: logger}
	if err := db.runMigrations(ctx, migrationsFS); err != nil {
		_ = handle.Close()
		return nil, err
	}
	return db, nil
}

// runMigrations executes the embedded schema files in lexical order. The
// schema is idempotent (IF NOT EXISTS throughout), so no tracking table is
// needed for this local backend.
func (db *DB) runMigrations(ctx context.Context, migrationsFS fs.FS) error {
	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("sqlite: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, entry.Name())
		if err != nil {
			return fmt.Errorf("sqlite: read migration %s: %w", entry.Name(), err)
		}
		if _, err := db.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("sqlite: execute migration %s: %w", entry.Name(), err)
		}
		db.logger.Debug("applied schema file", "file", entry.Name())
	}
	return nil
}

// AppendEvent inserts a single trace event.
func (db *DB) AppendEvent(ctx context.Context, event model.Event) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO agent_traces (timestamp, session_id, event_type, content, tool_name, latency_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(timeLayout), event.SessionID,
		string(event.Type), event.Content, event.ToolName, event.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append event: %w", err)
	}
	return nil
}

// UngradedSessions returns up to limit sessions with trace events but no
// score rows, oldest first. Same anti-join semantics as the Postgres backend.
func (db *DB) UngradedSessions(ctx context.Context, limit int) ([]storage.SessionTrace, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT t.session_id, t.timestamp, t.event_type, t.content, t.tool_name, t.latency_ms
		FROM agent_traces t
		JOIN (
			SELECT session_id, min(seq) AS first_seq
			FROM agent_traces
			WHERE session_id NOT IN (SELECT session_id FROM agent_evals)
			GROUP BY session_id
			ORDER BY first_seq
			LIMIT ?
		) p ON p.session_id = t.session_id
		ORDER BY p.first_seq, t.timestamp, t.seq`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query ungraded sessions: %w", err)
	}
	defer rows.Close()

	var (
		sessions []storage.SessionTrace
		index    = map[string]int{}
	)
	for rows.Next() {
		var (
			e         model.Event
			eventType string
			ts        string
		)
		if err := rows.Scan(&e.SessionID, &ts, &eventType, &e.Content, &e.ToolName, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("sqlite: scan trace event: %w", err)
		}
		e.Type = model.EventType(eventType)
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp %q: %w", ts, err)
		}

		i, ok := index[e.SessionID]
		if !ok {
			i = len(sessions)
			index[e.SessionID] = i
			sessions = append(sessions, storage.SessionTrace{SessionID: e.SessionID})
		}
		sessions[i].Events = append(sessions[i].Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read ungraded sessions: %w", err)
	}
	return sessions, nil
}

// InsertScores writes all scores for one session in a single transaction.
func (db *DB) InsertScores(ctx context.Context, sessionID string, scores []model.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin scores tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agent_evals (timestamp, session_id, metric_name, score, reason)
			 VALUES (?, ?, ?, ?, ?)`,
			s.Timestamp.UTC().Format(timeLayout), sessionID,
			string(s.Metric), s.Score, s.Reason,
		); err != nil {
			return fmt.Errorf("sqlite: insert score %s/%s: %w", sessionID, s.Metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit scores: %w", err)
	}
	return nil
}

// ScoresBySession returns all score rows for a session in insertion order.
func (db *DB) ScoresBySession(ctx context.Context, sessionID string) ([]model.Score, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT timestamp, session_id, metric_name, score, reason
		 FROM agent_evals WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query scores: %w", err)
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		var (
			s      model.Score
			metric string
			ts     string
		)
		if err := rows.Scan(&ts, &s.SessionID, &metric, &s.Score, &s.Reason); err != nil {
			return nil, fmt.Errorf("sqlite: scan score: %w", err)
		}
		s.Metric = model.Metric(metric)
		s.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse timestamp %q: %w", ts, err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// Ping checks that the database file is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Close closes the database handle.
func (db *DB) Close(_ context.Context) error {
	return db.db.Close()
}
