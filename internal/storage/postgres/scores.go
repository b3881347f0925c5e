package postgres

import (
	"context"
	"fmt"

	"github.com/ashita-ai/hyoka/internal/model"
)

// InsertScores writes all scores for one session in a single transaction.
// All-or-nothing: a partially scored session must stay visible to the
// ungraded-session query, and any persisted row would hide it.
func (db *DB) InsertScores(ctx context.Context, sessionID string, scores []model.Score) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin scores tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range scores {
		if _, err := tx.Exec(ctx,
			`INSERT INTO agent_evals (timestamp, session_id, metric_name, score, reason)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.Timestamp, sessionID, string(s.Metric), s.Score, s.Reason,
		); err != nil {
			return fmt.Errorf("postgres: insert score %s/%s: %w", sessionID, s.Metric, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit scores: %w", err)
	}
	return nil
}

// ScoresBySession returns all score rows for a session in insertion order.
// Used by tests and ad hoc inspection; the evaluator itself never reads scores.
func (db *DB) ScoresBySession(ctx context.Context, sessionID string) ([]model.Score, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT timestamp, session_id, metric_name, score, reason
		 FROM agent_evals WHERE session_id = $1 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query scores: %w", err)
	}
	defer rows.Close()

	var scores []model.Score
	for rows.Next() {
		var s model.Score
		var metric string
		if err := rows.Scan(&s.Timestamp, &s.SessionID, &metric, &s.Score, &s.Reason); err != nil {
			return nil, fmt.Errorf("postgres: scan score: %w", err)
		}
		s.Metric = model.Metric(metric)
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
