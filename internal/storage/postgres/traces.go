package postgres

import (
	"context"
	"fmt"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/storage"
)

// AppendEvent inserts a single trace event. The serial seq column records
// insertion order, which breaks timestamp ties during reconstruction.
func (db *DB) AppendEvent(ctx context.Context, event model.Event) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO agent_traces (timestamp, session_id, event_type, content, tool_name, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.Timestamp, event.SessionID, string(event.Type), event.Content,
		event.ToolName, event.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event: %w", err)
	}
	return nil
}

// UngradedSessions returns up to limit sessions that have trace events but no
// score rows, oldest first. This anti-join is the mechanism that makes
// repeated evaluator runs incremental: one score row is enough to hide a
// session from all future runs.
func (db *DB) UngradedSessions(ctx context.Context, limit int) ([]storage.SessionTrace, error) {
	rows, err := db.pool.Query(ctx, `
		WITH pending AS (
			SELECT session_id, min(seq) AS first_seq
			FROM agent_traces
			WHERE session_id NOT IN (SELECT session_id FROM agent_evals)
			GROUP BY session_id
			ORDER BY first_seq
			LIMIT $1
		)
		SELECT t.session_id, t.timestamp, t.event_type, t.content, t.tool_name, t.latency_ms
		FROM agent_traces t
		JOIN pending p USING (session_id)
		ORDER BY p.first_seq, t.timestamp, t.seq`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query ungraded sessions: %w", err)
	}
	defer rows.Close()

	var (
		sessions []storage.SessionTrace
		index    = map[string]int{}
	)
	for rows.Next() {
		var e model.Event
		var eventType string
		if err := rows.Scan(&e.SessionID, &e.Timestamp, &eventType, &e.Content, &e.ToolName, &e.LatencyMS); err != nil {
			return nil, fmt.Errorf("postgres: scan trace event: %w", err)
		}
		e.Type = model.EventType(eventType)

		i, ok := index[e.SessionID]
		if !ok {
			i = len(sessions)
			index[e.SessionID] = i
			sessions = append(sessions, storage.SessionTrace{SessionID: e.SessionID})
		}
		sessions[i].Events = append(sessions[i].Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read ungraded sessions: %w", err)
	}
	return sessions, nil
}
