package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS inbound_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT,
	trace_id TEXT,
	org_id TEXT NOT NULL,
	team_id TEXT NOT NULL,
	channel TEXT,
	user_id TEXT,
	content TEXT,
	slack_ts TEXT,
	received_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inbound_events_team ON inbound_events(team_id, received_at);
CREATE INDEX IF NOT EXISTS idx_inbound_events_trace ON inbound_events(trace_id);
`

// Store persists recorded events in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the history database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Insert writes one entry.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inbound_events (event_id, trace_id, org_id, team_id, channel, user_id, content, slack_ts, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.TraceID, e.OrgID, e.TeamID, e.Channel, e.UserID, e.Text, e.TS, e.ReceivedAt,
	)
	return err
}

// RecentByTeam returns up to limit entries for one team, newest first.
func (s *Store) RecentByTeam(ctx context.Context, teamID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, trace_id, org_id, team_id, channel, user_id, content, slack_ts, received_at
		FROM inbound_events WHERE team_id = ?
		ORDER BY received_at DESC LIMIT ?`, teamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var receivedAt time.Time
		if err := rows.Scan(&e.EventID, &e.TraceID, &e.OrgID, &e.TeamID, &e.Channel, &e.UserID, &e.Text, &e.TS, &receivedAt); err != nil {
			return nil, err
		}
		e.ReceivedAt = receivedAt
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
