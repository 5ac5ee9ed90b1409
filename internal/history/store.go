// Package history provides SQLite-based persistence for agent
// conversations and completed pipeline runs. The store doubles as the
// agents' history sink, so writes must stay cheap and non-fatal.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"devcrew/pkg/models"
)

// Store wraps an SQLite database holding conversation history and the
// run archive.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens the store at the given path, creating parent directories.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Conversations},
		{2, migrationV2Runs},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Conversations = `
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	day TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	message TEXT NOT NULL,
	response TEXT NOT NULL,
	context TEXT
);

CREATE INDEX IF NOT EXISTS idx_conversations_agent_day ON conversations(role, agent_id, day);
`

const migrationV2Runs = `
CREATE TABLE IF NOT EXISTS runs (
	task_id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	analysis TEXT,
	results TEXT,
	final_solution TEXT,
	started_at DATETIME NOT NULL,
	ended_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// AppendConversation persists one interaction, keyed by the agent's role,
// id and the calendar day. Satisfies the agents' history sink.
func (s *Store) AppendConversation(ctx context.Context, role, agentID string, entry models.ConversationEntry) error {
	contextJSON := "{}"
	if entry.Context != nil {
		data, err := json.Marshal(entry.Context)
		if err == nil {
			contextJSON = string(data)
		}
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO conversations (role, agent_id, day, recorded_at, message, response, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		role,
		agentID,
		entry.Timestamp.UTC().Format("2006-01-02"),
		formatTime(entry.Timestamp),
		entry.Message,
		entry.Response,
		contextJSON,
	)
	if err != nil {
		return fmt.Errorf("insert conversation entry: %w", err)
	}
	return nil
}

// Conversations returns an agent's entries for one calendar day, oldest
// first. day uses the 2006-01-02 format.
func (s *Store) Conversations(ctx context.Context, role, agentID, day string) ([]models.ConversationEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT recorded_at, message, response, context
		FROM conversations
		WHERE role = ? AND agent_id = ? AND day = ?
		ORDER BY id
	`, role, agentID, day)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var entries []models.ConversationEntry
	for rows.Next() {
		var recordedAt, message, response string
		var contextJSON sql.NullString
		if err := rows.Scan(&recordedAt, &message, &response, &contextJSON); err != nil {
			return nil, fmt.Errorf("scan conversation entry: %w", err)
		}

		entry := models.ConversationEntry{Message: message, Response: response}
		if t, err := parseTime(recordedAt); err == nil {
			entry.Timestamp = t
		}
		if contextJSON.Valid && contextJSON.String != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(contextJSON.String), &m); err == nil {
				entry.Context = m
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveRun archives a finished pipeline run. Saving the same task id
// again replaces the previous record.
func (s *Store) SaveRun(ctx context.Context, state *models.PipelineState) error {
	analysisJSON, err := json.Marshal(state.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	resultsJSON, err := json.Marshal(state.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	var endedAt any
	if !state.EndedAt.IsZero() {
		endedAt = formatTime(state.EndedAt)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO runs (task_id, description, status, analysis, results, final_solution, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			description = excluded.description,
			status = excluded.status,
			analysis = excluded.analysis,
			results = excluded.results,
			final_solution = excluded.final_solution,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`,
		state.TaskID,
		state.Description,
		string(state.Status),
		string(analysisJSON),
		string(resultsJSON),
		state.FinalSolution,
		formatTime(state.StartedAt),
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.TaskID, err)
	}
	return nil
}

// Run loads one archived pipeline run by task id.
func (s *Store) Run(ctx context.Context, taskID string) (*models.PipelineState, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT task_id, description, status, analysis, results, final_solution, started_at, ended_at
		FROM runs WHERE task_id = ?
	`, taskID)
	return scanRun(row)
}

// Runs returns the most recent archived runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]*models.PipelineState, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT task_id, description, status, analysis, results, final_solution, started_at, ended_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*models.PipelineState
	for rows.Next() {
		state, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.PipelineState, error) {
	var (
		state         models.PipelineState
		status        string
		analysisJSON  sql.NullString
		resultsJSON   sql.NullString
		finalSolution sql.NullString
		startedAt     string
		endedAt       sql.NullString
	)
	if err := row.Scan(&state.TaskID, &state.Description, &status, &analysisJSON, &resultsJSON, &finalSolution, &startedAt, &endedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	state.Status = models.PipelineStatus(status)
	state.FinalSolution = finalSolution.String
	if t, err := parseTime(startedAt); err == nil {
		state.StartedAt = t
	}
	if t := parseNullableTime(endedAt); t != nil {
		state.EndedAt = *t
	}
	if analysisJSON.Valid && analysisJSON.String != "" && analysisJSON.String != "null" {
		var analysis models.TaskAnalysis
		if err := json.Unmarshal([]byte(analysisJSON.String), &analysis); err == nil {
			state.Analysis = &analysis
		}
	}
	if resultsJSON.Valid && resultsJSON.String != "" && resultsJSON.String != "null" {
		var results map[models.Specialization][]models.SubtaskResult
		if err := json.Unmarshal([]byte(resultsJSON.String), &results); err == nil {
			state.Results = results
		}
	}
	return &state, nil
}

// Prune deletes conversation entries older than the given duration.
// Returns the number of entries deleted.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := s.conn.ExecContext(ctx, `
		DELETE FROM conversations WHERE recorded_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune conversations: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
