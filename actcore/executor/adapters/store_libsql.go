package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

// ErrOutOfOrderStep is returned when a step is appended twice or out of order.
var ErrOutOfOrderStep = errors.New("transcript step out of order")

// LibSQLTranscriptStore persists transcripts in the transcript_entries table
// created by the db migrations.
type LibSQLTranscriptStore struct {
	db *sql.DB
}

func NewLibSQLTranscriptStore(db *sql.DB) *LibSQLTranscriptStore {
	return &LibSQLTranscriptStore{db: db}
}

func (s *LibSQLTranscriptStore) Append(ctx context.Context, entry ports.TranscriptEntry) error {
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(step) FROM transcript_entries WHERE episode_id = ?`, entry.EpisodeID).Scan(&last)
	if err != nil {
		return fmt.Errorf("failed to read last step: %w", err)
	}
	if last.Valid && last.Int64 >= int64(entry.Step) {
		return fmt.Errorf("%w: episode %s step %d after step %d", ErrOutOfOrderStep, entry.EpisodeID, entry.Step, last.Int64)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	success := 0
	if entry.Success {
		success = 1
	}

	query := `
		INSERT INTO transcript_entries
			(episode_id, step, tool_name, request, observation, success, failure_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.EpisodeID, entry.Step, entry.ToolName,
		nullableJSON(entry.Request), string(entry.Observation),
		success, entry.FailureKind, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to append transcript entry: %w", err)
	}
	return nil
}

func (s *LibSQLTranscriptStore) Load(ctx context.Context, episodeID string, lastK int) ([]ports.TranscriptEntry, error) {
	limit := lastK
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT episode_id, step, tool_name, request, observation, success, failure_kind, created_at
		FROM transcript_entries
		WHERE episode_id = ?
		ORDER BY step DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, episodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []ports.TranscriptEntry
	for rows.Next() {
		var (
			e         ports.TranscriptEntry
			request   sql.NullString
			obs       string
			success   int
			createdAt string
		)
		if err := rows.Scan(&e.EpisodeID, &e.Step, &e.ToolName, &request, &obs, &success, &e.FailureKind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		if request.Valid {
			e.Request = []byte(request.String)
		}
		e.Observation = []byte(obs)
		e.Success = success == 1
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var _ ports.TranscriptStore = (*LibSQLTranscriptStore)(nil)
