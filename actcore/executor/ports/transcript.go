package actionports

import (
	"context"
	"encoding/json"
	"time"
)

// TranscriptEntry is one (action, observation) pair in its wire form.
type TranscriptEntry struct {
	EpisodeID   string          `json:"episode_id"`
	Step        int             `json:"step"`
	ToolName    string          `json:"tool_name"`
	Request     json.RawMessage `json:"request"`
	Observation json.RawMessage `json:"observation"`
	Success     bool            `json:"success"`
	FailureKind string          `json:"failure_kind,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TranscriptStore is the append-only sink for executed steps. Load exists for
// the agent loop's prompt window; the executor itself only appends.
type TranscriptStore interface {
	Append(ctx context.Context, entry TranscriptEntry) error
	Load(ctx context.Context, episodeID string, lastK int) ([]TranscriptEntry, error)
}
