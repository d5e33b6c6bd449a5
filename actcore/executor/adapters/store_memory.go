package adapters

import (
	"context"
	"fmt"
	"sync"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

// MemoryTranscriptStore keeps transcripts in process. Used by the runner and
// when no database is configured.
type MemoryTranscriptStore struct {
	mu       sync.RWMutex
	episodes map[string][]ports.TranscriptEntry
}

func NewMemoryTranscriptStore() *MemoryTranscriptStore {
	return &MemoryTranscriptStore{episodes: make(map[string][]ports.TranscriptEntry)}
}

func (s *MemoryTranscriptStore) Append(_ context.Context, entry ports.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.episodes[entry.EpisodeID]
	if n := len(entries); n > 0 && entries[n-1].Step >= entry.Step {
		return fmt.Errorf("%w: episode %s step %d after step %d", ErrOutOfOrderStep, entry.EpisodeID, entry.Step, entries[n-1].Step)
	}
	s.episodes[entry.EpisodeID] = append(entries, entry)
	return nil
}

// Load returns the last lastK entries oldest first; lastK <= 0 returns all.
func (s *MemoryTranscriptStore) Load(_ context.Context, episodeID string, lastK int) ([]ports.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.episodes[episodeID]
	if lastK > 0 && lastK < len(entries) {
		entries = entries[len(entries)-lastK:]
	}
	return append([]ports.TranscriptEntry(nil), entries...), nil
}

var _ ports.TranscriptStore = (*MemoryTranscriptStore)(nil)
