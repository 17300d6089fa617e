package tree

// Snapshot captures a Tracker's mutable traversal state — everything beyond
// the tree itself — so internal/store can persist and rehydrate it across
// restarts.
type Snapshot struct {
	Iteration uint16
	Random    bool
	History   map[string][]HistoryEntry
}

// Snapshot returns a deep copy of the tracker's current traversal state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make(map[string][]HistoryEntry, len(t.history))
	for k, v := range t.history {
		history[k] = append([]HistoryEntry(nil), v...)
	}

	return Snapshot{
		Iteration: t.iteration,
		Random:    t.random,
		History:   history,
	}
}

// Load restores a previously captured Snapshot. The tree itself is
// unaffected; the caller is expected to have already set it via
// SetPlaylist or at construction.
func (t *Tracker) Load(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.iteration = s.Iteration
	t.random = s.Random

	history := make(map[string][]HistoryEntry, len(s.History))
	for k, v := range s.History {
		history[k] = append([]HistoryEntry(nil), v...)
	}
	t.history = history
}
