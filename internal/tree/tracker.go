package tree

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrNoTracks is returned by Next when the root's effective choice set is
// empty.
var ErrNoTracks = errors.New("tree: no tracks")

// HistoryEntry is one recency-tagged path in a context's play history.
type HistoryEntry struct {
	Iteration uint16
	Path      TreePath
}

// Tracker drives traversal and shuffle selection over a Playlist, per spec
// §4.5. It owns the only mutable state alongside the tree: per-context play
// history and the current iteration counter.
type Tracker struct {
	mu        sync.Mutex
	playlist  *Playlist
	history   map[string][]HistoryEntry
	iteration uint16
	random    bool
	rng       *rand.Rand
}

// NewTracker builds a Tracker over pl using rng for shuffle selection. Tests
// of §8's shuffle law should inject a seeded rng for reproducibility.
func NewTracker(pl *Playlist, rng *rand.Rand) *Tracker {
	return &Tracker{
		playlist: pl,
		history:  make(map[string][]HistoryEntry),
		random:   true,
		rng:      rng,
	}
}

// NewDefaultTracker builds a Tracker seeded from wall-clock time, for
// production use where reproducibility is not required.
func NewDefaultTracker(pl *Playlist) *Tracker {
	return NewTracker(pl, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// SetRandom toggles shuffle selection.
func (t *Tracker) SetRandom(random bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.random = random
}

// Random reports whether shuffle selection is active.
func (t *Tracker) Random() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.random
}

// Restart bumps the iteration counter, wrapping mod 2^16. Stale history
// entries from the previous iteration stop satisfying sequential lookup but
// keep influencing shuffle recency weighting.
func (t *Tracker) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.iteration++
}

// Playlist returns the tracked playlist.
func (t *Tracker) Playlist() *Playlist {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playlist
}

// SetPlaylist replaces the tracked playlist and clears all history.
func (t *Tracker) SetPlaylist(pl *Playlist) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playlist = pl
	t.history = make(map[string][]HistoryEntry)
}

// AddTrack descends parent and appends track, per spec §4.5's path
// mutations.
func (t *Tracker) AddTrack(track Track, parent TreePath) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playlist.AddTrack(track, parent)
}

// AddPlaylist descends parent and appends sub.
func (t *Tracker) AddPlaylist(sub *Playlist, parent TreePath) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playlist.AddPlaylist(sub, parent)
}

func (t *Tracker) collectChoices(ctxPath TreePath, pl *Playlist, out *[]TreePath) {
	for idx, e := range pl.Entries {
		newPath := ctxPath.Join(TreePath{uint32(idx)})

		if e.Track != nil {
			*out = append(*out, newPath)
			continue
		}

		switch pl.Nesting {
		case Flatten:
			t.collectChoices(newPath, e.Playlist, out)
		case RoundRobin:
			if !isEmptyPlaylist(e.Playlist) {
				*out = append(*out, newPath)
			}
		}
	}
}

// Next selects and returns the next track per the current mode, per spec
// §4.5's selection rule. When a RoundRobin choice resolves to a nested
// sub-playlist rather than a leaf Track, selection recurses into it using
// that sub-playlist's own context, so "a track from the currently playing
// context" always bottoms out at a leaf. Returns ErrNoTracks if the
// context's effective choice set is empty at any level.
func (t *Tracker) Next() (*Track, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectFrom(RootPath(), t.playlist)
}

func (t *Tracker) selectFrom(ctx TreePath, pl *Playlist) (*Track, error) {
	var available []TreePath
	t.collectChoices(ctx, pl, &available)

	if len(available) == 0 {
		return nil, ErrNoTracks
	}

	lastPlayed := t.history[ctx.String()]

	var chosen TreePath
	if t.random {
		indices := recentIndices(available, lastPlayed)
		chosen = available[selectNextRandom(len(available), indices, t.rng)]
	} else {
		chosen = t.nextSequential(available, lastPlayed)
	}

	t.insertLastPlayed(ctx, chosen)

	entry, ok := t.playlist.GetEntry(chosen)
	if !ok {
		return nil, ErrNoTracks
	}
	if entry.Track != nil {
		return entry.Track, nil
	}
	return t.selectFrom(chosen, entry.Playlist)
}

// nextSequential implements the non-random half of spec §4.5's selection
// rule: locate the last path played in this iteration and return the
// following element; on a miss (first call or last entry) wrap to
// available[0] and bump the iteration.
func (t *Tracker) nextSequential(available []TreePath, lastPlayed []HistoryEntry) TreePath {
	pos := -1
	if n := len(lastPlayed); n > 0 {
		last := lastPlayed[n-1]
		if last.Iteration == t.iteration {
			for i, a := range available {
				if a.Equal(last.Path) {
					pos = i
					break
				}
			}
		}
	}

	if pos >= 0 && pos+1 < len(available) {
		return available[pos+1]
	}

	t.iteration++
	return available[0]
}

func recentIndices(available []TreePath, lastPlayed []HistoryEntry) []int {
	indices := make([]int, 0, len(lastPlayed))
	for _, h := range lastPlayed {
		for i, a := range available {
			if a.Equal(h.Path) {
				indices = append(indices, i)
				break
			}
		}
	}
	return indices
}

// insertLastPlayed records entry in context's history tagged with the
// current iteration, removing any prior occurrence first (spec §4.5:
// "history is a deduplicated recency list").
func (t *Tracker) insertLastPlayed(context, entry TreePath) {
	key := context.String()
	vec := t.history[key]

	for i, h := range vec {
		if h.Path.Equal(entry) {
			vec = append(vec[:i], vec[i+1:]...)
			break
		}
	}

	t.history[key] = append(vec, HistoryEntry{Iteration: t.iteration, Path: entry.Clone()})
}

// selectNextRandom implements spec §4.5's recency-weighted selection
// formula verbatim.
func selectNextRandom(n int, last []int, rng *rand.Rand) int {
	if n <= 0 {
		panic("tree: selectNextRandom requires n > 0")
	}

	u := n - len(last)
	max := float64(u) + (1 - math.Pow(2, -float64(len(last))))
	pick := rng.Float64() * max

	if pick < float64(u) {
		idx := int(math.Floor(pick))
		count := 0
		for i := 0; i < n; i++ {
			if !containsInt(last, i) {
				if count == idx {
					return i
				}
				count++
			}
		}
		return 0
	}

	pickRel := pick - float64(u)
	idx := int(math.Floor(-math.Log2(1 - pickRel)))
	if idx >= len(last) {
		idx = len(last) - 1
	}
	return last[idx]
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
