package tree

import "errors"

// ErrInvalidPath is returned by path mutations when a path component is out
// of range or traverses a Track, per spec §7's TrackerPathInvalid.
var ErrInvalidPath = errors.New("tree: invalid path")

// NestingMode controls how a Playlist's sub-playlists contribute to its
// parent's choice set, per spec §4.5.
type NestingMode int

const (
	// Flatten recursively unions a sub-playlist's choices into the parent's
	// space.
	Flatten NestingMode = iota
	// RoundRobin treats a sub-playlist as a single choice, pruned when the
	// sub-playlist is empty.
	RoundRobin
)

// Track is a leaf of the playlist tree. Provider resolution and metadata
// live in internal/media; the tree only needs an identity to address and
// persist.
type Track struct {
	ID    string
	Title string
}

// Entry is one child of a Playlist: either a Track or a nested Playlist,
// mirroring spec §3's closed two-case content variant.
type Entry struct {
	Track    *Track
	Playlist *Playlist
}

// Playlist is a tree node: an ordered list of entries under one nesting
// mode.
type Playlist struct {
	Nesting NestingMode
	Entries []Entry
}

// NewPlaylist creates an empty playlist with the given nesting mode.
func NewPlaylist(mode NestingMode) *Playlist {
	return &Playlist{Nesting: mode}
}

func (pl *Playlist) child(idx uint32) (*Entry, bool) {
	if int(idx) >= len(pl.Entries) {
		return nil, false
	}
	return &pl.Entries[idx], true
}

// GetPlaylist walks path from pl and returns the Playlist at its end. The
// root path (empty) returns pl itself.
func (pl *Playlist) GetPlaylist(path TreePath) (*Playlist, bool) {
	cur := pl
	for _, idx := range path {
		e, ok := cur.child(idx)
		if !ok || e.Playlist == nil {
			return nil, false
		}
		cur = e.Playlist
	}
	return cur, true
}

// GetEntry returns the Entry addressed by path. The root path has no entry
// of its own.
func (pl *Playlist) GetEntry(path TreePath) (*Entry, bool) {
	if len(path) == 0 {
		return nil, false
	}
	parent, ok := pl.GetPlaylist(path[:len(path)-1])
	if !ok {
		return nil, false
	}
	return parent.child(path[len(path)-1])
}

// GetTrack returns the Track addressed by path, if any.
func (pl *Playlist) GetTrack(path TreePath) (*Track, bool) {
	e, ok := pl.GetEntry(path)
	if !ok || e.Track == nil {
		return nil, false
	}
	return e.Track, true
}

// AddTrack appends track as a child of the playlist at parent.
func (pl *Playlist) AddTrack(track Track, parent TreePath) error {
	target, ok := pl.GetPlaylist(parent)
	if !ok {
		return ErrInvalidPath
	}
	target.Entries = append(target.Entries, Entry{Track: &track})
	return nil
}

// AddPlaylist appends sub as a child of the playlist at parent.
func (pl *Playlist) AddPlaylist(sub *Playlist, parent TreePath) error {
	target, ok := pl.GetPlaylist(parent)
	if !ok {
		return ErrInvalidPath
	}
	target.Entries = append(target.Entries, Entry{Playlist: sub})
	return nil
}

func isEmptyPlaylist(pl *Playlist) bool {
	for _, e := range pl.Entries {
		if e.Track != nil {
			return false
		}
		if e.Playlist == nil {
			continue
		}
		if !isEmptyPlaylist(e.Playlist) {
			return false
		}
	}
	return true
}
