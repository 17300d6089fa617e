// Package media resolves a Track's provider into a local, playable file,
// caching the result under the data directory, and probes media files for
// duration and tag metadata. See spec §6's media probe and cached media
// path collaborators.
package media

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SourceKind is the closed set of ways a Provider can point at audio bytes,
// per spec §9's "provider source ... likewise closed variants."
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceURL
	SourceYouTube
)

// TrackSource identifies where to fetch a track's audio from. Ref's meaning
// depends on Kind: a filesystem path for SourceLocal, a URL for SourceURL,
// or a video ID for SourceYouTube.
type TrackSource struct {
	Kind SourceKind
	Ref  string
}

// Provider is one way to obtain a track's audio bytes, identified by a
// stable UUID used for cache addressing.
type Provider struct {
	ID     uuid.UUID
	Source TrackSource
}

// CachePath returns the canonical cache location for id, per spec §6:
// "<datadir>/media/cached/<XX>/<UUID>.flac" where XX is the first two
// uppercase hex characters of the UUID.
func CachePath(dataDir string, id uuid.UUID) string {
	canonical := id.String()
	prefix := strings.ToUpper(canonical[:2])
	return filepath.Join(dataDir, "media", "cached", prefix, canonical+".flac")
}
