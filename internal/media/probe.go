package media

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dhowden/tag"

	"github.com/arung-agamani/roomd/internal/decode"
)

// Metadata is a track's duration plus whatever tag metadata could be read
// from the file. Tag fields are best-effort: a file with no or unreadable
// tags still yields a valid Metadata with Duration set and the rest zero.
type Metadata struct {
	Duration time.Duration
	Title    string
	Artist   string
	Album    string
	Genre    string
	TrackNum int
}

// ProbeMetadata probes path for duration via ffprobe and, best-effort, for
// tag metadata. Tag-read failure is not fatal: duration is the only
// load-bearing field downstream.
func ProbeMetadata(ctx context.Context, path string) (Metadata, error) {
	dur, err := decode.Probe(ctx, path)
	if err != nil {
		return Metadata{}, err
	}

	md := Metadata{Duration: dur}

	f, err := os.Open(path)
	if err != nil {
		slog.Debug("media: could not open file for tags", "path", path, "error", err)
		return md, nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("media: could not read tags", "path", path, "error", err)
		return md, nil
	}

	md.Title = m.Title()
	md.Artist = m.Artist()
	md.Album = m.Album()
	md.Genre = m.Genre()
	num, _ := m.Track()
	md.TrackNum = num

	return md, nil
}
