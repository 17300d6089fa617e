package media_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/roomd/internal/media"
)

func TestCachePathFormat(t *testing.T) {
	id := uuid.MustParse("aabbccdd-0000-0000-0000-000000000000")
	got := media.CachePath("/data", id)

	want := filepath.Join("/data", "media", "cached", "AA", id.String()+".flac")
	require.Equal(t, want, got)
}

func TestCachePathPrefixIsUppercase(t *testing.T) {
	id := uuid.New()
	got := media.CachePath("/data", id)
	prefix := filepath.Base(filepath.Dir(got))
	require.Equal(t, strings.ToUpper(prefix), prefix)
}

func TestResolveLocalPassthrough(t *testing.T) {
	p := media.Provider{
		ID: uuid.New(),
		Source: media.TrackSource{
			Kind: media.SourceLocal,
			Ref:  "/music/track.flac",
		},
	}

	path, err := media.Resolve(context.Background(), t.TempDir(), p)
	require.NoError(t, err)
	require.Equal(t, "/music/track.flac", path)
}

func TestResolveCacheHitShortCircuits(t *testing.T) {
	dataDir := t.TempDir()
	id := uuid.New()
	cachePath := media.CachePath(dataDir, id)

	require.NoError(t, os.MkdirAll(filepath.Dir(cachePath), 0o755))
	require.NoError(t, os.WriteFile(cachePath, []byte("cached"), 0o644))

	p := media.Provider{
		ID: id,
		Source: media.TrackSource{
			Kind: media.SourceURL,
			Ref:  "https://example.invalid/unreachable.mp3",
		},
	}

	path, err := media.Resolve(context.Background(), dataDir, p)
	require.NoError(t, err)
	require.Equal(t, cachePath, path)
}
