package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arung-agamani/roomd/internal/media"
	"github.com/arung-agamani/roomd/internal/store"
	"github.com/arung-agamani/roomd/internal/tree"
)

// newResolver builds a room.ResolveFunc backed by the store's persisted
// TrackRecords and internal/media's fetch/cache pipeline.
func newResolver(st *store.Store, dataDir string) func(ctx context.Context, track *tree.Track) (string, error) {
	return func(ctx context.Context, track *tree.Track) (string, error) {
		rec, err := st.GetTrackRecord(ctx, track.ID)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", track.ID, err)
		}

		provider, err := providerFromRecord(rec)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", track.ID, err)
		}

		return media.Resolve(ctx, dataDir, provider)
	}
}

func providerFromRecord(rec store.TrackRecord) (media.Provider, error) {
	var kind media.SourceKind
	switch rec.SourceKind {
	case "local":
		kind = media.SourceLocal
	case "url":
		kind = media.SourceURL
	case "youtube":
		kind = media.SourceYouTube
	default:
		return media.Provider{}, fmt.Errorf("unknown source kind %q", rec.SourceKind)
	}

	id, err := uuid.Parse(rec.ID)
	if err != nil {
		// Track IDs predating UUID-based identity: derive a stable UUID so
		// caching still works.
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(rec.ID))
	}

	return media.Provider{
		ID:     id,
		Source: media.TrackSource{Kind: kind, Ref: rec.SourceRef},
	}, nil
}
