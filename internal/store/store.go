// Package store persists room playlists and their traversal state to
// SQLite, schema-managed by golang-migrate. See spec §1's external
// SQL-persistence collaborator and §4.5's NEW Snapshot/Load hooks.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/arung-agamani/roomd/internal/tree"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists room state (playlist trees and tracker snapshots) in a
// SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and brings
// its schema up to date.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("store opened", "path", path)
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: init migrate: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TrackRecord is a track's persisted metadata, including the provider
// reference internal/media needs to resolve it, kept separate from
// tree.Track so the tree package stays free of media/provider concerns.
type TrackRecord struct {
	ID         string
	Title      string
	SourceKind string
	SourceRef  string
}

// SaveRoom persists tracker's playlist tree and traversal snapshot under
// roomID, replacing anything previously stored for it. tracks supplies the
// provider metadata for every track reachable in the tree; tracks absent
// from the map are persisted with an empty source (title-only).
func (s *Store) SaveRoom(ctx context.Context, roomID string, tracker *tree.Tracker, tracks map[string]TrackRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save: %w", err)
	}
	defer tx.Rollback()

	var oldRoot sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT root_playlist_id FROM rooms WHERE room_id = ?`, roomID).Scan(&oldRoot)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("store: lookup existing room: %w", err)
	}

	rootID, err := savePlaylistTree(ctx, tx, tracker.Playlist(), tracks)
	if err != nil {
		return fmt.Errorf("store: save playlist tree: %w", err)
	}

	snap := tracker.Snapshot()
	historyJSON, err := json.Marshal(snap.History)
	if err != nil {
		return fmt.Errorf("store: encode history: %w", err)
	}

	randomInt := 0
	if snap.Random {
		randomInt = 1
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO rooms (room_id, root_playlist_id, iteration, random, history_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(room_id) DO UPDATE SET
	root_playlist_id = excluded.root_playlist_id,
	iteration = excluded.iteration,
	random = excluded.random,
	history_json = excluded.history_json
`, roomID, rootID, snap.Iteration, randomInt, string(historyJSON))
	if err != nil {
		return fmt.Errorf("store: upsert room: %w", err)
	}

	if oldRoot.Valid && oldRoot.Int64 != rootID {
		if err := deletePlaylistTree(ctx, tx, oldRoot.Int64); err != nil {
			return fmt.Errorf("store: prune old playlist tree: %w", err)
		}
	}

	return tx.Commit()
}

// LoadRoom rehydrates a tracker previously persisted by SaveRoom. Returns
// sql.ErrNoRows if roomID has never been saved.
func (s *Store) LoadRoom(ctx context.Context, roomID string) (*tree.Tracker, error) {
	var (
		rootID      int64
		iteration   uint16
		randomInt   int
		historyJSON string
	)

	err := s.db.QueryRowContext(ctx, `
SELECT root_playlist_id, iteration, random, history_json FROM rooms WHERE room_id = ?
`, roomID).Scan(&rootID, &iteration, &randomInt, &historyJSON)
	if err != nil {
		return nil, fmt.Errorf("store: load room %q: %w", roomID, err)
	}

	pl, err := loadPlaylistTree(ctx, s.db, rootID)
	if err != nil {
		return nil, fmt.Errorf("store: load playlist tree: %w", err)
	}

	var history map[string][]tree.HistoryEntry
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		return nil, fmt.Errorf("store: decode history: %w", err)
	}

	tracker := tree.NewDefaultTracker(pl)
	tracker.Load(tree.Snapshot{
		Iteration: iteration,
		Random:    randomInt != 0,
		History:   history,
	})

	return tracker, nil
}

// GetTrackRecord returns the persisted provider metadata for id, used by
// internal/media to resolve a Track to a playable path.
func (s *Store) GetTrackRecord(ctx context.Context, id string) (TrackRecord, error) {
	var rec TrackRecord
	rec.ID = id
	err := s.db.QueryRowContext(ctx, `
SELECT title, source_kind, source_ref FROM tracks WHERE id = ?
`, id).Scan(&rec.Title, &rec.SourceKind, &rec.SourceRef)
	if err != nil {
		return TrackRecord{}, fmt.Errorf("store: get track %q: %w", id, err)
	}
	return rec, nil
}

func nestingToString(m tree.NestingMode) string {
	if m == tree.RoundRobin {
		return "round_robin"
	}
	return "flatten"
}

func nestingFromString(s string) tree.NestingMode {
	if s == "round_robin" {
		return tree.RoundRobin
	}
	return tree.Flatten
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func savePlaylistTree(ctx context.Context, tx *sql.Tx, pl *tree.Playlist, tracks map[string]TrackRecord) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO playlists (nesting_mode) VALUES (?)`, nestingToString(pl.Nesting))
	if err != nil {
		return 0, fmt.Errorf("insert playlist: %w", err)
	}
	playlistID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for pos, e := range pl.Entries {
		if e.Track != nil {
			rec, ok := tracks[e.Track.ID]
			if !ok {
				rec = TrackRecord{ID: e.Track.ID, Title: e.Track.Title}
			}
			if err := upsertTrack(ctx, tx, rec); err != nil {
				return 0, err
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO playlist_entries (playlist_id, position, track_id) VALUES (?, ?, ?)
`, playlistID, pos, e.Track.ID); err != nil {
				return 0, fmt.Errorf("insert track entry: %w", err)
			}
			continue
		}

		childID, err := savePlaylistTree(ctx, tx, e.Playlist, tracks)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO playlist_entries (playlist_id, position, child_playlist_id) VALUES (?, ?, ?)
`, playlistID, pos, childID); err != nil {
			return 0, fmt.Errorf("insert nested playlist entry: %w", err)
		}
	}

	return playlistID, nil
}

func upsertTrack(ctx context.Context, tx *sql.Tx, rec TrackRecord) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO tracks (id, title, source_kind, source_ref) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET title = excluded.title, source_kind = excluded.source_kind, source_ref = excluded.source_ref
`, rec.ID, rec.Title, rec.SourceKind, rec.SourceRef)
	if err != nil {
		return fmt.Errorf("upsert track %q: %w", rec.ID, err)
	}
	return nil
}

func loadPlaylistTree(ctx context.Context, db sqlExecer, playlistID int64) (*tree.Playlist, error) {
	var nestingStr string
	if err := db.QueryRowContext(ctx, `SELECT nesting_mode FROM playlists WHERE id = ?`, playlistID).Scan(&nestingStr); err != nil {
		return nil, fmt.Errorf("load playlist %d: %w", playlistID, err)
	}

	pl := tree.NewPlaylist(nestingFromString(nestingStr))

	rows, err := db.QueryContext(ctx, `
SELECT track_id, child_playlist_id FROM playlist_entries WHERE playlist_id = ? ORDER BY position
`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("load playlist entries %d: %w", playlistID, err)
	}
	defer rows.Close()

	type pendingChild struct {
		index int
		id    int64
	}
	var pending []pendingChild

	for rows.Next() {
		var trackID sql.NullString
		var childID sql.NullInt64
		if err := rows.Scan(&trackID, &childID); err != nil {
			return nil, fmt.Errorf("scan playlist entry: %w", err)
		}

		if trackID.Valid {
			t, err := loadTrack(ctx, db, trackID.String)
			if err != nil {
				return nil, err
			}
			pl.Entries = append(pl.Entries, tree.Entry{Track: t})
		} else {
			pending = append(pending, pendingChild{index: len(pl.Entries), id: childID.Int64})
			pl.Entries = append(pl.Entries, tree.Entry{})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pending {
		child, err := loadPlaylistTree(ctx, db, p.id)
		if err != nil {
			return nil, err
		}
		pl.Entries[p.index].Playlist = child
	}

	return pl, nil
}

func loadTrack(ctx context.Context, db sqlExecer, id string) (*tree.Track, error) {
	var title string
	if err := db.QueryRowContext(ctx, `SELECT title FROM tracks WHERE id = ?`, id).Scan(&title); err != nil {
		return nil, fmt.Errorf("load track %q: %w", id, err)
	}
	return &tree.Track{ID: id, Title: title}, nil
}

func deletePlaylistTree(ctx context.Context, tx *sql.Tx, playlistID int64) error {
	rows, err := tx.QueryContext(ctx, `
SELECT child_playlist_id FROM playlist_entries WHERE playlist_id = ? AND child_playlist_id IS NOT NULL
`, playlistID)
	if err != nil {
		return err
	}
	var children []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		children = append(children, id)
	}
	rows.Close()

	for _, c := range children {
		if err := deletePlaylistTree(ctx, tx, c); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_entries WHERE playlist_id = ?`, playlistID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, playlistID); err != nil {
		return err
	}
	return nil
}
