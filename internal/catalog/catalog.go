// Package catalog is the read-mostly track database behind title-only
// song lookups: when a user adds a song without naming the artist, the
// server disambiguates against this catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by TrackInfo for unknown tracks.
var ErrNotFound = errors.New("catalog: track not found")

// maxMatches caps title lookups; more candidates than this are useless
// for chat disambiguation anyway.
const maxMatches = 10

// Track is one catalog row.
type Track struct {
	Artist     string
	Title      string
	Album      string
	DurationMs int
	SpotifyURI string
}

// Catalog wraps a SQLite database of known tracks.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog at path; ":memory:" works for
// tests. The schema and its nocase indexes are ensured on open.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS songs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			artist      TEXT NOT NULL,
			title       TEXT NOT NULL,
			album       TEXT,
			duration_ms INTEGER,
			spotify_uri TEXT,
			UNIQUE(artist, title, album)
		);

		CREATE INDEX IF NOT EXISTS idx_songs_title_artist_nocase
			ON songs(title COLLATE NOCASE, artist COLLATE NOCASE);
		CREATE INDEX IF NOT EXISTS idx_songs_artist_title_nocase
			ON songs(artist COLLATE NOCASE, title COLLATE NOCASE);
	`)
	if err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// Insert adds a track, ignoring exact duplicates.
func (c *Catalog) Insert(ctx context.Context, t Track) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO songs (artist, title, album, duration_ms, spotify_uri)
		VALUES (?, ?, ?, ?, ?)
	`, t.Artist, t.Title, t.Album, t.DurationMs, t.SpotifyURI)
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}
	return nil
}

// FindByTitle returns up to maxMatches tracks whose title matches
// case-insensitively, ordered by artist for stable listings.
func (c *Catalog) FindByTitle(ctx context.Context, title string) ([]Track, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT artist, title, COALESCE(album, ''), COALESCE(duration_ms, 0), COALESCE(spotify_uri, '')
		FROM songs
		WHERE title = ? COLLATE NOCASE
		ORDER BY artist COLLATE NOCASE ASC
		LIMIT ?
	`, title, maxMatches)
	if err != nil {
		return nil, fmt.Errorf("find by title: %w", err)
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.Artist, &t.Title, &t.Album, &t.DurationMs, &t.SpotifyURI); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// TrackInfo looks up a single track by its (artist, title) pair,
// case-insensitively.
func (c *Catalog) TrackInfo(ctx context.Context, artist, title string) (Track, error) {
	var t Track
	err := c.db.QueryRowContext(ctx, `
		SELECT artist, title, COALESCE(album, ''), COALESCE(duration_ms, 0), COALESCE(spotify_uri, '')
		FROM songs
		WHERE artist = ? COLLATE NOCASE AND title = ? COLLATE NOCASE
		LIMIT 1
	`, artist, title).Scan(&t.Artist, &t.Title, &t.Album, &t.DurationMs, &t.SpotifyURI)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, ErrNotFound
	}
	if err != nil {
		return Track{}, fmt.Errorf("track info: %w", err)
	}
	return t, nil
}
