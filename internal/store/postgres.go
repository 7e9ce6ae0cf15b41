package store

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kanskikuro/dat640-project/internal/song"
)

// PGStore persists playlists in Postgres so a pool of server instances
// can share one catalog. Song order is kept in an explicit position
// column.
type PGStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          name       TEXT PRIMARY KEY,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("musiccrs: migrate playlists: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_songs (
          playlist_name TEXT NOT NULL REFERENCES playlists(name) ON DELETE CASCADE,
          artist        TEXT NOT NULL,
          title         TEXT NOT NULL,
          position      INT NOT NULL,
          PRIMARY KEY (playlist_name, position)
      )
    `); err != nil {
		log.Printf("musiccrs: migrate playlist_songs: %v", err)
		return err
	}

	return nil
}

func (p *PGStore) Names(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, `
		SELECT name FROM playlists ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *PGStore) Create(ctx context.Context, name string) error {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO playlists (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (p *PGStore) Exists(ctx context.Context, name string) (bool, error) {
	var found string
	err := p.db.QueryRow(ctx, `
		SELECT name FROM playlists WHERE name = $1
	`, name).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PGStore) Delete(ctx context.Context, name string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM playlists WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) Clear(ctx context.Context, name string) error {
	ok, err := p.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	_, err = p.db.Exec(ctx, `DELETE FROM playlist_songs WHERE playlist_name = $1`, name)
	return err
}

func (p *PGStore) Songs(ctx context.Context, name string) ([]song.Song, error) {
	rows, err := p.db.Query(ctx, `
		SELECT artist, title
		FROM playlist_songs
		WHERE playlist_name = $1
		ORDER BY position ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	songs := []song.Song{}
	for rows.Next() {
		var s song.Song
		if err := rows.Scan(&s.Artist, &s.Title); err != nil {
			return nil, err
		}
		songs = append(songs, s)
	}
	return songs, rows.Err()
}

func (p *PGStore) AddSong(ctx context.Context, name string, s song.Song) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := p.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	var dup int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM playlist_songs
		WHERE playlist_name = $1 AND lower(artist) = lower($2) AND lower(title) = lower($3)
	`, name, s.Artist, s.Title).Scan(&dup)
	if err == nil {
		return ErrDuplicate
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO playlist_songs (playlist_name, artist, title, position)
		SELECT $1, $2, $3, COALESCE(MAX(position) + 1, 0)
		FROM playlist_songs WHERE playlist_name = $1
	`, name, s.Artist, s.Title)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *PGStore) RemoveSong(ctx context.Context, name, artist, title string) (song.Song, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return song.Song{}, err
	}
	defer tx.Rollback(ctx)

	ok, err := p.Exists(ctx, name)
	if err != nil {
		return song.Song{}, err
	}
	if !ok {
		return song.Song{}, ErrNotFound
	}

	var removed song.Song
	var position int
	err = tx.QueryRow(ctx, `
		SELECT artist, title, position
		FROM playlist_songs
		WHERE playlist_name = $1 AND lower(artist) = lower($2) AND lower(title) = lower($3)
		ORDER BY position ASC
		LIMIT 1
	`, name, artist, title).Scan(&removed.Artist, &removed.Title, &position)
	if errors.Is(err, pgx.ErrNoRows) {
		return song.Song{}, ErrNotFound
	}
	if err != nil {
		return song.Song{}, err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM playlist_songs WHERE playlist_name = $1 AND position = $2
	`, name, position); err != nil {
		return song.Song{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return song.Song{}, err
	}
	return removed, nil
}
