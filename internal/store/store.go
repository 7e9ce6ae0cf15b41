// Package store keeps the server-side playlists. Playlist name is the
// primary key; song order within a playlist is insertion order and the
// store is authoritative for it.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/Kanskikuro/dat640-project/internal/song"
)

var (
	// ErrNotFound is returned for operations on unknown playlists or songs.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a song with the same (artist, title)
	// pair is already in the playlist, or a playlist name is taken.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the playlist persistence contract shared by the in-memory
// and Postgres implementations.
type Store interface {
	// Names lists playlist names in creation order.
	Names(ctx context.Context) ([]string, error)

	// Create adds an empty playlist. ErrDuplicate when the name is taken.
	Create(ctx context.Context, name string) error

	// Exists reports whether the playlist is known.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes a playlist and its songs. ErrNotFound when unknown.
	Delete(ctx context.Context, name string) error

	// Clear removes all songs, keeping the playlist. ErrNotFound when unknown.
	Clear(ctx context.Context, name string) error

	// Songs returns the playlist's songs in order. Unknown playlists
	// yield an empty list, matching the view semantics of the chat agent.
	Songs(ctx context.Context, name string) ([]song.Song, error)

	// AddSong appends a song. ErrNotFound for unknown playlists,
	// ErrDuplicate when the (artist, title) pair is already present.
	AddSong(ctx context.Context, name string, s song.Song) error

	// RemoveSong deletes the first song matching artist and title
	// case-insensitively. ErrNotFound when playlist or song is missing.
	RemoveSong(ctx context.Context, name, artist, title string) (song.Song, error)
}

// sameSong compares artist/title pairs case-insensitively, the way the
// remove command matches.
func sameSong(s song.Song, artist, title string) bool {
	return strings.EqualFold(s.Artist, artist) && strings.EqualFold(s.Title, title)
}
