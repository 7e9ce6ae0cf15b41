// Package song defines the song model shared by the client and the server,
// together with the "artist : title" wire format used in chat commands and
// playlist snapshots.
package song

import (
	"fmt"
	"strings"
)

// Song identifies a track by its (artist, title) pair. The pair is
// case-sensitive; uniqueness is only meaningful within a single playlist,
// whose order the server is authoritative for.
type Song struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// Parse splits a song spec at the first colon into artist and title,
// trimming whitespace around both fields. A spec without a colon is
// treated as title-only with an empty artist.
func Parse(spec string) Song {
	artist, title, found := strings.Cut(spec, ":")
	if !found {
		return Song{Title: strings.TrimSpace(spec)}
	}
	return Song{
		Artist: strings.TrimSpace(artist),
		Title:  strings.TrimSpace(title),
	}
}

// String renders the song back into the wire format. Title-only songs
// render without the colon separator.
func (s Song) String() string {
	if s.Artist == "" {
		return s.Title
	}
	return fmt.Sprintf("%s : %s", s.Artist, s.Title)
}
