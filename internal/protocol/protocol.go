// Package protocol defines the event contract between the chat client
// and the playlist service: outbound command names with their payload
// shapes, and the discriminated inbound event union.
package protocol

import "encoding/json"

// Client-to-server command events.
const (
	CmdCreate         = "pl_create"
	CmdSwitch         = "pl_switch"
	CmdRemovePlaylist = "pl_remove_playlist"
	CmdAdd            = "pl_add"
	CmdRemove         = "pl_remove"
	CmdView           = "pl_view"
	CmdViewPlaylists  = "pl_view_playlists"
	CmdClear          = "pl_clear"
	CmdChat           = "chat"
)

// Server-to-client event names. Playlist state always travels on the
// single EventPlaylist channel as an Event union; chat traffic has its
// own event so the playlist engine never sees it.
const (
	EventPlaylist = "playlist_event"
	EventChat     = "chat"
)

// Inbound event discriminators.
const (
	TypeSongs     = "songs"
	TypePlaylists = "playlists"
	TypeAdded     = "added"
	TypeRemoved   = "removed"
	TypeSwitched  = "switched"
	TypeCreated   = "created"
	TypeDeleted   = "deleted"
)

// Event is the discriminated union carried by EventPlaylist. Data shape
// depends on Type:
//
//	songs      []string, "artist : title" per entry
//	playlists  []string of playlist names
//	added      none
//	removed    none
//	switched   string, newly active playlist name
//	created    string, new playlist name
//	deleted    string, removed playlist name
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlaylistRef names a playlist in create/switch/remove-playlist/view/clear
// commands. An empty name in view/clear targets the session's active playlist.
type PlaylistRef struct {
	PlaylistName string `json:"playlistName"`
}

// AddSong carries a song spec for pl_add. Song uses the "artist : title"
// format; a spec without a colon is a title-only lookup against the
// track catalog.
type AddSong struct {
	Song         string `json:"song"`
	PlaylistName string `json:"playlistName"`
}

// RemoveSong identifies the song to delete from the active playlist.
// This is the canonical removal shape; the artist/title pair is what
// the server matches on.
type RemoveSong struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// ChatMessage is a chat utterance in either direction. Sender is empty
// for client-to-server messages and carries the speaker name on the way
// back.
type ChatMessage struct {
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
}
