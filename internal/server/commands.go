package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/song"
	"github.com/Kanskikuro/dat640-project/internal/store"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

// dispatch routes one inbound envelope to its handler. Runs on the
// client's read pump, so per-session state is touched single-threaded.
func (s *Server) dispatch(c *Client, env transport.Envelope) {
	decode := func(v any) bool {
		if len(env.Payload) == 0 {
			return true
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			log.Printf("musiccrs: session %s bad %s payload: %v", c.id, env.Event, err)
			return false
		}
		return true
	}

	switch env.Event {
	case protocol.CmdCreate:
		var ref protocol.PlaylistRef
		if decode(&ref) {
			s.createPlaylist(c, ref.PlaylistName)
		}
	case protocol.CmdSwitch:
		var ref protocol.PlaylistRef
		if decode(&ref) {
			s.switchPlaylist(c, ref.PlaylistName)
		}
	case protocol.CmdRemovePlaylist:
		var ref protocol.PlaylistRef
		if decode(&ref) {
			s.removePlaylist(c, ref.PlaylistName)
		}
	case protocol.CmdAdd:
		var add protocol.AddSong
		if decode(&add) {
			s.addSong(c, add.Song, add.PlaylistName)
		}
	case protocol.CmdRemove:
		var rm protocol.RemoveSong
		if decode(&rm) {
			s.removeSong(c, rm.Artist, rm.Title)
		}
	case protocol.CmdView:
		var ref protocol.PlaylistRef
		if decode(&ref) {
			s.viewSongs(c, ref.PlaylistName)
		}
	case protocol.CmdViewPlaylists:
		s.viewPlaylists(c)
	case protocol.CmdClear:
		var ref protocol.PlaylistRef
		if decode(&ref) {
			s.clearPlaylist(c, ref.PlaylistName)
		}
	case protocol.CmdChat:
		var msg protocol.ChatMessage
		if decode(&msg) {
			s.handleChat(c, msg.Text)
		}
	default:
		log.Printf("musiccrs: session %s unknown command %q", c.id, env.Event)
	}
}

func (s *Server) createPlaylist(c *Client, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		c.sendChat("Please provide a playlist name.")
		return
	}
	err := s.store.Create(s.ctx, name)
	if errors.Is(err, store.ErrDuplicate) {
		c.sendChat(fmt.Sprintf("Playlist '%s' already exists.", name))
		return
	}
	if err != nil {
		log.Printf("musiccrs: create playlist: %v", err)
		c.sendChat("Something went wrong creating the playlist.")
		return
	}
	c.current = name
	s.broadcastEvent(protocol.TypeCreated, name)
	c.sendChat(fmt.Sprintf("Created playlist '%s'.", name))
}

// switchPlaylist activates a playlist for this session, creating it
// first when it does not exist yet ("use" semantics).
func (s *Server) switchPlaylist(c *Client, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		c.sendChat("Please provide a playlist name.")
		return
	}
	ok, err := s.store.Exists(s.ctx, name)
	if err != nil {
		log.Printf("musiccrs: switch playlist: %v", err)
		return
	}
	if !ok {
		s.createPlaylist(c, name)
		return
	}
	c.current = name
	c.sendEvent(protocol.TypeSwitched, name)
	c.sendChat(fmt.Sprintf("Switched to playlist '%s'.", name))
}

func (s *Server) removePlaylist(c *Client, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.current
	}
	if name == "" {
		c.sendChat("No active playlist. Use '/pl use [name]' first.")
		return
	}
	err := s.store.Delete(s.ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		c.sendChat(fmt.Sprintf("Playlist '%s' not found.", name))
		return
	}
	if err != nil {
		log.Printf("musiccrs: remove playlist: %v", err)
		return
	}
	if c.current == name {
		c.current = ""
	}
	s.broadcastEvent(protocol.TypeDeleted, name)
	c.sendChat(fmt.Sprintf("Deleted playlist '%s'.", name))
}

// addSong resolves a song spec and appends it to the target playlist.
// Specs without a colon are title-only and go through the catalog,
// possibly parking candidates for a follow-up choose.
func (s *Server) addSong(c *Client, spec, target string) {
	spec = strings.TrimSpace(spec)
	if target = strings.TrimSpace(target); target == "" {
		target = c.current
	}
	if target == "" {
		c.sendChat("No active playlist. Use '/pl use [name]' first.")
		return
	}
	if spec == "" {
		c.sendChat("Please provide a song as '[artist] : [title]'.")
		return
	}

	if strings.Contains(spec, ":") {
		s.commitSong(c, target, song.Parse(spec))
		return
	}

	// Title only: disambiguate against the track catalog.
	if s.cat == nil {
		c.sendChat(fmt.Sprintf("No songs found with title '%s'.", spec))
		return
	}
	tracks, err := s.cat.FindByTitle(s.ctx, spec)
	if err != nil {
		log.Printf("musiccrs: catalog lookup: %v", err)
		c.sendChat("Something went wrong searching the catalog.")
		return
	}
	switch len(tracks) {
	case 0:
		c.sendChat(fmt.Sprintf("No songs found with title '%s'.", spec))
	case 1:
		s.commitSong(c, target, song.Song{Artist: tracks[0].Artist, Title: tracks[0].Title})
	default:
		c.pending = c.pending[:0]
		c.pendingTarget = target
		lines := []string{"Multiple matches:"}
		for i, tr := range tracks {
			c.pending = append(c.pending, song.Song{Artist: tr.Artist, Title: tr.Title})
			lines = append(lines, fmt.Sprintf("%d. %s : %s", i+1, tr.Artist, tr.Title))
		}
		lines = append(lines, "Use '/pl choose [number]' to select.")
		c.sendChat(strings.Join(lines, "\n"))
	}
}

// commitSong performs the store write shared by direct adds, catalog
// matches and choose selections.
func (s *Server) commitSong(c *Client, target string, sg song.Song) {
	err := s.store.AddSong(s.ctx, target, sg)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.sendChat(fmt.Sprintf("Playlist '%s' not found.", target))
	case errors.Is(err, store.ErrDuplicate):
		c.sendChat(fmt.Sprintf("Song already in playlist '%s': %s - %s.", target, sg.Artist, sg.Title))
	case err != nil:
		log.Printf("musiccrs: add song: %v", err)
		c.sendChat("Something went wrong adding the song.")
	default:
		s.broadcastEvent(protocol.TypeAdded, nil)
		c.sendChat(fmt.Sprintf("Added to '%s': %s - %s.", target, sg.Artist, sg.Title))
	}
}

func (s *Server) removeSong(c *Client, artist, title string) {
	target := c.current
	if target == "" {
		c.sendChat("No active playlist. Use '/pl use [name]' first.")
		return
	}
	removed, err := s.store.RemoveSong(s.ctx, target, artist, title)
	if errors.Is(err, store.ErrNotFound) {
		c.sendChat(fmt.Sprintf("Song not found in playlist '%s': %s - %s.", target, artist, title))
		return
	}
	if err != nil {
		log.Printf("musiccrs: remove song: %v", err)
		return
	}
	s.broadcastEvent(protocol.TypeRemoved, nil)
	c.sendChat(fmt.Sprintf("Removed from '%s': %s - %s.", target, removed.Artist, removed.Title))
}

// viewSongs pushes the playlist's current snapshot to this session.
func (s *Server) viewSongs(c *Client, name string) {
	if name = strings.TrimSpace(name); name == "" {
		name = c.current
	}
	songs, err := s.store.Songs(s.ctx, name)
	if err != nil {
		log.Printf("musiccrs: view songs: %v", err)
		return
	}
	specs := make([]string, len(songs))
	for i, sg := range songs {
		specs[i] = sg.String()
	}
	c.sendEvent(protocol.TypeSongs, specs)
}

func (s *Server) viewPlaylists(c *Client) {
	names, err := s.store.Names(s.ctx)
	if err != nil {
		log.Printf("musiccrs: view playlists: %v", err)
		return
	}
	c.sendEvent(protocol.TypePlaylists, names)
}

func (s *Server) clearPlaylist(c *Client, name string) {
	if name = strings.TrimSpace(name); name == "" {
		name = c.current
	}
	if name == "" {
		c.sendChat("No active playlist. Use '/pl use [name]' first.")
		return
	}
	err := s.store.Clear(s.ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		c.sendChat(fmt.Sprintf("Playlist '%s' not found.", name))
		return
	}
	if err != nil {
		log.Printf("musiccrs: clear playlist: %v", err)
		return
	}
	// No dedicated event type exists for a bulk clear; clients treat
	// the unrecognized type as a cue to re-fetch everything.
	s.broadcastEvent("cleared", name)
	c.sendChat(fmt.Sprintf("Cleared playlist '%s'.", name))
}

// choose resolves a pending title disambiguation by index (1-based).
func (s *Server) choose(c *Client, arg string) {
	if len(c.pending) == 0 {
		c.sendChat(plHelp())
		return
	}
	var idx int
	if _, err := fmt.Sscanf(strings.TrimSpace(arg), "%d", &idx); err != nil {
		c.sendChat("Please provide a valid number, e.g., '/pl choose 1'.")
		return
	}
	if idx < 1 || idx > len(c.pending) {
		c.sendChat(fmt.Sprintf("Please choose a number between 1 and %d.", len(c.pending)))
		return
	}
	sg := c.pending[idx-1]
	target := c.pendingTarget
	c.pending = nil
	c.pendingTarget = ""
	s.commitSong(c, target, sg)
}
