package server

import (
	"fmt"
	"strings"

	"github.com/Kanskikuro/dat640-project/internal/song"
)

// handleChat interprets a user utterance. Slash commands drive the
// playlist manager through the same operations as the pl_* events;
// anything else gets the stock fallback reply.
func (s *Server) handleChat(c *Client, text string) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return
	case strings.HasPrefix(text, "/info"):
		c.sendChat(infoText)
	case text == "/pl":
		c.sendChat(plHelp())
	case strings.HasPrefix(text, "/pl "):
		s.handlePlaylistCommand(c, strings.TrimSpace(text[4:]))
	default:
		c.sendChat("I'm sorry, I don't understand that command.")
	}
}

func (s *Server) handlePlaylistCommand(c *Client, command string) {
	action, rest, _ := strings.Cut(command, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(action) {
	case "use", "new":
		s.switchPlaylist(c, rest)
	case "add":
		s.addSong(c, rest, "")
	case "remove":
		sg := song.Parse(rest)
		s.removeSong(c, sg.Artist, sg.Title)
	case "view":
		s.viewAsChat(c, rest)
	case "clear":
		s.clearPlaylist(c, rest)
	case "choose":
		s.choose(c, rest)
	case "delete":
		s.removePlaylist(c, rest)
	default:
		c.sendChat(plHelp())
	}
}

// viewAsChat renders a playlist as a numbered chat reply, the way the
// conversational agent answers '/pl view'.
func (s *Server) viewAsChat(c *Client, name string) {
	if name = strings.TrimSpace(name); name == "" {
		name = c.current
	}
	songs, err := s.store.Songs(s.ctx, name)
	if err != nil {
		return
	}
	if len(songs) == 0 {
		c.sendChat("Playlist is empty.")
		return
	}
	lines := make([]string, len(songs))
	for i, sg := range songs {
		lines[i] = fmt.Sprintf("%d. %s - %s", i+1, sg.Artist, sg.Title)
	}
	c.sendChat(strings.Join(lines, "\n"))
}

const infoText = "I am MusicCRS, a conversational recommender system for music. " +
	"I can help you create playlists, add or remove songs, and view what you have so far. " +
	"For playlist management, use commands starting with '/pl'. Type '/pl' for help."

func plHelp() string {
	return strings.Join([]string{
		"Playlist commands:",
		" - /pl use [playlist name]   (create/switch playlist)",
		" - /pl add [artist] : [title]",
		" - /pl add [title]   (disambiguate if needed with '/pl choose [number]')",
		" - /pl remove [artist] : [title]",
		" - /pl view [name]",
		" - /pl clear [name]",
		" - /pl delete [name]",
		" - /pl choose [number from the last list]",
	}, "\n")
}
