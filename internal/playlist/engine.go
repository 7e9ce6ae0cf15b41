// Package playlist implements the client side of the playlist
// synchronization protocol: it owns the local session state, issues
// commands to the transport, and reconciles inbound events against
// that state.
//
// The engine never trusts a mutation notification (added/removed/
// created/deleted) to carry new state. It applies an optimistic nudge
// to the local count cache for immediate feedback and then re-requests
// the authoritative lists; the next songs/playlists snapshot overwrites
// any drift. The channel offers no ordering or pairing guarantees, so
// re-deriving state from snapshots is the only safe recovery path.
package playlist

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/song"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

// State is a read-only snapshot of the session for the render pass.
type State struct {
	// Current is the active playlist name, or "" when none is active.
	// When non-empty it is always a member of Playlists.
	Current string

	// Playlists is the catalog, in server order.
	Playlists []string

	// Songs are the active playlist's songs, in server order. Empty
	// between a playlist switch and the next snapshot.
	Songs []song.Song

	// Counts caches the song count per playlist for badge rendering.
	// Keys track the catalog exactly; values are eventually consistent.
	Counts map[string]int
}

// Engine is the playlist sync engine. All state mutation happens inside
// inbound-event handlers, which the transport runs one at a time in
// arrival order; State may be called from any goroutine.
type Engine struct {
	tr       transport.Transport
	onChange func(State)

	mu        sync.Mutex
	closed    bool
	current   string
	playlists []string
	songs     []song.Song
	counts    map[string]int
	unsub     func()
}

// New subscribes the engine to the transport's playlist events and
// requests the initial catalog. onChange, when non-nil, is invoked with
// a fresh snapshot after every applied event.
func New(tr transport.Transport, onChange func(State)) *Engine {
	e := &Engine{
		tr:       tr,
		onChange: onChange,
		counts:   make(map[string]int),
	}
	e.unsub = tr.On(protocol.EventPlaylist, e.handleEvent)
	e.emit(protocol.CmdViewPlaylists, struct{}{})
	return e
}

// Close detaches the engine from the transport. Idempotent. When it
// returns, no further state mutation can happen, even from events
// already in flight.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsub := e.unsub
	e.unsub = nil
	e.mu.Unlock()

	// Called outside the lock: the transport blocks unsubscribe while a
	// dispatch is running, and that dispatch may be waiting on e.mu.
	if unsub != nil {
		unsub()
	}
}

// State returns a copy of the session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// CreatePlaylist asks the server for a new playlist. Blank names are a
// silent no-op; the UI disables the control instead of surfacing errors.
func (e *Engine) CreatePlaylist(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	e.emit(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: name})
}

// SwitchPlaylist activates another playlist. Switching to the playlist
// that is already active issues no command.
func (e *Engine) SwitchPlaylist(name string) {
	e.mu.Lock()
	same := name == e.current
	e.mu.Unlock()
	if same {
		return
	}
	e.emit(protocol.CmdSwitch, protocol.PlaylistRef{PlaylistName: name})
}

// RemovePlaylist deletes a playlist. Destructive-action confirmation is
// the caller's responsibility.
func (e *Engine) RemovePlaylist(name string) {
	e.emit(protocol.CmdRemovePlaylist, protocol.PlaylistRef{PlaylistName: name})
}

// AddSong adds a song spec ("artist : title", or title-only) to the
// named playlist, defaulting to the active one. No-op when the text is
// blank or no playlist is active.
func (e *Engine) AddSong(songText, playlistName string) {
	songText = strings.TrimSpace(songText)
	if songText == "" {
		return
	}
	e.mu.Lock()
	active := e.current
	e.mu.Unlock()
	if active == "" {
		return
	}
	if playlistName == "" {
		playlistName = active
	}
	e.emit(protocol.CmdAdd, protocol.AddSong{Song: songText, PlaylistName: playlistName})
}

// RemoveSong removes a song from the active playlist. No-op when no
// playlist is active.
func (e *Engine) RemoveSong(artist, title string) {
	e.mu.Lock()
	active := e.current
	e.mu.Unlock()
	if active == "" {
		return
	}
	e.emit(protocol.CmdRemove, protocol.RemoveSong{Artist: artist, Title: title})
}

// handleEvent dispatches one inbound playlist event. The transport
// guarantees sequential invocation, so handlers always observe the
// state left by the previous event.
func (e *Engine) handleEvent(payload json.RawMessage) {
	var ev protocol.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("playlist: bad event payload: %v", err)
		e.refreshAll()
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	switch ev.Type {
	case protocol.TypeSongs:
		e.applySongsLocked(ev.Data)

	case protocol.TypePlaylists:
		e.applyPlaylistsLocked(ev.Data)

	case protocol.TypeAdded:
		e.refreshAllLocked()
		if e.current != "" {
			e.counts[e.current]++
		}

	case protocol.TypeRemoved:
		e.refreshAllLocked()
		if e.current != "" && e.counts[e.current] > 0 {
			e.counts[e.current]--
		}

	case protocol.TypeSwitched:
		if name, ok := stringData(ev.Data); ok && name != "" {
			e.current = name
			e.songs = nil
			e.emitLocked(protocol.CmdView, protocol.PlaylistRef{PlaylistName: name})
		}
		e.emitLocked(protocol.CmdViewPlaylists, struct{}{})

	case protocol.TypeCreated:
		if name, ok := stringData(ev.Data); ok && name != "" {
			e.current = name
			e.songs = nil
			e.counts[name] = 0
			e.emitLocked(protocol.CmdView, protocol.PlaylistRef{PlaylistName: name})
		}
		e.emitLocked(protocol.CmdViewPlaylists, struct{}{})

	case protocol.TypeDeleted:
		if name, ok := stringData(ev.Data); ok && name != "" {
			delete(e.counts, name)
			if name == e.current {
				e.current = ""
				e.songs = nil
			}
		}
		e.emitLocked(protocol.CmdViewPlaylists, struct{}{})

	default:
		log.Printf("playlist: unrecognized event type %q", ev.Type)
		e.refreshAllLocked()
	}

	state := e.snapshotLocked()
	onChange := e.onChange
	e.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
}

// applySongsLocked replaces the active playlist's snapshot and corrects
// the cached count. This is the reconciliation pass that overwrites any
// optimistic drift.
func (e *Engine) applySongsLocked(data json.RawMessage) {
	var specs []string
	if err := json.Unmarshal(data, &specs); err != nil {
		log.Printf("playlist: bad songs data: %v", err)
		e.refreshAllLocked()
		return
	}
	songs := make([]song.Song, 0, len(specs))
	for _, spec := range specs {
		songs = append(songs, song.Parse(spec))
	}
	e.songs = songs
	if e.current != "" {
		e.counts[e.current] = len(songs)
	}
}

// applyPlaylistsLocked replaces the catalog, reconciles the count cache
// keys against it and repairs the active selection if its playlist is
// gone.
func (e *Engine) applyPlaylistsLocked(data json.RawMessage) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		log.Printf("playlist: bad playlists data: %v", err)
		e.refreshAllLocked()
		return
	}
	e.playlists = names

	counts := make(map[string]int, len(names))
	for _, name := range names {
		counts[name] = e.counts[name]
	}
	e.counts = counts

	if e.current != "" && !contains(names, e.current) {
		e.current = ""
		e.songs = nil
	}
	if e.current == "" && len(names) > 0 {
		e.current = names[0]
		e.songs = nil
		e.emitLocked(protocol.CmdView, protocol.PlaylistRef{PlaylistName: e.current})
	}
}

// refreshAll re-requests the catalog and, when a playlist is active,
// its songs.
func (e *Engine) refreshAll() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.refreshAllLocked()
	e.mu.Unlock()
}

func (e *Engine) refreshAllLocked() {
	e.emitLocked(protocol.CmdViewPlaylists, struct{}{})
	if e.current != "" {
		e.emitLocked(protocol.CmdView, protocol.PlaylistRef{PlaylistName: e.current})
	}
}

func (e *Engine) snapshotLocked() State {
	st := State{
		Current:   e.current,
		Playlists: append([]string(nil), e.playlists...),
		Songs:     append([]song.Song(nil), e.songs...),
		Counts:    make(map[string]int, len(e.counts)),
	}
	for name, n := range e.counts {
		st.Counts[name] = n
	}
	return st
}

func (e *Engine) emit(event string, payload any) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	if err := e.tr.Emit(event, payload); err != nil {
		log.Printf("playlist: emit %s: %v", event, err)
	}
}

// emitLocked sends a command while e.mu is held. The transport's Emit
// only touches its send channel, so no lock ordering issue arises.
func (e *Engine) emitLocked(event string, payload any) {
	if err := e.tr.Emit(event, payload); err != nil {
		log.Printf("playlist: emit %s: %v", event, err)
	}
}

func stringData(data json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("playlist: bad name data: %v", err)
		return "", false
	}
	return s, true
}

func contains(names []string, name string) bool {
	for _, cand := range names {
		if cand == name {
			return true
		}
	}
	return false
}
