package ui

import (
	"encoding/json"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Kanskikuro/dat640-project/internal/playlist"
	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/song"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

// stubTransport records emitted envelopes and never delivers events.
type stubTransport struct {
	sent []transport.Envelope
}

func (s *stubTransport) Emit(event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, transport.Envelope{Event: event, Payload: b})
	return nil
}

func (s *stubTransport) On(string, transport.Handler) func() { return func() {} }
func (s *stubTransport) Close() error                        { return nil }

func (s *stubTransport) lastEvent() string {
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1].Event
}

func newTestModel(t *testing.T) (*Model, *stubTransport) {
	t.Helper()
	tr := &stubTransport{}
	engine := playlist.New(tr, nil)
	t.Cleanup(engine.Close)
	m := NewModel(engine, tr, "you", true)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, tr
}

func keyPress(m *Model, k tea.KeyMsg) *Model {
	next, _ := m.Update(k)
	return next.(*Model)
}

func typeText(m *Model, text string) *Model {
	for _, r := range text {
		m = keyPress(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func stateMsg(current string, playlists []string, songs []song.Song, counts map[string]int) StateMsg {
	return StateMsg(playlist.State{
		Current:   current,
		Playlists: playlists,
		Songs:     songs,
		Counts:    counts,
	})
}

func TestSidebarRendersSnapshot(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(stateMsg("gym", []string{"road trip", "gym"},
		[]song.Song{{Artist: "Daft Punk", Title: "One More Time"}},
		map[string]int{"road trip": 3, "gym": 1}))

	view := m.View()
	for _, want := range []string{
		"road trip (3)",
		"gym (1)",
		"Songs in gym:",
		"1. Daft Punk - One More Time",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestSidebarWithoutCounts(t *testing.T) {
	tr := &stubTransport{}
	engine := playlist.New(tr, nil)
	t.Cleanup(engine.Close)
	m := NewModel(engine, tr, "you", false)

	m.Update(stateMsg("", []string{"mix"}, nil, map[string]int{"mix": 2}))

	if view := m.View(); strings.Contains(view, "(2)") {
		t.Errorf("counts rendered despite show_counts=false:\n%s", view)
	}
}

func TestEmptyCatalogHint(t *testing.T) {
	m, _ := newTestModel(t)
	if view := m.View(); !strings.Contains(view, "No playlists yet") {
		t.Errorf("missing empty-state hint:\n%s", view)
	}
}

func TestEnterSendsChat(t *testing.T) {
	m, tr := newTestModel(t)
	emitted := len(tr.sent)

	m = typeText(m, "/pl use road trip")
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyEnter})

	if tr.lastEvent() != protocol.CmdChat {
		t.Fatalf("last emitted event = %q, want %q", tr.lastEvent(), protocol.CmdChat)
	}
	var msg protocol.ChatMessage
	if err := json.Unmarshal(tr.sent[len(tr.sent)-1].Payload, &msg); err != nil {
		t.Fatalf("chat payload: %v", err)
	}
	if msg.Sender != "you" || msg.Text != "/pl use road trip" {
		t.Errorf("chat payload = %+v", msg)
	}

	// Local echo plus a cleared input line.
	if view := m.View(); !strings.Contains(view, "you: /pl use road trip") {
		t.Errorf("missing local echo:\n%s", view)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}

	// Blank input never emits.
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(tr.sent) != emitted+1 {
		t.Errorf("blank enter emitted a command")
	}
}

func TestInboundChatAppended(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(InboundChatMsg{Sender: "MusicCRS", Text: "Created playlist 'mix'."})

	if view := m.View(); !strings.Contains(view, "Created playlist 'mix'.") {
		t.Errorf("agent reply not rendered:\n%s", view)
	}
}

func TestPlaylistCycling(t *testing.T) {
	m, tr := newTestModel(t)
	m.Update(stateMsg("a", []string{"a", "b", "c"}, nil, map[string]int{"a": 0, "b": 0, "c": 0}))

	keyPress(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if tr.lastEvent() != protocol.CmdSwitch {
		t.Fatalf("ctrl+n emitted %q", tr.lastEvent())
	}
	var ref protocol.PlaylistRef
	_ = json.Unmarshal(tr.sent[len(tr.sent)-1].Payload, &ref)
	if ref.PlaylistName != "b" {
		t.Errorf("ctrl+n switched to %q, want b", ref.PlaylistName)
	}

	keyPress(m, tea.KeyMsg{Type: tea.KeyCtrlP})
	_ = json.Unmarshal(tr.sent[len(tr.sent)-1].Payload, &ref)
	if ref.PlaylistName != "c" {
		t.Errorf("ctrl+p wrapped to %q, want c", ref.PlaylistName)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, tr := newTestModel(t)
	m.Update(stateMsg("mix", []string{"mix"}, nil, map[string]int{"mix": 4}))
	emitted := len(tr.sent)

	m = keyPress(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if view := m.View(); !strings.Contains(view, "Delete playlist 'mix'?") {
		t.Fatalf("confirmation prompt not shown:\n%s", view)
	}
	if len(tr.sent) != emitted {
		t.Fatal("delete emitted before confirmation")
	}

	// n backs out without a command.
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if len(tr.sent) != emitted {
		t.Error("declined delete still emitted a command")
	}
	if m.view != ChatView {
		t.Error("declined delete did not return to chat")
	}

	// y goes through.
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	m = keyPress(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	if tr.lastEvent() != protocol.CmdRemovePlaylist {
		t.Errorf("confirmed delete emitted %q", tr.lastEvent())
	}
	if m.view != ChatView {
		t.Error("confirmed delete did not return to chat")
	}
}

func TestDeleteWithoutActivePlaylist(t *testing.T) {
	m, tr := newTestModel(t)
	emitted := len(tr.sent)

	m = keyPress(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.view != ChatView {
		t.Error("confirmation shown with nothing to delete")
	}
	if len(tr.sent) != emitted {
		t.Error("delete emitted with no active playlist")
	}
}

func TestDisconnectQuits(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(DisconnectedMsg{Err: transport.ErrClosed})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if view := m.View(); !strings.Contains(view, "Connection lost") {
		t.Errorf("missing disconnect notice:\n%s", view)
	}
}
