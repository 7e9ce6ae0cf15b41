package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Kanskikuro/dat640-project/internal/playlist"
	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ChatView ViewState = iota
	ConfirmDeleteView
)

// maxChatLines bounds the chat scrollback kept in the model.
const maxChatLines = 200

// StateMsg carries a fresh sync-engine snapshot into the model.
type StateMsg playlist.State

// InboundChatMsg carries an agent chat reply into the model.
type InboundChatMsg protocol.ChatMessage

// DisconnectedMsg ends the session when the server connection drops.
type DisconnectedMsg struct{ Err error }

// Model represents the TUI application state.
type Model struct {
	engine   *playlist.Engine
	tr       transport.Transport
	username string

	view   ViewState
	width  int
	height int

	state      playlist.State
	messages   []protocol.ChatMessage
	input      textinput.Model
	confirm    string
	showCounts bool
	err        error

	help help.Model
	keys keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	send   key.Binding
	next   key.Binding
	prev   key.Binding
	delete key.Binding
	yes    key.Binding
	no     key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		next: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next playlist"),
		),
		prev: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "prev playlist"),
		),
		delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "delete playlist"),
		),
		yes: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "yes"),
		),
		no: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "no"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.send, k.next, k.delete, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.send, k.next, k.prev},
		{k.delete, k.yes, k.no},
		{k.quit},
	}
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(engine *playlist.Engine, tr transport.Transport, username string, showCounts bool) *Model {
	input := textinput.New()
	input.Placeholder = "Message MusicCRS, or /pl for playlist commands"
	input.Focus()
	input.CharLimit = 512

	return &Model{
		engine:     engine,
		tr:         tr,
		username:   username,
		view:       ChatView,
		state:      engine.State(),
		input:      input,
		showCounts: showCounts,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case StateMsg:
		m.state = playlist.State(msg)
		return m, nil

	case InboundChatMsg:
		m.appendChat(protocol.ChatMessage(msg))
		return m, nil

	case DisconnectedMsg:
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		switch m.view {
		case ChatView:
			return m.handleChatKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmKeys(msg)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.appendChat(protocol.ChatMessage{Sender: m.username, Text: text})
		if err := m.tr.Emit(protocol.CmdChat, protocol.ChatMessage{Sender: m.username, Text: text}); err != nil {
			m.err = err
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.keys.next):
		m.engine.SwitchPlaylist(m.neighborPlaylist(1))
		return m, nil

	case key.Matches(msg, m.keys.prev):
		m.engine.SwitchPlaylist(m.neighborPlaylist(-1))
		return m, nil

	case key.Matches(msg, m.keys.delete):
		if m.state.Current != "" {
			m.confirm = m.state.Current
			m.view = ConfirmDeleteView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.engine.RemovePlaylist(m.confirm)
		m.confirm = ""
		m.view = ChatView
		return m, nil
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.confirm = ""
		m.view = ChatView
		return m, nil
	}
	return m, nil
}

// neighborPlaylist picks the catalog entry next to the active one,
// wrapping around. With no active playlist it picks the first.
func (m *Model) neighborPlaylist(step int) string {
	names := m.state.Playlists
	if len(names) == 0 {
		return ""
	}
	cur := -1
	for i, name := range names {
		if name == m.state.Current {
			cur = i
			break
		}
	}
	if cur < 0 {
		return names[0]
	}
	return names[(cur+step+len(names))%len(names)]
}

func (m *Model) appendChat(msg protocol.ChatMessage) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxChatLines {
		m.messages = m.messages[len(m.messages)-maxChatLines:]
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Connection lost: %v", m.err))
	}
	if m.view == ConfirmDeleteView {
		return m.renderConfirm()
	}
	return m.renderChat()
}

func (m *Model) renderChat() string {
	title := styles.title.Render("MusicCRS")

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(m.renderSidebar())
	b.WriteString("\n")

	start := 0
	if visible := m.chatHeight(); len(m.messages) > visible {
		start = len(m.messages) - visible
	}
	for _, msg := range m.messages[start:] {
		sender := msg.Sender
		if sender != m.username {
			sender = styles.agent.Render(sender)
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", sender, msg.Text))
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// chatHeight is how many chat lines fit above the sidebar and input.
func (m *Model) chatHeight() int {
	h := m.height - len(m.state.Playlists) - len(m.state.Songs) - 8
	if h < 5 {
		h = 5
	}
	return h
}

func (m *Model) renderSidebar() string {
	var b strings.Builder

	if len(m.state.Playlists) == 0 {
		b.WriteString(styles.help.Render("No playlists yet. Try '/pl use road trip'."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("Playlists:\n")
	for _, name := range m.state.Playlists {
		marker := "  "
		label := name
		if name == m.state.Current {
			marker = "> "
			label = styles.active.Render(name)
		}
		if m.showCounts {
			b.WriteString(fmt.Sprintf("%s%s (%d)\n", marker, label, m.state.Counts[name]))
		} else {
			b.WriteString(fmt.Sprintf("%s%s\n", marker, label))
		}
	}

	if m.state.Current != "" {
		b.WriteString(fmt.Sprintf("Songs in %s:\n", m.state.Current))
		if len(m.state.Songs) == 0 {
			b.WriteString(styles.help.Render("  (empty)"))
			b.WriteString("\n")
		}
		for i, sg := range m.state.Songs {
			b.WriteString(fmt.Sprintf("  %d. %s - %s\n", i+1, sg.Artist, sg.Title))
		}
	}
	return b.String()
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Delete playlist '%s'?", m.confirm))
	info := fmt.Sprintf("\n%d songs will be gone.\n", m.state.Counts[m.confirm])

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
