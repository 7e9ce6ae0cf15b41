// Package ui implements the interactive chat terminal using bubbletea's Elm architecture.
//
// The layout pairs a chat pane (conversation with the MusicCRS agent plus
// an input line) with a playlist sidebar rendered from the sync engine's
// latest snapshot: the playlist catalog with song-count badges, and the
// active playlist's songs.
//
// The [Model] implements bubbletea's standard Init/Update/View pattern.
// Server traffic never reaches the model directly: the sync engine and the
// chat subscription feed it via [StateMsg] and [InboundChatMsg], which the
// runner injects with Program.Send.
//
// Keyboard bindings: enter sends the input line as a chat message, ctrl+n
// and ctrl+p switch the active playlist, ctrl+d asks for a y/n
// confirmation before deleting it, ctrl+c quits.
package ui
