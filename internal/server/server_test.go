package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Kanskikuro/dat640-project/internal/catalog"
	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/store"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

const testTimeout = 2 * time.Second

type testEnv struct {
	srv *Server
	hub *Hub
	url string
}

// startServer brings up a full server on an httptest listener.
func startServer(t *testing.T, cat *catalog.Catalog, rdb *redis.Client) *testEnv {
	t.Helper()

	hub := NewHub()
	go hub.Run()

	srv := NewServer(hub, store.NewMemStore(), cat, rdb, context.Background())
	if rdb != nil {
		go srv.RunRedisSubscriber()
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		hub.Stop()
	})

	return &testEnv{
		srv: srv,
		hub: hub,
		url: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// session is a test websocket client with frame buffering, so expect
// helpers can match frames regardless of chat/event interleaving.
type session struct {
	t    *testing.T
	conn *websocket.Conn
	buf  []transport.Envelope
}

func dial(t *testing.T, env *testEnv) *session {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &session{t: t, conn: conn}
}

func (s *session) send(event string, payload any) {
	s.t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		s.t.Fatalf("marshal payload: %v", err)
	}
	frame, _ := json.Marshal(transport.Envelope{Event: event, Payload: b})
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.t.Fatalf("write: %v", err)
	}
}

func (s *session) next() (transport.Envelope, bool) {
	if len(s.buf) > 0 {
		env := s.buf[0]
		s.buf = s.buf[1:]
		return env, true
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(testTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return transport.Envelope{}, false
	}
	var env transport.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.t.Fatalf("bad frame: %v", err)
	}
	return env, true
}

// expectEvent reads frames until a playlist event of the wanted type
// arrives, returning its data. Unrelated frames are dropped.
func (s *session) expectEvent(typ string) json.RawMessage {
	s.t.Helper()
	var skipped []transport.Envelope
	for {
		env, ok := s.next()
		if !ok {
			s.t.Fatalf("timed out waiting for %q event", typ)
		}
		if env.Event != protocol.EventPlaylist {
			skipped = append(skipped, env)
			continue
		}
		var ev protocol.Event
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			s.t.Fatalf("bad event payload: %v", err)
		}
		if ev.Type == typ {
			s.buf = append(skipped, s.buf...)
			return ev.Data
		}
	}
}

// expectChat reads frames until a chat reply containing substr arrives.
func (s *session) expectChat(substr string) string {
	s.t.Helper()
	var skipped []transport.Envelope
	for {
		env, ok := s.next()
		if !ok {
			s.t.Fatalf("timed out waiting for chat containing %q", substr)
		}
		if env.Event != protocol.EventChat {
			skipped = append(skipped, env)
			continue
		}
		var msg protocol.ChatMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.t.Fatalf("bad chat payload: %v", err)
		}
		if strings.Contains(msg.Text, substr) {
			s.buf = append(skipped, s.buf...)
			return msg.Text
		}
	}
}

func decodeStrings(t *testing.T, data json.RawMessage) []string {
	t.Helper()
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode string slice: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %v", w.Result().Status)
	}
}

func TestWelcome(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)
	c.expectChat("Hello, I'm MusicCRS")
}

func TestCreateAndCatalog(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "road trip"})
	var name string
	if err := json.Unmarshal(c.expectEvent(protocol.TypeCreated), &name); err != nil || name != "road trip" {
		t.Fatalf("created data = %q, %v", name, err)
	}
	c.expectChat("Created playlist 'road trip'.")

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "road trip"})
	c.expectChat("already exists")

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "gym"})
	c.expectEvent(protocol.TypeCreated)

	c.send(protocol.CmdViewPlaylists, struct{}{})
	names := decodeStrings(t, c.expectEvent(protocol.TypePlaylists))
	if len(names) != 2 || names[0] != "road trip" || names[1] != "gym" {
		t.Errorf("catalog = %v, want creation order", names)
	}
}

func TestSongLifecycle(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "mix"})
	c.expectEvent(protocol.TypeCreated)

	c.send(protocol.CmdAdd, protocol.AddSong{Song: "Kendrick Lamar : HUMBLE.", PlaylistName: "mix"})
	c.expectEvent(protocol.TypeAdded)
	c.expectChat("Added to 'mix': Kendrick Lamar - HUMBLE.")

	// Duplicate is rejected with a chat reply, no event.
	c.send(protocol.CmdAdd, protocol.AddSong{Song: "kendrick lamar : humble.", PlaylistName: "mix"})
	c.expectChat("Song already in playlist 'mix'")

	c.send(protocol.CmdView, protocol.PlaylistRef{PlaylistName: "mix"})
	songs := decodeStrings(t, c.expectEvent(protocol.TypeSongs))
	if len(songs) != 1 || songs[0] != "Kendrick Lamar : HUMBLE." {
		t.Errorf("songs = %v", songs)
	}

	c.send(protocol.CmdRemove, protocol.RemoveSong{Artist: "Kendrick Lamar", Title: "HUMBLE."})
	c.expectEvent(protocol.TypeRemoved)
	c.expectChat("Removed from 'mix'")

	c.send(protocol.CmdView, protocol.PlaylistRef{PlaylistName: "mix"})
	if songs := decodeStrings(t, c.expectEvent(protocol.TypeSongs)); len(songs) != 0 {
		t.Errorf("songs after removal = %v", songs)
	}

	c.send(protocol.CmdRemove, protocol.RemoveSong{Artist: "Nobody", Title: "Nothing"})
	c.expectChat("Song not found in playlist 'mix'")
}

func TestSwitchAndDelete(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "a"})
	c.expectEvent(protocol.TypeCreated)
	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "b"})
	c.expectEvent(protocol.TypeCreated)

	c.send(protocol.CmdSwitch, protocol.PlaylistRef{PlaylistName: "a"})
	var name string
	_ = json.Unmarshal(c.expectEvent(protocol.TypeSwitched), &name)
	if name != "a" {
		t.Errorf("switched data = %q", name)
	}

	// Switching to an unknown playlist creates it, "use" semantics.
	c.send(protocol.CmdSwitch, protocol.PlaylistRef{PlaylistName: "fresh"})
	_ = json.Unmarshal(c.expectEvent(protocol.TypeCreated), &name)
	if name != "fresh" {
		t.Errorf("created data = %q", name)
	}

	c.send(protocol.CmdRemovePlaylist, protocol.PlaylistRef{PlaylistName: "fresh"})
	_ = json.Unmarshal(c.expectEvent(protocol.TypeDeleted), &name)
	if name != "fresh" {
		t.Errorf("deleted data = %q", name)
	}

	c.send(protocol.CmdRemovePlaylist, protocol.PlaylistRef{PlaylistName: "fresh"})
	c.expectChat("not found")
}

func TestClearBroadcastsFallbackEvent(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "mix"})
	c.expectEvent(protocol.TypeCreated)
	c.send(protocol.CmdAdd, protocol.AddSong{Song: "A : B", PlaylistName: "mix"})
	c.expectEvent(protocol.TypeAdded)

	c.send(protocol.CmdClear, protocol.PlaylistRef{PlaylistName: "mix"})
	var name string
	_ = json.Unmarshal(c.expectEvent("cleared"), &name)
	if name != "mix" {
		t.Errorf("cleared data = %q", name)
	}
	c.expectChat("Cleared playlist 'mix'.")

	c.send(protocol.CmdView, protocol.PlaylistRef{PlaylistName: "mix"})
	if songs := decodeStrings(t, c.expectEvent(protocol.TypeSongs)); len(songs) != 0 {
		t.Errorf("songs after clear = %v", songs)
	}
}

func TestTitleOnlyAdd(t *testing.T) {
	cat, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()
	ctx := context.Background()
	seed := []catalog.Track{
		{Artist: "Kendrick Lamar", Title: "HUMBLE.", Album: "DAMN."},
		{Artist: "A Cover Band", Title: "HUMBLE.", Album: "Covers"},
		{Artist: "Daft Punk", Title: "One More Time", Album: "Discovery"},
	}
	for _, tr := range seed {
		if err := cat.Insert(ctx, tr); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}

	env := startServer(t, cat, nil)
	c := dial(t, env)

	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "mix"})
	c.expectEvent(protocol.TypeCreated)

	t.Run("no match", func(t *testing.T) {
		c.send(protocol.CmdAdd, protocol.AddSong{Song: "Unknown Tune", PlaylistName: "mix"})
		c.expectChat("No songs found with title 'Unknown Tune'.")
	})

	t.Run("single match added directly", func(t *testing.T) {
		c.send(protocol.CmdAdd, protocol.AddSong{Song: "One More Time", PlaylistName: "mix"})
		c.expectEvent(protocol.TypeAdded)
		c.expectChat("Added to 'mix': Daft Punk - One More Time.")
	})

	t.Run("multiple matches need a choose", func(t *testing.T) {
		c.send(protocol.CmdAdd, protocol.AddSong{Song: "HUMBLE.", PlaylistName: "mix"})
		reply := c.expectChat("Multiple matches:")
		if !strings.Contains(reply, "1. A Cover Band : HUMBLE.") {
			t.Errorf("disambiguation reply missing candidates:\n%s", reply)
		}

		c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl choose 2"})
		c.expectEvent(protocol.TypeAdded)
		c.expectChat("Added to 'mix': Kendrick Lamar - HUMBLE.")
	})

	t.Run("choose with nothing pending shows help", func(t *testing.T) {
		c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl choose 1"})
		c.expectChat("Playlist commands:")
	})
}

func TestChatAgent(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl use road trip"})
	c.expectEvent(protocol.TypeCreated)

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl add Kendrick Lamar : HUMBLE."})
	c.expectEvent(protocol.TypeAdded)

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl view"})
	c.expectChat("1. Kendrick Lamar - HUMBLE.")

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl remove Kendrick Lamar : HUMBLE."})
	c.expectEvent(protocol.TypeRemoved)

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl view"})
	c.expectChat("Playlist is empty.")

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/info"})
	c.expectChat("conversational recommender system")

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "play something nice"})
	c.expectChat("I'm sorry, I don't understand that command.")

	c.send(protocol.CmdChat, protocol.ChatMessage{Text: "/pl"})
	c.expectChat("Playlist commands:")
}

func TestMutationBroadcastReachesAllSessions(t *testing.T) {
	env := startServer(t, nil, nil)
	c1 := dial(t, env)
	c2 := dial(t, env)
	// The welcome follows hub registration, so once it arrives the
	// session is guaranteed to see subsequent broadcasts.
	c1.expectChat("Hello")
	c2.expectChat("Hello")

	c1.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "shared"})

	var name string
	_ = json.Unmarshal(c1.expectEvent(protocol.TypeCreated), &name)
	if name != "shared" {
		t.Errorf("creator saw %q", name)
	}
	_ = json.Unmarshal(c2.expectEvent(protocol.TypeCreated), &name)
	if name != "shared" {
		t.Errorf("bystander saw %q", name)
	}

	// Session-scoped snapshots stay private: only c2 asked.
	c2.send(protocol.CmdViewPlaylists, struct{}{})
	names := decodeStrings(t, c2.expectEvent(protocol.TypePlaylists))
	if len(names) != 1 || names[0] != "shared" {
		t.Errorf("catalog on second session = %v", names)
	}
}

func TestRedisFanout(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	env := startServer(t, nil, rdb)
	c := dial(t, env)

	// Full loop: command -> store -> Redis publish -> subscriber -> hub -> session.
	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "via-redis"})
	var name string
	_ = json.Unmarshal(c.expectEvent(protocol.TypeCreated), &name)
	if name != "via-redis" {
		t.Errorf("created data = %q", name)
	}
}

func TestMalformedCommandPayloads(t *testing.T) {
	env := startServer(t, nil, nil)
	c := dial(t, env)
	c.expectChat("Hello")

	// None of these may crash the session.
	frames := []string{
		`{"event":"pl_create","payload":42}`,
		`{"event":"pl_add","payload":["array"]}`,
		`not json`,
		`{"event":"bogus_command","payload":{}}`,
	}
	for _, raw := range frames {
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// The session must still be alive and functional.
	c.send(protocol.CmdCreate, protocol.PlaylistRef{PlaylistName: "still alive"})
	c.expectEvent(protocol.TypeCreated)
}
