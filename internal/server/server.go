// Package server implements the MusicCRS chat and playlist service:
// a websocket endpoint that accepts pl_* commands and chat utterances,
// applies them to the shared playlist store, and pushes discriminated
// playlist events back. Mutation notifications are broadcast to every
// session; snapshots and chat replies stay session-scoped.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/Kanskikuro/dat640-project/internal/catalog"
	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/store"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

const agentName = "MusicCRS"

var upgrader = websocket.Upgrader{
	// The service runs behind the gateway, which enforces origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	hub   *Hub
	store store.Store
	cat   *catalog.Catalog // optional: nil disables title-only lookups
	rdb   *redis.Client    // optional: nil keeps broadcasts in-process
	ctx   context.Context
}

func NewServer(hub *Hub, st store.Store, cat *catalog.Catalog, rdb *redis.Client, ctx context.Context) *Server {
	return &Server{
		hub:   hub,
		store: st,
		cat:   cat,
		rdb:   rdb,
		ctx:   ctx,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "musiccrs",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("musiccrs: ws upgrade: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump(s)

	client.sendChat("Hello, I'm MusicCRS. What are you in the mood for?")
}

// RunRedisSubscriber feeds broadcast frames published by any server
// instance into the local hub.
func (s *Server) RunRedisSubscriber() {
	sub := s.rdb.Subscribe(s.ctx, "broadcast")
	defer sub.Close()

	ch := sub.Channel()
	for msg := range ch {
		s.hub.broadcast <- []byte(msg.Payload)
	}
}

// broadcastEvent pushes a playlist event to every connected session,
// through Redis when configured so sibling instances see it too.
func (s *Server) broadcastEvent(typ string, data any) {
	frame, err := eventFrame(typ, data)
	if err != nil {
		log.Printf("musiccrs: marshal broadcast: %v", err)
		return
	}
	if s.rdb != nil {
		if err := s.rdb.Publish(s.ctx, "broadcast", string(frame)).Err(); err != nil {
			log.Printf("musiccrs: publish broadcast: %v", err)
		}
		return
	}
	s.hub.broadcast <- frame
}

// eventFrame wraps a discriminated playlist event into a wire frame.
func eventFrame(typ string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return marshalFrame(protocol.EventPlaylist, protocol.Event{Type: typ, Data: raw})
}

func marshalFrame(event string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(transport.Envelope{Event: event, Payload: b})
}
