package server

import "sync"

// Hub owns the set of connected chat sessions and fans broadcast frames
// out to all of them. Mutation notifications go through here (locally,
// or via Redis when several instances share the playlist store);
// session-scoped replies bypass it.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				_ = client.conn.Close()
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow consumer; drop it rather than stall the room.
					delete(h.clients, client)
					close(client.send)
					_ = client.conn.Close()
				}
			}

		case <-h.stop:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				_ = client.conn.Close()
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}
