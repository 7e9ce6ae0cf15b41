package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/song"
	"github.com/Kanskikuro/dat640-project/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Client is one websocket chat session. The session fields (active
// playlist, pending disambiguation candidates) are only touched by this
// client's read pump, so they need no locking.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	current       string
	pending       []song.Song
	pendingTarget string
}

// readPump decodes command envelopes and hands them to the server, one
// at a time in arrival order.
func (c *Client) readPump(s *Server) {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("musiccrs: session %s read: %v", c.id, err)
			}
			return
		}
		var env transport.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("musiccrs: session %s bad frame: %v", c.id, err)
			continue
		}
		s.dispatch(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues a frame for this session without blocking the caller.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		log.Printf("musiccrs: session %s send queue full, dropping frame", c.id)
	}
}

// sendEvent delivers a session-scoped playlist event.
func (c *Client) sendEvent(typ string, data any) {
	frame, err := eventFrame(typ, data)
	if err != nil {
		log.Printf("musiccrs: session %s marshal event: %v", c.id, err)
		return
	}
	c.enqueue(frame)
}

// sendChat delivers an agent reply to this session only.
func (c *Client) sendChat(text string) {
	frame, err := marshalFrame(protocol.EventChat, protocol.ChatMessage{Sender: agentName, Text: text})
	if err != nil {
		log.Printf("musiccrs: session %s marshal chat: %v", c.id, err)
		return
	}
	c.enqueue(frame)
}
