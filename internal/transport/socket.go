package transport

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// Socket is a websocket-backed Transport. A single read pump decodes
// envelopes and runs handlers sequentially, so no handler ever races
// another; a write pump serializes outbound frames.
type Socket struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	// mu guards subs. The read pump holds it while running handlers,
	// which is what makes unsubscribe a hard barrier: once an
	// unsubscribe call returns, the handler is not running and will
	// not run again. Handlers must not call On/unsubscribe themselves.
	mu   sync.Mutex
	subs map[string][]*subscription
}

type subscription struct {
	event   string
	h       Handler
	removed bool
}

var _ Transport = (*Socket)(nil)

// Dial connects to a server websocket endpoint and starts the pumps.
func Dial(url string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewSocket(conn), nil
}

// NewSocket wraps an already-established websocket connection.
func NewSocket(conn *websocket.Conn) *Socket {
	s := &Socket{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
		subs: make(map[string][]*subscription),
	}
	go s.writePump()
	go s.readPump()
	return s
}

func (s *Socket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: data})
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case <-s.done:
		return ErrClosed
	case s.send <- frame:
		return nil
	}
}

func (s *Socket) On(event string, h Handler) func() {
	sub := &subscription{event: event, h: h}

	s.mu.Lock()
	s.subs[event] = append(s.subs[event], sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub.removed {
			return
		}
		sub.removed = true
		list := s.subs[event]
		for i, cand := range list {
			if cand == sub {
				s.subs[event] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// Done is closed when the socket is gone, whichever side ended it.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

// dispatch runs every handler registered for the envelope's event, in
// registration order, under the subscription lock.
func (s *Socket) dispatch(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[env.Event] {
		sub.h(env.Payload)
	}
}

func (s *Socket) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("transport: read: %v", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("transport: bad frame: %v", err)
			continue
		}
		s.dispatch(env)
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
