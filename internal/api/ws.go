package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"sequence/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// outboxSize bounds how many undelivered events a slow client can pile up
// before Send starts dropping them, per hub.Channel's "must not block the
// caller for long" contract.
const outboxSize = 32

var errOutboxFull = errors.New("wsChannel: outbox full, event dropped")

// wsChannel adapts a gorilla/websocket connection to hub.Channel. Send only
// enqueues onto outbox; a dedicated writer goroutine owns every
// conn.WriteJSON call, so a stalled socket write never blocks whoever is
// holding the engine's coarse lock when Send is called (spec §5).
type wsChannel struct {
	conn      *websocket.Conn
	outbox    chan hub.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{conn: conn, outbox: make(chan hub.Event, outboxSize), done: make(chan struct{})}
	go c.writeLoop()
	return c
}

func (c *wsChannel) Send(event hub.Event) error {
	select {
	case c.outbox <- event:
		return nil
	case <-c.done:
		return nil
	default:
		return errOutboxFull
	}
}

func (c *wsChannel) writeLoop() {
	for {
		select {
		case event := <-c.outbox:
			if err := c.conn.WriteJSON(event); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

type inboundMessage struct {
	Type string `json:"type"`
}

// handleWebSocket implements attach (spec §4.5, §6.2): the session token
// arrives as the sessionId query parameter; a missing or invalid token
// closes with 4001/4002 before the duplex loop starts (spec §6.3).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token := r.URL.Query().Get("sessionId")
	if token == "" {
		if conn, err := upgrader.Upgrade(w, r, nil); err == nil {
			closeWithCode(conn, 4001, "missing session token")
		}
		return
	}

	sess, err := s.eng.Authenticate(token)
	if err != nil {
		if conn, uerr := upgrader.Upgrade(w, r, nil); uerr == nil {
			closeWithCode(conn, 4002, "session token invalid or expired")
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ch := newWSChannel(conn)
	defer ch.Close()
	s.eng.Attach(sess.PlayerID, ch)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "ping" {
			s.eng.RecordPing(sess.PlayerID)
		}
	}
	s.eng.OnChannelClosed(sess.PlayerID)
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
