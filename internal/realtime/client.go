package realtime

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile apps and the admin console connect from their own origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client binds one websocket to a dispatcher session.
type client struct {
	conn       *websocket.Conn
	session    *Session
	dispatcher *Dispatcher
}

// ServeWS upgrades the request and runs the connection lifecycle. The bearer
// token is taken from the "token" query parameter or the Authorization
// header; an invalid credential closes the socket before any room joins.
func ServeWS(d *Dispatcher, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	session, err := d.Connect(r.Context(), uuid.NewString(), token)
	if err != nil {
		log.Printf("websocket authentication error: %v", err)
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid credential"), deadline)
		conn.Close()
		return
	}

	c := &client{conn: conn, session: session, dispatcher: d}
	go c.writePump()
	go c.readPump()
}

// readPump feeds inbound frames to the dispatcher until the socket dies,
// then unwinds all connection state.
func (c *client) readPump() {
	defer func() {
		c.dispatcher.Disconnect(c.session.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error for %s: %v", c.session.ID, err)
			}
			return
		}
		c.dispatcher.HandleMessage(context.Background(), c.session, raw)
	}
}

// writePump drains the session outbox onto the wire and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.session.Outbox():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.session.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
