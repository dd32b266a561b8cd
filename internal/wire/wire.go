// Package wire is the concrete gorilla/websocket Transport implementation
// and gin connect handler for internal/transport's Adapter. internal/
// transport only depends on its own Transport interface; this package is
// the reference collaborator that actually opens a socket.
package wire

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// writeDeadline bounds every outbound frame so one slow client can't pin
// the connection's write goroutine forever.
const writeDeadline = 5 * time.Second

// Conn adapts a gorilla/websocket connection to transport.Transport: one
// WriteMessage call per Send, framing left entirely to the caller.
type Conn struct {
	ws *websocket.Conn
}

func (c *Conn) Send(payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.ws.WriteMessage(websocket.BinaryMessage, payload)
}

func (c *Conn) Close() error { return c.ws.Close() }

// ConnectHandler upgrades an HTTP request to a websocket connection, resolves
// which land instance the connection belongs to via resolveAdapter (keyed on
// whatever the gin route encodes — a URL param, a header, a fixed land for a
// single-instance deployment), drives that instance's join handshake through
// resolver, and then runs a read loop whose only job is disconnect detection
// and handing raw action frames to onAction — decoding an action envelope
// into a land-specific HandleAction call is the concern of whatever
// registers onAction (cmd/landkeeper's dispatch loop, in the reference
// binary).
func ConnectHandler(
	resolveAdapter func(c *gin.Context) (*transport.Adapter, error),
	resolver transport.AuthInfoResolver,
	onAction func(a *transport.Adapter, sessionID ids.SessionID, frame []byte),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := resolveAdapter(c)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		sessionID := ids.NewSessionID()
		client := ids.NewClientID()
		conn := &Conn{ws: ws}
		a.OnConnect(sessionID, client, conn)

		if err := a.PerformJoin(sessionID, "", resolver, c.Request.URL.Path, c.Request.RequestURI); err != nil {
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
			_ = ws.Close()
			return
		}

		for {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				a.OnDisconnect(sessionID)
				return
			}
			if onAction != nil {
				onAction(a, sessionID, frame)
			}
		}
	}
}
