package session

import (
	"log"
	"net/http"
	"time"

	lifecycle "github.com/ethanbaker/avatar-client/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 20 * time.Second
	writeTimeout = 5 * time.Second
)

// Frame is a single websocket message of the view stream
type Frame struct {
	Type string         `json:"type"`
	View lifecycle.View `json:"view"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Stream upgrades to a websocket and pushes the current view, then every change.
// Only the newest pending view is kept for a slow reader. The first view comes from the
// subscription itself so nothing older can follow it
func (m *module) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API-SESSION]: Failed to upgrade stream: %v", err)
		return
	}
	defer conn.Close()

	views := make(chan lifecycle.View, 1)
	unsubscribe := m.ctrl.Subscribe(func(v lifecycle.View) {
		select {
		case views <- v:
			return
		default:
		}
		// Replace the stale view
		select {
		case <-views:
		default:
		}
		select {
		case views <- v:
		default:
		}
	})
	defer unsubscribe()

	// Client frames are ignored; reading notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v lifecycle.View) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(Frame{Type: "view", View: v})
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-m.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeTimeout))
			return
		case v := <-views:
			if err := write(v); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
