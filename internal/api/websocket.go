package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"strategy-core/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Event events.Event `json:"event"`
	Data  any          `json:"data"`
}

// websocket forwards every bus event to the client as {"event","data"} JSON.
func (s *Server) websocket(c *gin.Context) {
	if s.Bus == nil {
		respondError(c, http.StatusServiceUnavailable, "EVENTS_DISABLED", "event bus not configured")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	out := make(chan wsMessage, wsBuffer)
	done := make(chan struct{})
	var unsubs []func()
	for _, e := range events.AllEvents {
		ch, unsub := s.Bus.Subscribe(e, wsBuffer)
		unsubs = append(unsubs, unsub)
		go func(e events.Event, ch <-chan any) {
			for payload := range ch {
				select {
				case out <- wsMessage{Event: e, Data: payload}:
				case <-done:
					return
				}
			}
		}(e, ch)
	}
	defer func() {
		close(done)
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	// Reader detects client close and keeps pong handling alive.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case msg := <-out:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[API] ws write failed: %v", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
