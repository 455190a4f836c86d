package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"trafficserver/internal/logger"
	hub "trafficserver/internal/service/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// keepAlive extends the read deadline on every pong.
func keepAlive(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
}

// pingLoop pings ch until done is closed or a ping fails.
func pingLoop(ch *hub.Channel, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ch.Ping(writeWait); err != nil {
				return
			}
		}
	}
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the viewer hub to receive frame previews.
func ViewWebsocketHandler(viewers *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		ch := viewers.Register(r.URL.Query().Get("id"), connection)
		defer viewers.Unregister(ch.ID)

		keepAlive(connection)
		done := make(chan struct{})
		defer close(done)
		go pingLoop(ch, done)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
