package handler

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"trafficserver/internal/logger"
	"trafficserver/internal/service"
	hub "trafficserver/internal/service/websocket"
)

// DeviceWebsocketHandler serves GET /ws?id=<device>. Messages from one
// device are handled strictly in order on this goroutine and every cycle
// is answered before the next message is read. active, when not nil,
// counts the handlers still running so shutdown can wait for them.
func DeviceWebsocketHandler(manager *service.Manager, devices *hub.HubService, active *sync.WaitGroup, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if active != nil {
			active.Add(1)
			defer active.Done()
		}

		device := r.URL.Query().Get("id")
		if device == "" {
			device = r.RemoteAddr
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		ch := devices.Register(device, connection)
		defer devices.Unregister(ch.ID)

		keepAlive(connection)
		done := make(chan struct{})
		defer close(done)
		go pingLoop(ch, done)

		for {
			mt, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Device %s disconnected normally", device)
				} else {
					logger.Warning("Device %s disconnected with error: %v", device, err)
				}
				return
			}

			result := manager.HandleMessage(ch, mt, data)
			reply := result.Reply()
			if reply == nil {
				continue
			}
			if err := ch.SendJSON(reply); err != nil {
				logger.Error("Error replying to device %s: %v", device, err)
				return
			}
		}
	}
}
