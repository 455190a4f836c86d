package route

import (
	"net/http"
	"sync"

	"trafficserver/internal/config"
	"trafficserver/internal/handler"
	"trafficserver/internal/logger"
	"trafficserver/internal/middleware"
	"trafficserver/internal/repository"
	"trafficserver/internal/service"
	"trafficserver/internal/service/broker"
	"trafficserver/internal/service/dispatch"
	hub "trafficserver/internal/service/websocket"
)

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Manager    *service.Manager
	Devices    *hub.HubService
	Viewers    *hub.HubService
	Dispatcher *dispatch.Dispatcher
	Broker     broker.Publisher // nil when disabled
	Telemetry  repository.TelemetryRepository
	Snapshots  repository.SnapshotRepository
	Active     *sync.WaitGroup // running device handlers; may be nil
}

// SetupRoutes registers the device channels, the control API, the
// inspection endpoints and wraps the mux with the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	// Device and viewer channels
	mux.HandleFunc("GET /ws", handler.DeviceWebsocketHandler(d.Manager, d.Devices, d.Active, d.Logger))
	mux.HandleFunc("GET /ws/stream", handler.ViewWebsocketHandler(d.Viewers, d.Logger))

	// Control API
	mux.HandleFunc("POST /traffic/{cmd}", handler.TrafficCommandHandler(d.Dispatcher, d.Logger))

	// Inspection endpoints
	mux.HandleFunc("GET /api/status", handler.StatusHandler(d.Config, d.Devices, d.Viewers, d.Manager.Frames(), d.Broker, d.Logger))
	mux.HandleFunc("GET /api/frame", handler.FrameHandler(d.Manager.Frames()))
	mux.HandleFunc("GET /api/snapshots", handler.SnapshotsHandler(d.Snapshots, d.Logger))
	mux.HandleFunc("GET /api/snapshots/view", handler.ViewSnapshotHandler(d.Config))
	mux.HandleFunc("GET /api/telemetry", handler.TelemetryHandler(d.Telemetry, d.Logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(d.Logger))
	mux.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(d.Logger))

	// Auth endpoints
	mux.HandleFunc("POST /auth/login", handler.LoginHandler(d.Config, d.Logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(mux)
}
