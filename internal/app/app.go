package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trafficserver/internal/config"
	"trafficserver/internal/logger"
	"trafficserver/internal/repository/sqlite"
	"trafficserver/internal/repository/timeseries"
	"trafficserver/internal/route"
	"trafficserver/internal/service"
	"trafficserver/internal/service/ai"
	"trafficserver/internal/service/broker"
	"trafficserver/internal/service/dispatch"
	"trafficserver/internal/service/storage"
	"trafficserver/internal/service/telemetry"
	"trafficserver/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	recorder  *telemetry.Recorder
	detector  *ai.DetectorService
	snapshots *storage.SnapshotService
	devices   *websocket.HubService
	viewers   *websocket.HubService
	publisher broker.Publisher
	router    http.Handler
	active    sync.WaitGroup
}

// NewApp loads the configuration and wires every component.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.config

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.db = db

	series, err := timeseries.New(cfg.TimeSeriesDir)
	if err != nil {
		return err
	}

	telemetryRepo := sqlite.NewTelemetryRepository(db)
	snapshotRepo := sqlite.NewSnapshotRepository(db)
	a.recorder = telemetry.NewRecorder(a.logger, cfg.TelemetryQueueSize, nil, telemetryRepo, series)

	a.detector = ai.NewDetectorService(cfg, a.logger)
	a.snapshots = storage.NewSnapshotService(cfg.ImageDirectory, cfg.SnapshotBufferLimit, snapshotRepo, a.logger)
	a.devices = websocket.NewHubService("device", a.logger)
	a.viewers = websocket.NewHubService("viewer", a.logger)

	if cfg.MQTTBroker != "" {
		publisher, err := broker.NewRealPublisher(broker.Options{
			Broker:       cfg.MQTTBroker,
			ClientID:     cfg.MQTTClientID,
			CommandTopic: cfg.CommandTopic,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("mqtt broker %s: %w", cfg.MQTTBroker, err)
		}
		a.publisher = publisher
	} else {
		a.logger.Warning("MQTT_BROKER not set, commands reach connected devices only")
	}

	dispatcher := dispatch.NewDispatcher(a.devices, a.publisher, a.recorder, cfg.CommandTopic, cfg.Policy.ZoneCount, a.logger)
	manager := service.NewManager(cfg, storage.NewFrameCache(), a.detector, a.detector, dispatcher,
		a.recorder, a.snapshots, a.viewers, a.logger)

	if a.publisher != nil {
		if err := a.publisher.Subscribe(cfg.SensorTopic, manager.HandleBrokerMessage); err != nil {
			return err
		}
	}

	a.router = route.SetupRoutes(route.Deps{
		Config:     cfg,
		Logger:     a.logger,
		Manager:    manager,
		Devices:    a.devices,
		Viewers:    a.viewers,
		Dispatcher: dispatcher,
		Broker:     a.publisher,
		Telemetry:  telemetryRepo,
		Snapshots:  snapshotRepo,
		Active:     &a.active,
	})
	return nil
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	flushCtx, stopFlush := context.WithCancel(context.Background())
	flushed := make(chan struct{})
	go func() {
		a.snapshots.Run(flushCtx, a.config.SnapshotFlushInterval)
		close(flushed)
	}()
	defer func() {
		stopFlush()
		<-flushed
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.router,
	}

	a.logger.Info("Traffic decision server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Images: %s, database: %s, time series: %s", a.config.ImageDirectory, a.config.DatabasePath, a.config.TimeSeriesDir)
	a.logger.Info("AI model: %s (ready=%v)", a.config.ModelPath, a.detector.Ready())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)

	// Websocket connections are hijacked and not tracked by Shutdown.
	a.devices.CloseAll()
	a.viewers.CloseAll()
	a.waitForHandlers(shutdownCtx)
	return err
}

func (a *App) waitForHandlers(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.active.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warning("Device handlers still running after %v", shutdownTimeout)
	}
}

// Close releases every resource. It is safe on a partially wired App.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
