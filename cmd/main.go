package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "agrismart/docs"
	"agrismart/internal/config"
	"agrismart/internal/device"
	"agrismart/internal/handlers"
	"agrismart/internal/hub"
	"agrismart/internal/logger"
	"agrismart/internal/metrics"
	"agrismart/internal/models"
	"agrismart/internal/mqtt"
	"agrismart/internal/repository"
	"agrismart/internal/repository/db"
	"agrismart/internal/server"
	"agrismart/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	resolveTimeout  = 5 * time.Second
	hubCapacity     = 64
)

// @title        AgriSmart Link API
// @version      1.0
// @description  Dashboard API for an irrigation controller and its camera.
// @BasePath     /
func main() {
	// load configs/config.yml, .env and AGRISMART_* overrides
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel, cfg.LogFormat)

	sqlDB, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DBPath)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, service.Defaults{
		ControllerIP: cfg.Device.Host,
		CameraIP:     cfg.Camera.Host,
		Interval:     cfg.Device.SensorInterval,
		Thresholds:   models.DefaultThresholds(),
	}, log)

	controllerHost, cameraHost := resolveHosts(services, cfg, log)
	manager := device.NewManager(managerConfig(cfg, controllerHost, cameraHost), services.Settings, services.Notifier, log.Named("link"))
	services.Bind(manager)

	collectors := metrics.New()
	events := hub.New(hubCapacity, log.Named("hub"))
	manager.AddObserver(collectors.Observer())
	manager.AddObserver(events.Observer())
	services.Notifier.Subscribe(events.Notify)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mqttClient := startMQTT(ctx, cfg.MQTT, manager, log.Named("mqtt"))

	if err := manager.Start(ctx); err != nil {
		log.Fatalw("failed to start device link", "err", err)
	}
	go services.Recorder.Run(ctx, cfg.Recorder.Interval)

	retention := service.NewRetention(services.EventLog, cfg.Retention.Days, log.Named("retention"))
	if err := retention.Start(cfg.Retention.Schedule); err != nil {
		log.Fatalw("invalid retention schedule", "err", err, "schedule", cfg.Retention.Schedule)
	}

	apiHandler := handlers.NewHandler(services, events, log.Named("http")).WithMetrics(collectors.Handler())

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	waitForShutdown(cancel, srv, log)

	// stop producers before their consumers
	retention.Stop()
	manager.Close()
	events.Close()
	if mqttClient != nil {
		mqttClient.Close()
	}
}

// resolveHosts picks the controller and camera addresses: registered
// device, then saved setting, then configured default.
func resolveHosts(services *service.Service, cfg *config.Config, log *logger.Logger) (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	controller, err := services.Settings.ResolveController(ctx)
	if err != nil {
		log.Warnw("resolve controller failed; using configured host", "err", err, "host", cfg.Device.Host)
		controller = cfg.Device.Host
	}
	camera, err := services.Settings.ResolveCamera(ctx)
	if err != nil {
		log.Warnw("resolve camera failed; using configured host", "err", err, "host", cfg.Camera.Host)
		camera = cfg.Camera.Host
	}
	return controller, camera
}

func managerConfig(cfg *config.Config, controller, camera string) device.ManagerConfig {
	return device.ManagerConfig{
		Device: models.Endpoint{
			Host:      controller,
			WSPort:    cfg.Device.WSPort,
			HTTPPort:  cfg.Device.HTTPPort,
			Transport: models.TransportWebSocket,
		},
		Camera: models.Endpoint{
			Host:      camera,
			HTTPPort:  cfg.Camera.HTTPPort,
			Transport: models.TransportHTTP,
		},
		Zones: cfg.Device.Zones,
		Session: device.SessionConfig{
			MaxAttempts: cfg.Link.MaxAttempts,
			BackoffStep: cfg.Link.BackoffStep,
			BackoffMax:  cfg.Link.BackoffMax,
		},
		Poll: device.PollerConfig{
			Interval:   cfg.Link.PollInterval,
			MaxRetries: cfg.Link.PollMaxRetries,
		},
		RecoveryDelay:    cfg.Link.RecoveryDelay,
		RecoveryRetry:    cfg.Link.RecoveryRetry,
		Debounce:         cfg.Link.Debounce,
		StaleAfter:       cfg.Health.StaleAfter,
		HandshakeTimeout: cfg.Link.HandshakeTimeout,
	}
}

// startMQTT connects the optional state bridge. A broker that cannot be
// reached is logged and the service runs without it.
func startMQTT(ctx context.Context, cfg config.MQTTConfig, manager *device.Manager, log *logger.Logger) *mqtt.Client {
	if !cfg.Enabled() {
		return nil
	}
	client, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.Username,
		Password: cfg.Password,
	}, log)
	if err != nil {
		log.Errorw("mqtt bridge disabled", "err", err)
		return nil
	}
	bridge := mqtt.NewBridge(client, cfg.TopicPrefix, cfg.DeviceName, log)
	manager.AddObserver(bridge.Observer())
	go bridge.Start(ctx)
	log.Infow("mqtt bridge started", "state_topic", bridge.StateTopic(), "connection_topic", bridge.ConnectionTopic())
	return client
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
