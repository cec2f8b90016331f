package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"retrolock/internal/actuator"
	"retrolock/internal/config"
	"retrolock/internal/handlers"
	"retrolock/internal/logger"
	"retrolock/internal/publisher"
	"retrolock/internal/repository"
	"retrolock/internal/repository/db"
	"retrolock/internal/server"
	"retrolock/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and drive the actuator.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addServeFlags(c)
	return c
}

// closer is anything main has to release on the way out.
type closer struct {
	name  string
	close func() error
}

// newDriver is swapped in tests.
var newDriver = actuator.New

func runServe(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve runs the API until ctx ends, then stops in order: HTTP server,
// actuator release through the door, event drain, remaining connections.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer func() { _ = log.Sync() }()

	secret, err := config.LoadToken(cfg.Auth)
	if err != nil {
		log.Errorw("auth token unavailable", "err", err)
		return err
	}

	policy, err := service.ParseBusyPolicy(cfg.Actuator.BusyPolicy)
	if err != nil {
		return err
	}

	driver, err := newDriver(cfg.Actuator)
	if err != nil {
		log.Errorw("actuator init failed", "driver", cfg.Actuator.Driver, "pin", cfg.Actuator.Pin, "err", err)
		return err
	}
	log.Infow("actuator_ready",
		"driver", cfg.Actuator.Driver,
		"pin", cfg.Actuator.Pin,
		"active_low", cfg.Actuator.ActiveLow,
	)

	var closers []closer

	repos, conn, err := openRepos(cfg.DB, log)
	if err != nil {
		_ = driver.Close()
		return err
	}
	if conn != nil {
		closers = append(closers, closer{name: "sqlite", close: conn.Close})
	}

	sinks := map[string]service.EventSink{}
	if mqttPub, err := publisher.ConnectMQTT(cfg.MQTT, log); err == nil {
		sinks["mqtt"] = mqttPub
		closers = append(closers, closer{name: "mqtt", close: mqttPub.Close})
	} else if !errors.Is(err, publisher.ErrDisabled) {
		log.Warnw("mqtt unavailable, continuing without it", "err", err)
	}
	if influx, err := publisher.ConnectInflux(cfg.InfluxDB, log); err == nil {
		sinks["influxdb"] = influx
		closers = append(closers, closer{name: "influxdb", close: influx.Close})
	} else if !errors.Is(err, publisher.ErrDisabled) {
		log.Warnw("influxdb unavailable, continuing without it", "err", err)
	}

	services := service.NewService(service.Deps{
		Driver: driver,
		Secret: secret,
		Door: service.DoorOptions{
			PulseDuration: cfg.Actuator.PulseDuration(),
			BusyPolicy:    policy,
		},
		Repos: repos,
		Sinks: sinks,
		Log:   log,
	})
	apiHandler := handlers.NewHandler(services, log)

	// the dispatcher outlives ctx so shutdown events still reach the sinks
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		services.Events.Run(eventsCtx)
	}()

	srv := &server.Server{}
	serveErr := make(chan error, 1)
	go func() {
		log.Infow("http_listening", "addr", cfg.Server.ListenAddress, "tls", cfg.Server.TLS.Enabled)
		if cfg.Server.TLS.Enabled {
			serveErr <- srv.RunTLS(cfg.Server.ListenAddress, cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, apiHandler.InitRoutes())
			return
		}
		serveErr <- srv.Run(cfg.Server.ListenAddress, apiHandler.InitRoutes())
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Infow("shutting down server...")
	case runErr = <-serveErr:
		if runErr != nil {
			log.Errorw("error starting server", "err", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// takes the command lock, so a pulse still running ends first
	if err := services.Close(shutdownCtx); err != nil {
		log.Errorw("actuator release failed", "err", err)
	}

	stopEvents()
	select {
	case <-eventsDone:
	case <-time.After(drainTimeout):
		log.Warnw("event dispatcher did not drain in time")
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].close(); err != nil {
			log.Warnw("close failed", "component", closers[i].name, "err", err)
		}
	}
	log.Infow("shutdown complete")
	return runErr
}

// openRepos opens the sqlite event log. An empty path disables history.
func openRepos(cfg config.DBConfig, log *logger.Logger) (*repository.Repository, *sql.DB, error) {
	if cfg.Path == "" {
		log.Infow("db.path not set; event history disabled")
		return nil, nil, nil
	}
	conn, err := db.InitDB(cfg.Path)
	if err != nil {
		log.Errorw("failed to init sqlite", "path", cfg.Path, "err", err)
		return nil, nil, err
	}
	return repository.NewRepository(conn), conn, nil
}
