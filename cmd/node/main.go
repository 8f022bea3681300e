// cmd/node/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/daemon"
	"github.com/javajoker/mpnode/internal/database"
	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/inbox"
	"github.com/javajoker/mpnode/internal/router"
	"github.com/javajoker/mpnode/internal/services"
	"github.com/javajoker/mpnode/internal/supervisor"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg.Log)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Daemon transport
	rpc, closeRPC, err := daemon.Dial(ctx, cfg.Daemon)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create daemon client")
	}
	defer closeRPC()
	gateway := daemon.NewGateway(rpc, cfg.Messaging)

	// Services and event routing
	bus := events.NewBus(cfg.Events)
	svc := services.NewContainer(db, gateway, bus, cfg.Messaging.ProtocolVersion)
	svc.Register(bus)
	bus.Start()

	sup := supervisor.New(gateway, svc.Markets, svc.Categories, svc.Profiles, cfg.Market, cfg.Supervisor)
	poller, err := inbox.NewPoller(gateway, sup, bus, cfg.Poller)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create inbox poller")
	}
	sup.Start(ctx)
	poller.Start(ctx)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Initialize(router.Dependencies{
		Config:   cfg,
		Services: svc,
		Gate:     sup,
		Network:  gateway,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting command API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logrus.Info("Shutting down node...")
	case err := <-serverErr:
		logrus.WithError(err).Error("Command API failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	// Producers stop before the bus.
	poller.Stop()
	sup.Stop()
	bus.Stop()

	logrus.Info("Node exited")
}

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
