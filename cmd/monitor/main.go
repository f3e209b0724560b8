package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/handlers"
	"github.com/benmeehan/heartbeat-agent/internal/hub"
	"github.com/benmeehan/heartbeat-agent/internal/metrics"
	"github.com/benmeehan/heartbeat-agent/internal/service_registry"
	"github.com/benmeehan/heartbeat-agent/internal/utils"
	"github.com/benmeehan/heartbeat-agent/pkg/file"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var version = "0.1.0"

func main() {
	configFile := flag.String("config", "configs/config.yaml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	config, err := utils.LoadConfig(*configFile, file.NewFileService(), nil)
	if err != nil {
		bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootstrap.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger, err := utils.NewLogger(config.Log.Level, config.Log.Format, os.Stdout)
	if err != nil {
		bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootstrap.Fatal().Err(err).Msg("Failed to configure logging")
	}
	logger = logger.With().Str("app", "monitor").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	allowedOrigins := append([]string{"http://localhost:5173", "http://localhost:3000"}, config.Monitor.AllowedOrigins...)
	ws := hub.New(allowedOrigins, logger.With().Str("component", "hub").Logger())

	m := metrics.New()
	if err := m.RegisterHostCollector("", logger); err != nil {
		logger.Warn().Err(err).Msg("Host metrics unavailable")
	}
	serviceRegistry := service_registry.NewServiceRegistry(nil, m, logger)
	alert, err := serviceRegistry.RegisterMonitorServices(&config, ws)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	h := handlers.New(alert, version, logger.With().Str("component", "http").Logger())
	router := handlers.NewRouter(h, handlers.RouterOptions{
		AllowedOrigins: allowedOrigins,
		Metrics:        m.Handler(),
		Websocket:      ws.HandleConnect,
	})
	srv := &http.Server{Addr: config.Monitor.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ws.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("Heartbeat monitor listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Monitor stopped with error")
	}

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop services cleanly")
	}
}
