package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/config"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/events"
	grpcserver "github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/grpc"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/httpapi"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/metrics"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/repo"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/reservation"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/sweeper"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// eventPublisher is satisfied by both the RabbitMQ publisher and the no-op one
type eventPublisher interface {
	reservation.EventPublisher
	sweeper.Publisher
	IsHealthy() bool
}

func runServe(cfg *config.Config) error {
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Reservation service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	store := repo.NewStore(database, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	publisher, closePublisher := connectPublisher(cfg, log)
	defer closePublisher()

	if rabbit, ok := publisher.(*events.Publisher); ok {
		consumer, err := events.NewConsumer(rabbit.Connection(), cfg.ServiceName, store, log)
		if err != nil {
			log.Warn("Catalog consumer unavailable, books will not sync", zap.Error(err))
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Error("Catalog consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	svc := reservation.NewService(store, publisher, m, reservation.Policy{
		MaxActivePerUser:     cfg.MaxActiveReservations,
		RejectTerminalCancel: cfg.StrictCancel,
	}, log)

	sweep := sweeper.New(store, publisher, m, log, sweeper.Options{
		Interval:   cfg.SweepInterval,
		TTL:        cfg.ReservationTTL,
		RunOnStart: cfg.SweepOnStart,
	})
	go sweep.Run(ctx)

	// gRPC health
	grpcServer := grpcserver.NewServer(grpcserver.NewHealthServer(database, publisher, log), log)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		log.Info("Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error("gRPC server stopped", zap.Error(err))
			stop()
		}
	}()

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpapi.NewHandler(svc, database, registry, log).Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()
	svc.Wait()

	log.Info("Server stopped")
	return nil
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*db.DB, error) {
	log.Info("Connecting to database...", zap.String("driver", cfg.DBDriver))
	database, err := db.Connect(cfg.DBDriver, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// connectPublisher falls back to dropping events when RabbitMQ is unreachable
func connectPublisher(cfg *config.Config, log *zap.Logger) (eventPublisher, func()) {
	log.Info("Connecting to RabbitMQ")
	publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, reservation events disabled", zap.Error(err))
		return events.NopPublisher{}, func() {}
	}
	return publisher, func() { publisher.Close() }
}
