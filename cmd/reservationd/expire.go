package main

import (
	"context"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/config"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/db"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/repo"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/sweeper"
	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/pkg/logger"
	"go.uber.org/zap"
)

// runExpire performs a single sweep, for cron-driven deployments
func runExpire(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	if ctx == nil {
		ctx = context.Background()
	}

	database, err := openDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher, closePublisher := connectPublisher(cfg, log)
	defer closePublisher()

	store := repo.NewStore(database, log)
	sweep := sweeper.New(store, publisher, nil, log, sweeper.Options{
		Interval: cfg.SweepInterval,
		TTL:      cfg.ReservationTTL,
	})

	if _, err := sweep.SweepOnce(ctx); err != nil {
		return err
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		log.Warn("Failed to collect reservation stats", zap.Error(err))
		return nil
	}
	log.Info("Reservation table state",
		zap.Int64("books", stats.Books),
		zap.Int64("active", stats.Reservations[db.StatusActive]),
		zap.Int64("canceled", stats.Reservations[db.StatusCanceled]),
		zap.Int64("expired", stats.Reservations[db.StatusExpired]),
	)
	return nil
}
