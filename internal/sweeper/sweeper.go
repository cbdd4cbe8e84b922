package sweeper

import (
	"context"
	"time"

	"github.com/AntonioCarvalhoRepo/ReservationWithDocker/internal/metrics"
	"go.uber.org/zap"
)

// DefaultInterval is the sweep cadence
const DefaultInterval = 7 * 24 * time.Hour

// Expirer is the part of the storage gateway the sweeper writes through
type Expirer interface {
	ExpireAllReservations(ctx context.Context) (int64, error)
	ExpireActiveReservationsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher announces the outcome of a sweep
type Publisher interface {
	PublishReservationsExpired(ctx context.Context, count int64, cutoff time.Time) error
}

// Options tune the sweeper
type Options struct {
	// Interval between runs
	Interval time.Duration

	// TTL limits expiry to ACTIVE reservations older than TTL. Zero expires
	// every reservation regardless of status or age.
	TTL time.Duration

	// RunOnStart runs a sweep immediately instead of after the first interval
	RunOnStart bool
}

// Sweeper periodically moves reservations to EXPIRED
type Sweeper struct {
	store     Expirer
	publisher Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	opts      Options
	now       func() time.Time
}

// New creates a sweeper. A non-positive interval falls back to DefaultInterval.
func New(store Expirer, publisher Publisher, m *metrics.Metrics, log *zap.Logger, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.TTL < 0 {
		opts.TTL = 0
	}
	return &Sweeper{
		store:     store,
		publisher: publisher,
		metrics:   m,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// Run sweeps on every tick until ctx is done. A failed run is logged and
// left for the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()

	s.log.Info("Expiration sweeper started",
		zap.Duration("interval", s.opts.Interval),
		zap.Duration("ttl", s.opts.TTL),
	)

	if s.opts.RunOnStart {
		s.SweepOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiration sweeper stopped")
			return
		case <-t.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single bulk expiry and returns the rows it changed
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	start := s.now()
	defer s.metrics.Observe("sweep", start)

	var (
		expired int64
		cutoff  time.Time
		err     error
	)
	if s.opts.TTL > 0 {
		cutoff = start.UTC().Add(-s.opts.TTL)
		expired, err = s.store.ExpireActiveReservationsCreatedBefore(ctx, cutoff)
	} else {
		expired, err = s.store.ExpireAllReservations(ctx)
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.SweepRuns.WithLabelValues("fail").Inc()
		}
		s.log.Error("Expiration sweep failed", zap.Error(err))
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.SweepRuns.WithLabelValues("success").Inc()
		s.metrics.ExpiredTotal.Add(float64(expired))
	}
	s.log.Info("Expiration sweep completed",
		zap.Int64("expired", expired),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	if expired > 0 && s.publisher != nil {
		if err := s.publisher.PublishReservationsExpired(ctx, expired, cutoff); err != nil {
			s.log.Error("Failed to publish expiry event", zap.Error(err))
		}
	}

	return expired, nil
}
