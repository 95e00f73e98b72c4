package service

import (
	"context"
	"time"

	"omnidesk/internal/database"
	"omnidesk/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Scheduler runs the periodic hygiene sweeps: stale presence rows and
// expired idempotency records.
type Scheduler struct {
	db       *database.Database
	presence *PresenceService
	interval time.Duration
	logger   *logrus.Logger
	clock    Clock
	stopCh   chan struct{}
}

func NewScheduler(db *database.Database, presence *PresenceService, interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		db:       db,
		presence: presence,
		interval: interval,
		logger:   logger,
		clock:    RealClock(),
		stopCh:   make(chan struct{}),
	}
}

// WithClock overrides the scheduler clock. Test hook.
func (s *Scheduler) WithClock(clock Clock) *Scheduler {
	s.clock = clock
	return s
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval).Info("Starting sweep scheduler")

	s.RunSweeps(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.RunSweeps(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// RunSweeps executes one sweep cycle. Exported so tests can drive cycles
// directly instead of waiting on the ticker.
func (s *Scheduler) RunSweeps(ctx context.Context) {
	if _, err := s.presence.SweepStale(ctx); err != nil {
		s.logger.WithError(err).Error("Presence staleness sweep failed")
	}

	deleted, err := s.db.Store().DeleteExpiredIdempotencyRecords(ctx, s.clock.Now())
	if err != nil {
		s.logger.WithError(err).Error("Idempotency expiry sweep failed")
		return
	}
	if deleted > 0 {
		metrics.AddToCounter("idempotency_records_expired_total", float64(deleted), nil, "Expired idempotency records deleted")
		s.logger.WithField("count", deleted).Info("Deleted expired idempotency records")
	}
}
