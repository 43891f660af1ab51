package service

import (
	"context"
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/updater"

	"go.uber.org/zap"
)

// Cycle runs one update cycle.
type Cycle interface {
	Update(ctx context.Context, trigger updater.Trigger) updater.Outcome
}

// Scheduler runs cycles from a single goroutine: one immediately, then one
// per interval tick and one per manual request. Manual requests made while a
// cycle is running collapse into a single follow-up cycle.
type Scheduler struct {
	interval time.Duration
	cycle    Cycle
	manual   chan struct{}
	logger   *zap.Logger
}

func NewScheduler(interval time.Duration, cycle Cycle, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		cycle:    cycle,
		manual:   make(chan struct{}, 1),
		logger:   logger,
	}
}

// TriggerManual requests a manual cycle without blocking.
func (s *Scheduler) TriggerManual() {
	select {
	case s.manual <- struct{}{}:
	default:
		s.logger.Debug("Manual update already pending")
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting update scheduler", zap.Duration("interval", s.interval))
	s.cycle.Update(ctx, updater.TriggerPeriodic)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle.Update(ctx, updater.TriggerPeriodic)
		case <-s.manual:
			s.cycle.Update(ctx, updater.TriggerManual)
		}
	}
}
