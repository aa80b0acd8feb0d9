package sweep

import (
	"context"
	"log"
	"time"

	"library-backend/config"
	"library-backend/internal/engine"
)

// Service runs the maintenance sweep on a fixed interval: overdue marking,
// pickup expiration, and queue promotion are time-based transitions no
// user action triggers, so something has to tick. The same engine call is
// also exposed over HTTP for external schedulers.
type Service struct {
	cfg    *config.Config
	engine *engine.Engine
}

// NewService creates a sweep service over the given engine.
func NewService(cfg *config.Config, eng *engine.Engine) *Service {
	return &Service{cfg: cfg, engine: eng}
}

// Run starts the sweep loop. It performs one pass immediately, then one
// per configured interval until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Sweep.Enabled {
		log.Println("Maintenance sweep is disabled. Not starting.")
		return
	}
	log.Println("Starting maintenance sweep service...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Sweep.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Maintenance sweep service shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Sweep.Interval)
		}
	}
}

// SweepOnce performs a single maintenance pass.
func (s *Service) SweepOnce(ctx context.Context) {
	now := time.Now().UTC()
	report, err := s.engine.RunMaintenanceSweep(ctx, now)
	if err != nil {
		log.Printf("Maintenance sweep error: %v", err)
		if report == nil {
			return
		}
	}
	if report.OverdueTransitions > 0 || report.ExpiredPickups > 0 || report.Promotions > 0 {
		log.Printf("Maintenance sweep: %d loans marked overdue, %d pickups expired, %d waiters promoted",
			report.OverdueTransitions, report.ExpiredPickups, report.Promotions)
	}
}
