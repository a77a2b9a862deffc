package sso

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expired-token sweep every hour.
const DefaultSweepSchedule = "@hourly"

// Sweeper periodically deletes expired verification tokens. Sweeps are
// idempotent and safe to run while tokens are being issued and redeemed;
// a token already redeemed mid-sweep simply had its expiry extended and
// survives.
type Sweeper struct {
	Tokens TokenStore
	Logger *slog.Logger

	cron *cron.Cron
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// RunOnce sweeps immediately. Also usable as a one-shot entry point for
// an external scheduler.
func (s *Sweeper) RunOnce() {
	deleted, err := s.Tokens.Sweep(time.Now())
	if err != nil {
		s.logger().Error("token sweep failed", "err", err)
		return
	}
	if deleted > 0 {
		s.logger().Info("token sweep", "deleted", deleted)
	}
}

// Start schedules recurring sweeps. Schedule uses cron syntax, e.g.
// "@hourly" or "*/30 * * * *"; empty means DefaultSweepSchedule.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, s.RunOnce); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts scheduled sweeps, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
