// Package maintenance runs the periodic background jobs of the daemon.
package maintenance

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// sweepSchedule is how often queued tasks are re-drained and finished task
// workspaces retried for cleanup.
const sweepSchedule = "@every 30s"

// Sweepable is the periodic hook the sweeper drives. Implemented by
// task.Service.
type Sweepable interface {
	Sweep()
}

// Sweeper schedules recurring maintenance via cron.
type Sweeper struct {
	cron  *cron.Cron
	tasks Sweepable
}

// NewSweeper builds a stopped sweeper for the given task service.
func NewSweeper(tasks Sweepable) *Sweeper {
	return &Sweeper{cron: cron.New(), tasks: tasks}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(sweepSchedule, func() {
		s.tasks.Sweep()
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("maintenance sweeper started", "schedule", sweepSchedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
