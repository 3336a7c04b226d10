package cron

import (
	"context"

	"mod-gobot/internal/logger"
)

// Job names used by RegisterMaintenance
const (
	JobSweep     = "sweep"
	JobSudoPrune = "sudo-prune"
)

const sudoPruneSchedule = "@every 1m"

// Sweeper forgets groups the bot can no longer reach
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Pruner drops expired privilege grants
type Pruner interface {
	Prune() int
}

// RegisterMaintenance schedules the stale-group sweep and the sudo prune.
// Calling it again with a new schedule replaces the sweep job.
func RegisterMaintenance(s *Scheduler, sweepSchedule string, sweeper Sweeper, pruner Pruner) error {
	if err := s.AddJob(JobSweep, sweepSchedule, func(ctx context.Context) error {
		alive, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		logger.Infof("Cron: sweep done, %d groups reachable", alive)
		return nil
	}); err != nil {
		return err
	}

	return s.AddJob(JobSudoPrune, sudoPruneSchedule, func(ctx context.Context) error {
		if n := pruner.Prune(); n > 0 {
			logger.Debugf("Cron: pruned %d expired sudo grants", n)
		}
		return nil
	})
}
