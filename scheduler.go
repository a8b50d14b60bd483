package issuesheet

import (
	"context"
	"time"
)

// Scheduler periodically runs every configured job.
type Scheduler struct {
	Logged
	Runner   *Runner
	Jobs     *Jobs
	Interval time.Duration
}

// Run starts the scheduler and blocks until ctx is done. The first round
// starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	s.logger().Info("scheduler started",
		"interval", s.Interval,
		"repositories", s.Jobs.Repositories(),
	)
	defer ticker.Stop()
	for {
		results, err := s.Runner.RunAll(ctx, s.Jobs.Exports)
		if err != nil && ctx.Err() == nil {
			s.logger().Error("scheduled exports", "error", err)
		}
		s.logger().Debug("scheduled exports done", "jobs", len(results))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			continue
		}
	}
}
