// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScoringScheduler runs the scoring job every interval. Runs never
// overlap; a slow run pushes the next one back.
func (s *ScoringService) StartScoringScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()

			report, err := s.Run(ctx)
			if err != nil {
				log.Printf("[Scheduler] Scoring run failed: %v", err)
				return
			}
			if report.Failed() {
				log.Printf("[Scheduler] Scoring run finished with %d store failure(s)", report.StoreFailures)
			}
		}),
		gocron.WithName("score-predictions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	log.Printf("[Scheduler] Scoring every %s", interval)
	return sched, nil
}
