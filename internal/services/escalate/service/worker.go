package service

import (
	"context"
	"time"

	"custodian/internal/platform/logger"
)

// Run starts the worker loop until ctx ends
func (s *Svc) Run(ctx context.Context) error {
	log := logger.Named("escalate-worker")
	sem := make(chan struct{}, s.cfg.Concurrency)
	ticker := time.NewTicker(time.Duration(s.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// lease a small batch; process concurrently with a simple semaphore
			leased, err := s.queue.Lease(ctx, s.now().UTC(), s.cfg.TakeBatch)
			if err != nil {
				log.Error().Err(err).Msg("lease findings failed")
				continue
			}
			for i := range leased {
				sem <- struct{}{}
				f := leased[i]
				go func() {
					defer func() { <-sem }()
					if err := s.handle(ctx, f); err != nil {
						log.Warn().Err(err).Str("finding_id", f.ID).Msg("escalation attempt failed")
					}
				}()
			}
		}
	}
}
