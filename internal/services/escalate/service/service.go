// Package service implements the escalation worker: it leases pending
// findings and resolves them through the legal-inference provider
package service

import (
	"time"

	"custodian/internal/adapters/providers/inference"
	casesdomain "custodian/internal/services/cases/domain"
	findingsdomain "custodian/internal/services/findings/domain"
)

// Config controls the worker
type Config struct {
	Concurrency     int
	TakeBatch       int
	TickMs          int
	MaxAttempts     int
	RetryBaseMs     int
	ProviderTimeout time.Duration
	// ExcerptLimit bounds how many timeline entries travel to the provider
	ExcerptLimit int
}

// Svc implements domain.WorkerPort
type Svc struct {
	queue     findingsdomain.QueuePort
	timelines casesdomain.TimelinePort
	provider  inference.Port
	cfg       Config
	now       func() time.Time
}

// New constructs the worker service
func New(queue findingsdomain.QueuePort, timelines casesdomain.TimelinePort,
	provider inference.Port, cfg Config,
) *Svc {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.TakeBatch <= 0 {
		cfg.TakeBatch = 16
	}
	if cfg.TickMs <= 0 {
		cfg.TickMs = 500
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseMs <= 0 {
		cfg.RetryBaseMs = 1000
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = 20
	}
	return &Svc{queue: queue, timelines: timelines, provider: provider, cfg: cfg, now: time.Now}
}

func (s *Svc) backoff(attempt int) time.Duration {
	ms := int64(s.cfg.RetryBaseMs)
	ms = ms << uint(attempt)
	max := int64(5 * time.Minute / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}
