// Package domain defines the detection service surface
package domain

import (
	"context"

	findings "custodian/internal/services/findings/domain"
)

// RunnerPort executes a rule-phase detection pass over a persisted timeline
type RunnerPort interface {
	// Run loads the timeline version (0 means latest), applies the doctrine
	// pack and records findings. Idempotent per timeline version
	Run(ctx context.Context, caseID string, timelineVersion int) ([]findings.Finding, error)
}
