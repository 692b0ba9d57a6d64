// Package domain defines the pipeline runner surface
package domain

import (
	"context"

	casesdomain "custodian/internal/services/cases/domain"
)

// Result summarizes one pipeline run
type Result struct {
	CaseID          string             `json:"case_id"`
	Status          casesdomain.Status `json:"status"`
	TimelineVersion int                `json:"timeline_version"`
	Findings        int                `json:"findings"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// RunnerPort drives a case from ingesting through detection
type RunnerPort interface {
	// Process normalizes every source concurrently, synchronizes the
	// timeline, runs detection and settles the case status. Cancellation
	// releases reserved quota and marks the case cancelled, never deletes
	Process(ctx context.Context, caseID string) (Result, error)
}
