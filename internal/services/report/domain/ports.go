package domain

import "context"

// AssemblerPort renders finished cases into exportable reports
type AssemblerPort interface {
	// Render blocks with PendingFindings while any finding is still
	// escalated; lower tiers receive watermark and redaction
	Render(ctx context.Context, caseID string, tier Tier) (Report, error)
}
