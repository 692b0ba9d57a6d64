// Package inference adapts the legal-inference provider used to judge
// escalated findings
package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"custodian/internal/adapters/providers"
)

// Port is the surface the escalation worker consumes
type Port interface {
	Assess(ctx context.Context, in Input) (Assessment, error)
}

// Input describes one escalated span for judgment
type Input struct {
	CaseID          string   `json:"case_id"`
	TimelineVersion int      `json:"timeline_version"`
	StartIdx        int      `json:"start_idx"`
	EndIdx          int      `json:"end_idx"`
	Doctrine        string   `json:"doctrine"`
	RuleID          string   `json:"rule_id"`
	Summary         string   `json:"summary"`
	Excerpt         []string `json:"excerpt,omitempty"`
	Confidence      float64  `json:"confidence"`
}

// Key derives the idempotency key for the span so provider-side retries
// never produce duplicate assessments
func (in Input) Key() string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d-%d|%s",
		in.CaseID, in.TimelineVersion, in.StartIdx, in.EndIdx, in.Doctrine))
	return hex.EncodeToString(sum[:])
}

// Assessment is the provider's judgment on a span
type Assessment struct {
	Confirmed  bool    `json:"confirmed"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Client calls the inference provider
type Client struct {
	rest *providers.Client
}

// New constructs an inference client
func New(o providers.Options) *Client {
	return &Client{rest: providers.NewClient("inference", o)}
}

// Assess submits the span for judgment
func (c *Client) Assess(ctx context.Context, in Input) (Assessment, error) {
	var out Assessment
	hdr := map[string]string{"Idempotency-Key": in.Key()}
	if err := c.rest.PostJSON(ctx, "/v1/assessments", hdr, in, &out); err != nil {
		return Assessment{}, err
	}
	return out, nil
}
