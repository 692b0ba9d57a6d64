// Package ocr adapts the document text-extraction provider
package ocr

import (
	"context"

	"custodian/internal/adapters/providers"
	"custodian/internal/core/event"
)

// Port is the surface the pipeline consumes; fakes live next to tests
type Port interface {
	Extract(ctx context.Context, in Input) ([]event.RawSegment, error)
}

// Input identifies the document to extract
type Input struct {
	ArtifactID string `json:"artifact_id"`
	SHA256     string `json:"sha256"`
	Mime       string `json:"mime"`
}

type response struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Page       int     `json:"page"`
	Line       int     `json:"line"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Client calls the OCR provider
type Client struct {
	rest *providers.Client
}

// New constructs an OCR client
func New(o providers.Options) *Client {
	return &Client{rest: providers.NewClient("ocr", o)}
}

// Extract requests text blocks for an admitted document
func (c *Client) Extract(ctx context.Context, in Input) ([]event.RawSegment, error) {
	var resp response
	if err := c.rest.PostJSON(ctx, "/v1/extractions", nil, in, &resp); err != nil {
		return nil, err
	}
	out := make([]event.RawSegment, 0, len(resp.Blocks))
	for _, b := range resp.Blocks {
		out = append(out, event.RawSegment{
			Page:       b.Page,
			Text:       b.Text,
			Confidence: b.Confidence,
		})
	}
	return out, nil
}
