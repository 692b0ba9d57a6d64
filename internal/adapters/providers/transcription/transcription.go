// Package transcription adapts the speech-to-text provider
package transcription

import (
	"context"

	"custodian/internal/adapters/providers"
	"custodian/internal/core/event"
)

// Port is the surface the pipeline consumes; fakes live next to tests
type Port interface {
	Transcribe(ctx context.Context, in Input) ([]event.RawSegment, error)
}

// Input identifies the media to transcribe
type Input struct {
	ArtifactID string `json:"artifact_id"`
	SHA256     string `json:"sha256"`
	Mime       string `json:"mime"`
	Language   string `json:"language,omitempty"`
}

type response struct {
	Segments []segment `json:"segments"`
}

type segment struct {
	Speaker      string  `json:"speaker"`
	StartSeconds float64 `json:"start"`
	EndSeconds   float64 `json:"end"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
}

// Client calls the transcription provider
type Client struct {
	rest *providers.Client
}

// New constructs a transcription client
func New(o providers.Options) *Client {
	return &Client{rest: providers.NewClient("transcription", o)}
}

// Transcribe requests segments for an admitted artifact
func (c *Client) Transcribe(ctx context.Context, in Input) ([]event.RawSegment, error) {
	var resp response
	if err := c.rest.PostJSON(ctx, "/v1/transcripts", nil, in, &resp); err != nil {
		return nil, err
	}
	out := make([]event.RawSegment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		out = append(out, event.RawSegment{
			Speaker:      s.Speaker,
			StartSeconds: s.StartSeconds,
			EndSeconds:   s.EndSeconds,
			Text:         s.Text,
			Confidence:   s.Confidence,
		})
	}
	return out, nil
}
