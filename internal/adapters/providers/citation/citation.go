// Package citation adapts the legal citation lookup provider. Only the
// report assembler talks to it
package citation

import (
	"context"

	"custodian/internal/adapters/providers"
)

// Port is the surface the report assembler consumes
type Port interface {
	Lookup(ctx context.Context, ids []string) (map[string]Citation, error)
}

// Citation is one resolved legal reference
type Citation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Court string `json:"court,omitempty"`
	Year  int    `json:"year,omitempty"`
	URL   string `json:"url,omitempty"`
}

type request struct {
	IDs []string `json:"ids"`
}

type response struct {
	Citations []Citation `json:"citations"`
}

// Client calls the citation provider
type Client struct {
	rest *providers.Client
}

// New constructs a citation client
func New(o providers.Options) *Client {
	return &Client{rest: providers.NewClient("citation", o)}
}

// Lookup resolves citation ids, silently omitting unknown ones
func (c *Client) Lookup(ctx context.Context, ids []string) (map[string]Citation, error) {
	if len(ids) == 0 {
		return map[string]Citation{}, nil
	}
	var resp response
	if err := c.rest.PostJSON(ctx, "/v1/citations/lookup", nil, request{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]Citation, len(resp.Citations))
	for _, cit := range resp.Citations {
		out[cit.ID] = cit
	}
	return out, nil
}
