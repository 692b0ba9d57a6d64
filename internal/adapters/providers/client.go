// Package providers holds the shared REST plumbing for external provider
// clients: timeouts, bearer auth, exponential retry on transient failures
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUA        = "custodian"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
)

// Options configures a provider client
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration
}

// Client is the shared JSON-over-HTTP base for provider adapters
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a Client with sane defaults. name tags log lines
func NewClient(name string, o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named(name),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// PostJSON issues a JSON POST with retries and decodes the response into out.
// Headers beyond auth and content type go in hdr; idempotency keys belong
// there so retries replay safely
func (c *Client) PostJSON(ctx context.Context, path string, hdr map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "provider encode request")
	}

	url := c.opts.BaseURL + path
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return perr.Wrapf(ctx.Err(), perr.ErrorCodeProviderUnavailable, "provider call aborted")
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "provider new request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.opts.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
		}
		for k, v := range hdr {
			req.Header.Set(k, v)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil {
				return perr.Wrapf(ctx.Err(), perr.ErrorCodeProviderUnavailable, "provider call aborted")
			}
			if !c.shouldRetry(attempts) {
				return perr.Wrapf(err, perr.ErrorCodeProviderUnavailable, "provider transport failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("provider transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("provider http response")

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			defer func() { _ = resp.Body.Close() }()
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeProviderUnavailable, "provider decode response")
			}
			return nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if !c.shouldRetry(attempts) {
				return perr.Newf(perr.ErrorCodeProviderUnavailable, "provider status %d after %d attempts", resp.StatusCode, attempts+1)
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Int("status", resp.StatusCode).
				Msg("provider transient error retrying")
			c.sleep(back)
			attempts++
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return perr.Newf(perr.ErrorCodeProviderUnavailable, "provider unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

func (c *Client) shouldRetry(attempts int) bool { return attempts < c.opts.MaxRetries }

func (c *Client) backoff(attempt int) time.Duration {
	ms := int64(c.opts.RetryBase / time.Millisecond)
	ms = ms << uint(attempt)
	max := int64(30 * time.Second / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<16))
	return rc.Close()
}
