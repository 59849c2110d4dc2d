// Package ftzapi pulls completed time registrations from the workshop
// system's REST API: bearer auth with a cached token, paginated search and
// conversion of UTC stamps onto Danish local dates
package ftzapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond

	// refresh the cached bearer this long before it actually expires
	tokenRefreshBuffer = 5 * time.Minute
)

// Options configures the Client
type Options struct {
	// CoreBaseURL serves auth and employee search
	CoreBaseURL string

	// TimeBaseURL serves the time registration search
	TimeBaseURL string

	// AuthKey is exchanged for a bearer token
	AuthKey string

	// SubscriptionKey is the optional APIM gateway key
	SubscriptionKey string

	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// Client is the upstream REST client with token caching and bounded retries
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
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
		log:   *logger.Named("ftzapi"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// bearer returns a valid token, exchanging the auth key when the cached one
// is missing or within the refresh buffer of expiry
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshBuffer).Before(c.tokenExpires) {
		return c.token, nil
	}

	if c.opts.CoreBaseURL == "" || c.opts.AuthKey == "" {
		return "", perr.Internalf("upstream api auth not configured")
	}

	body, err := json.Marshal(map[string]string{"key": c.opts.AuthKey})
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "marshal auth body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.opts.CoreBaseURL+"/Authentication/apiaccess", bytes.NewReader(body))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "auth request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.SubscriptionKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.opts.SubscriptionKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "auth call failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", perr.UpstreamHTTPf("auth returned %d: %s", resp.StatusCode, string(tail))
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "decode auth response")
	}
	if ar.Token == "" {
		return "", perr.UpstreamHTTPf("no token in auth response")
	}

	c.token = ar.Token
	c.tokenExpires = ar.expiresAt(c.now())
	c.log.Debug().Time("expires", c.tokenExpires).Msg("upstream token refreshed")
	return c.token, nil
}

// getJSON issues an authenticated GET with bounded retries on transient
// failures and decodes the 200 body into out
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	tok, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnknown, "new request")
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		if c.opts.SubscriptionKey != "" {
			req.Header.Set("Ocp-Apim-Subscription-Key", c.opts.SubscriptionKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if attempts >= c.opts.MaxRetries {
				return perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "upstream call failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("upstream transport error retrying")
			c.sleep(back)
			attempts++
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "decode upstream response")
			}
			return nil

		case resp.StatusCode >= 500:
			_ = drain(resp.Body)
			if attempts >= c.opts.MaxRetries {
				return perr.UpstreamHTTPf("upstream returned %d", resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Int("status", resp.StatusCode).Dur("retry_in", back).Msg("upstream server error retrying")
			c.sleep(back)
			attempts++
			continue

		default:
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return perr.UpstreamHTTPf("upstream returned %d: %s", resp.StatusCode, string(tail))
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func drain(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<20))
	return rc.Close()
}
