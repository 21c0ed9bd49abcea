package masterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultURL is the public instrument master endpoint.
const DefaultURL = "https://developers.symphonyfintech.in/apibinarymarketdata/instruments/master"

// Options tune the client. The zero value is usable.
type Options struct {
	// Timeout bounds one request. Zero leaves the http.Client default (none).
	Timeout time.Duration

	// RateLimitRPS throttles outbound fetches. Set to <=0 to disable.
	// Ignored when Limiter is set.
	RateLimitRPS float64

	// Limiter is shared by every client built with it.
	Limiter *rate.Limiter

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client fetches the instrument master feed.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	limiter  *rate.Limiter
}

type masterRequest struct {
	ExchangeSegmentList []string `json:"exchangeSegmentList"`
}

// NewClient constructs a client for the given instrument master URL.
func NewClient(rawURL string, opts Options) (*Client, error) {
	u, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}
	if opts.Timeout > 0 {
		clone := *hc
		clone.Timeout = opts.Timeout
		hc = &clone
	}

	limiter := opts.Limiter
	if limiter == nil && opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	return &Client{endpoint: u, http: hc, limiter: limiter}, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("api url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must use http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api url must include a host (got %q)", raw)
	}
	u.Fragment = ""
	return u, nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// FetchMaster posts the segment list and returns the raw newline separated
// feed. A missing or null result is returned as an empty string.
func (c *Client) FetchMaster(ctx context.Context, segments []string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	if segments == nil {
		segments = []string{}
	}
	body, err := json.Marshal(masterRequest{ExchangeSegmentList: segments})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", newHTTPError("instrumentsMaster", resp, b)
	}

	var out responseEnvelope
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("parse instrument master response: %w", err)
	}
	if out.Result == nil {
		return "", nil
	}
	return *out.Result, nil
}
