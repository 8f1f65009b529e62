package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxRetries is the number of additional attempts after the first call.
	MaxRetries = 3

	// baseDelay is the starting backoff; attempt n waits baseDelay * 2^n.
	baseDelay = 1000 * time.Millisecond
)

// Client is an authenticated Admin REST API client. All calls go through a
// retry loop: 429 (honoring Retry-After), 5xx, and transport failures are
// retried with exponential backoff up to MaxRetries; any other non-success
// status fails immediately.
type Client struct {
	// BaseURL is https://<shop> by default; tests point it at a fake server.
	BaseURL     string
	AccessToken string
	APIVersion  string
	HTTPClient  *http.Client

	// sleep is swapped out in tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client for the given shop domain and token.
func NewClient(shop, accessToken, apiVersion string) *Client {
	return &Client{
		BaseURL:     fmt.Sprintf("https://%s", shop),
		AccessToken: accessToken,
		APIVersion:  apiVersion,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do performs one logical Admin API operation. path is relative to
// /admin/api/<version>/, e.g. "draft_orders.json". body, when non-nil, is
// JSON-encoded. Attempts are strictly sequential; the caller blocks until a
// terminal success or exhaustion.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	endpoint := fmt.Sprintf("%s/admin/api/%s/%s", strings.TrimRight(c.BaseURL, "/"), c.APIVersion, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		respBody, status, header, err := c.doOnce(ctx, method, endpoint, payload)

		var delay time.Duration
		switch {
		case err != nil:
			if attempt >= MaxRetries {
				return nil, &TransportError{Err: err, Attempts: attempt + 1}
			}
			delay = backoffDelay(attempt)

		case status == http.StatusTooManyRequests:
			if attempt >= MaxRetries {
				return nil, &RateLimitError{Attempts: attempt + 1}
			}
			delay = retryAfterDelay(header, attempt)

		case status >= 500:
			if attempt >= MaxRetries {
				return nil, &UpstreamError{Status: status, Body: string(respBody), Attempts: attempt + 1}
			}
			delay = backoffDelay(attempt)

		case status < 200 || status >= 300:
			return nil, &APIError{Status: status, Body: string(respBody)}

		default:
			return respBody, nil
		}

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	return raw, res.StatusCode, res.Header, nil
}

func backoffDelay(attempt int) time.Duration {
	return baseDelay * (1 << attempt)
}

// retryAfterDelay prefers the Retry-After header (seconds) and falls back to
// the exponential schedule.
func retryAfterDelay(header http.Header, attempt int) time.Duration {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return backoffDelay(attempt)
}

// Get issues a GET and decodes the response into out when out is non-nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	raw, err := c.Do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	raw, err := c.Do(ctx, http.MethodPut, path, nil, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
