// Package fetch retrieves delimited report payloads from the TORI reporting API.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/metrics"
)

// DefaultTimeout bounds a report download. The feed can be slow to assemble
// server-side, so this is looser than the token timeout.
const DefaultTimeout = 60 * time.Second

// timeLayout is the wire format for window bounds: seconds precision, no
// timezone suffix. Bounds are always expressed in UTC.
const timeLayout = "2006-01-02T15:04:05"

// Window is the report range [Start, End].
//
// Start < End is expected but not validated; an inverted window is passed
// through and the remote decides what it returns (typically nothing).
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the daily-run window: the 24 hours ending at now,
// in UTC.
func DefaultWindow(now time.Time) Window {
	end := now.UTC()
	return Window{Start: end.Add(-24 * time.Hour), End: end}
}

// IsZero reports whether the window was never set.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Client downloads reports with a bearer token.
type Client struct {
	BaseURL   string
	UserAgent string

	// HTTPClient is a seam for tests. When nil, a client with DefaultTimeout
	// is used.
	HTTPClient *http.Client
}

// New returns a Client for the given reports endpoint.
func New(baseURL, userAgent string) *Client {
	return &Client{BaseURL: baseURL, UserAgent: userAgent}
}

// Reports issues an authenticated GET for the window and returns the response
// body verbatim.
//
// Behavior:
//   - Window bounds are formatted to seconds precision in UTC and
//     percent-encoded as start/end query parameters.
//   - The request carries "Authorization: Bearer <token>", the fixed
//     user-agent, and "Accept: */*".
//   - Any non-2xx status or transport error is a fetch failure; no retries.
//
// The body is expected to be delimited tabular text but is not validated here.
func (c *Client) Reports(ctx context.Context, token string, w Window) (string, error) {
	if c.BaseURL == "" {
		return "", fmt.Errorf("reports endpoint must be set")
	}
	if token == "" {
		return "", fmt.Errorf("bearer token must be set")
	}

	q := url.Values{}
	q.Set("start", w.Start.UTC().Format(timeLayout))
	q.Set("end", w.End.UTC().Format(timeLayout))
	reqURL := c.BaseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "*/*")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := hc.Do(req)
	if err != nil {
		metrics.IncCounter("etl_http_requests_total", 1, metrics.Labels{"status": "transport_error"})
		return "", fmt.Errorf("get reports: %w", err)
	}
	defer resp.Body.Close()
	metrics.IncCounter("etl_http_requests_total", 1, metrics.Labels{"status": strconv.Itoa(resp.StatusCode)})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read reports body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reports returned %s: %s", resp.Status, excerpt(body))
	}

	return string(body), nil
}

// excerpt trims an error body for logging without dumping whole payloads.
func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
