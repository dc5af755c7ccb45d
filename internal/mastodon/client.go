// Package mastodon is a minimal REST client for the endpoints the poller
// and backfiller need. Retries, rate-limit backoff and circuit breaking
// come from pkg/clients.
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/cbattlegear/forkalytics/internal/event"
	"github.com/cbattlegear/forkalytics/pkg/clients"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// ErrNotFound reports a 404 from the API, e.g. a deleted status.
var ErrNotFound = fmt.Errorf("mastodon: not found")

// Client talks to one instance's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   clients.RetryConfig
	logger  logging.Logger
}

// NewClient creates a client for the given instance base URL. The access
// token is optional for instances with open public timelines.
func NewClient(baseURL, token string, logger logging.Logger) *Client {
	retry := clients.DefaultRetryConfig()
	retry.MaxDelay = 30 * time.Second
	retry.CircuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		Name:   "mastodon-api",
		Logger: logger,
	})

	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   retry,
		logger:  logger,
	}
}

// TimelineOptions narrows a public timeline page.
type TimelineOptions struct {
	Local   bool
	Limit   int
	MaxID   string
	SinceID string
}

// PublicTimeline fetches one page of the public timeline and the max_id
// cursor for the next (older) page, empty when there is none.
func (c *Client) PublicTimeline(ctx context.Context, opts TimelineOptions) ([]event.SourcePost, string, error) {
	query := url.Values{}
	if opts.Local {
		query.Set("local", "true")
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.MaxID != "" {
		query.Set("max_id", opts.MaxID)
	}
	if opts.SinceID != "" {
		query.Set("since_id", opts.SinceID)
	}

	resp, err := c.get(ctx, "/api/v1/timelines/public", query)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("mastodon: timeline returned %s: %s", resp.Status, body)
	}

	var posts []event.SourcePost
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, "", fmt.Errorf("mastodon: decode timeline: %w", err)
	}

	return posts, nextMaxID(resp.Header.Get("Link")), nil
}

// GetStatus fetches a single status by id. Returns ErrNotFound for 404 so
// callers can treat it as a deletion signal.
func (c *Client) GetStatus(ctx context.Context, id string) (*event.SourcePost, error) {
	resp, err := c.get(ctx, "/api/v1/statuses/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mastodon: status %s returned %s: %s", id, resp.Status, body)
	}

	var post event.SourcePost
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("mastodon: decode status: %w", err)
	}
	return &post, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mastodon: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := clients.DoWithRetry(ctx, c.http, req, c.retry)
	if err != nil {
		return nil, fmt.Errorf("mastodon: request %s: %w", path, err)
	}
	return resp, nil
}

var maxIDPattern = regexp.MustCompile(`<[^>]*[?&]max_id=([^&>]+)[^>]*>;\s*rel="next"`)

// nextMaxID extracts the max_id cursor from a Link header's rel="next"
// entry, the API's pagination mechanism for older pages.
func nextMaxID(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	match := maxIDPattern.FindStringSubmatch(linkHeader)
	if match == nil {
		return ""
	}
	return match[1]
}
