package llm

import (
	"context"
	"net/http"

	"github.com/cbattlegear/forkalytics/pkg/clients"
)

const maxRetries = 3

// doWithRetry issues a request with the shared backoff policy. buildReq is
// called once; the shared layer re-builds the request body per attempt.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error)) (*http.Response, error) {
	req, err := buildReq()
	if err != nil {
		return nil, err
	}
	cfg := clients.DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	resp, err := clients.DoWithRetry(ctx, client, req, cfg)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// StatusError reports a non-retryable (or retry-exhausted) HTTP status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "llm: request failed with status " + e.Status
}
