package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	maxBodyBytes    = 64 << 20
)

// StatusError is a non-2xx HTTP answer from a source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// retryable reports whether another attempt could plausibly succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// newBackOff yields the retry schedule for one request.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// fetcher performs bounded, retried HTTP requests for the network sources.
type fetcher struct {
	client   *http.Client
	attempts uint
}

func newFetcher(client *http.Client, timeout time.Duration) fetcher {
	if client == nil {
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return fetcher{client: client, attempts: defaultAttempts}
}

// do sends the request built by newReq, retrying transport failures and
// 429/5xx answers. newReq is called once per attempt so bodies can be
// replayed.
func (f fetcher) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("request %s: %w", req.URL.Redacted(), err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			serr := &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
			if serr.retryable() {
				return nil, serr
			}
			return nil, backoff.Permanent(serr)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return body, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(f.attempts),
	)
}

func (f fetcher) get(ctx context.Context, url string) ([]byte, error) {
	return f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}
