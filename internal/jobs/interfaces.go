package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Fetcher retrieves a page over HTTP or via a headless browser.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req FetchRequest) (FetchResponse, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	return f(ctx, req)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator returns unique run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// ErrStatus marks responses with a non-success HTTP status.
var ErrStatus = errors.New("unexpected http status")

// StatusError reports a non-success response status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", ErrStatus, e.URL, e.Code)
}

// Unwrap allows errors.Is(err, ErrStatus).
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// CheckStatus converts a non-2xx response into a *StatusError.
func CheckStatus(resp FetchResponse) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{URL: resp.RequestedURL, Code: resp.StatusCode}
}
