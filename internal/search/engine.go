// Package search discovers candidate posting URLs through public web search
// engines and the platforms' own listing APIs.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// ErrRateLimited reports that an engine served a throttle or captcha page.
var ErrRateLimited = errors.New("search engine rate limited")

// Engine runs one text query and returns result URLs in rank order.
type Engine interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// defaultUserAgent mimics a desktop browser; both engines serve degraded
// pages to obvious bots.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

func fetchResults(ctx context.Context, f jobs.Fetcher, engine, target string, throttled func(jobs.FetchResponse) bool) (jobs.FetchResponse, error) {
	headers := http.Header{}
	headers.Set("User-Agent", defaultUserAgent)
	resp, err := f.Fetch(ctx, jobs.FetchRequest{URL: target, Headers: headers})
	if err != nil {
		var statusErr *jobs.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
			return jobs.FetchResponse{}, fmt.Errorf("%s: %w", engine, ErrRateLimited)
		}
		return jobs.FetchResponse{}, fmt.Errorf("%s request: %w", engine, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || throttled(resp) {
		return jobs.FetchResponse{}, fmt.Errorf("%s: %w", engine, ErrRateLimited)
	}
	if err := jobs.CheckStatus(resp); err != nil {
		return jobs.FetchResponse{}, fmt.Errorf("%s: %w", engine, err)
	}
	return resp, nil
}

func containsFold(body []byte, needle string) bool {
	return bytes.Contains(bytes.ToLower(body), []byte(strings.ToLower(needle)))
}

// appendUnique adds link to out unless it is already present or the cap is hit.
func appendUnique(out []string, seen map[string]struct{}, link string, limit int) []string {
	if link == "" || (limit > 0 && len(out) >= limit) {
		return out
	}
	if _, ok := seen[link]; ok {
		return out
	}
	seen[link] = struct{}{}
	return append(out, link)
}
