// Package fetcher layers politeness, retries and headless promotion on top of
// the raw page fetchers.
package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/metrics"
	"github.com/JakeFAU/ats-job-scout/internal/retry"
)

// Waiter throttles requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Promoter decides whether a response must be re-fetched headlessly.
type Promoter interface {
	ShouldPromote(resp jobs.FetchResponse) bool
}

// Polite wraps a fetcher with rate limiting and retries. Non-2xx responses
// are returned as *jobs.StatusError; transient ones are retried.
type Polite struct {
	next    jobs.Fetcher
	limiter Waiter
	policy  retry.Policy
	sleeper retry.Sleeper
	logger  *zap.Logger
}

// NewPolite builds a Polite fetcher. limiter and sleeper may be nil.
func NewPolite(next jobs.Fetcher, limiter Waiter, policy retry.Policy, sleeper retry.Sleeper, logger *zap.Logger) *Polite {
	if sleeper == nil {
		sleeper = retry.TimerSleeper{}
	}
	return &Polite{
		next:    next,
		limiter: limiter,
		policy:  policy,
		sleeper: sleeper,
		logger:  logging.OrNop(logger),
	}
}

// Fetch implements jobs.Fetcher.
func (p *Polite) Fetch(ctx context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
	var resp jobs.FetchResponse
	err := retry.Do(ctx, p.policy, p.sleeper, func(ctx context.Context, attempt int) error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx, req.URL); err != nil {
				return err
			}
		}
		r, err := p.next.Fetch(ctx, req)
		if err == nil {
			err = jobs.CheckStatus(r)
		}
		if err != nil {
			metrics.ObserveFetch(req.URL, r.UsedHeadless, "error")
			if attempt < p.policy.Attempts() && retry.Retryable(err) {
				p.logger.Debug("fetch failed, retrying",
					zap.String("url", req.URL), zap.Int("attempt", attempt), zap.Error(err))
			}
			return err
		}
		metrics.ObserveFetch(req.URL, r.UsedHeadless, "ok")
		resp = r
		return nil
	})
	if err != nil {
		return jobs.FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	return resp, nil
}

// Promoting re-fetches pages with a headless renderer when the plain response
// looks like an unrendered client-side app.
type Promoting struct {
	primary  jobs.Fetcher
	headless jobs.Fetcher
	detector Promoter
	logger   *zap.Logger
}

// NewPromoting returns primary unchanged when headless or detector is nil.
func NewPromoting(primary, headless jobs.Fetcher, detector Promoter, logger *zap.Logger) jobs.Fetcher {
	if headless == nil || detector == nil {
		return primary
	}
	return &Promoting{primary: primary, headless: headless, detector: detector, logger: logging.OrNop(logger)}
}

// Fetch implements jobs.Fetcher. A failed headless render falls back to the
// plain response.
func (p *Promoting) Fetch(ctx context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
	resp, err := p.primary.Fetch(ctx, req)
	if err != nil || !p.detector.ShouldPromote(resp) {
		return resp, err
	}
	rendered, herr := p.headless.Fetch(ctx, req)
	if herr != nil {
		p.logger.Warn("headless render failed, using plain response", zap.String("url", req.URL), zap.Error(herr))
		return resp, nil
	}
	if rendered.RequestedURL == "" {
		rendered.RequestedURL = resp.RequestedURL
	}
	return rendered, nil
}
