// Package directapi discovers postings through the public job board APIs of
// the supported platforms, for companies named in an allow-list.
package directapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
	"github.com/JakeFAU/ats-job-scout/internal/query"
	"github.com/JakeFAU/ats-job-scout/internal/retry"
)

const maxResponseBytes = 8 << 20

// Endpoints holds API base URLs so tests can point them at httptest servers.
type Endpoints struct {
	Ashby           string
	Lever           string
	Greenhouse      string
	SmartRecruiters string
}

// DefaultEndpoints are the production API hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Ashby:           "https://jobs.ashbyhq.com",
		Lever:           "https://api.lever.co",
		Greenhouse:      "https://boards-api.greenhouse.io",
		SmartRecruiters: "https://api.smartrecruiters.com",
	}
}

// Companies lists the board slugs to query per platform.
type Companies struct {
	Ashby           []string
	Lever           []string
	Greenhouse      []string
	SmartRecruiters []string
}

// Waiter throttles requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config configures a Client.
type Config struct {
	Endpoints Endpoints
	UserAgent string
	Timeout   time.Duration
	Retry     retry.Policy
}

// Client talks JSON to the platform APIs.
type Client struct {
	hc        *http.Client
	endpoints Endpoints
	userAgent string
	limiter   Waiter
	policy    retry.Policy
	sleeper   retry.Sleeper
	logger    *zap.Logger
}

// NewClient creates a Client. limiter and sleeper may be nil.
func NewClient(cfg Config, limiter Waiter, sleeper retry.Sleeper, logger *zap.Logger) *Client {
	ep := DefaultEndpoints()
	if cfg.Endpoints.Ashby != "" {
		ep.Ashby = cfg.Endpoints.Ashby
	}
	if cfg.Endpoints.Lever != "" {
		ep.Lever = cfg.Endpoints.Lever
	}
	if cfg.Endpoints.Greenhouse != "" {
		ep.Greenhouse = cfg.Endpoints.Greenhouse
	}
	if cfg.Endpoints.SmartRecruiters != "" {
		ep.SmartRecruiters = cfg.Endpoints.SmartRecruiters
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if sleeper == nil {
		sleeper = retry.TimerSleeper{}
	}
	return &Client{
		hc:        &http.Client{Timeout: cfg.Timeout},
		endpoints: ep,
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		policy:    cfg.Retry,
		sleeper:   sleeper,
		logger:    logging.OrNop(logger).Named("directapi"),
	}
}

// Sources returns one discovery source per platform with at least one slug.
func (c *Client) Sources(companies Companies) []*Source {
	var out []*Source
	add := func(platform jobs.Platform, slugs []string, list lister) {
		if len(slugs) > 0 {
			out = append(out, &Source{client: c, platform: platform, slugs: slugs, list: list})
		}
	}
	add(jobs.PlatformAshby, companies.Ashby, c.listAshby)
	add(jobs.PlatformLever, companies.Lever, c.listLever)
	add(jobs.PlatformGreenhouse, companies.Greenhouse, c.listGreenhouse)
	add(jobs.PlatformSmartRecruiters, companies.SmartRecruiters, c.listSmartRecruiters)
	return out
}

// listing is one posting as reported by a board API.
type listing struct {
	Title   string
	URL     string
	Payload []byte
}

type lister func(ctx context.Context, slug string) ([]listing, error)

// Source discovers candidates for one platform.
type Source struct {
	client   *Client
	platform jobs.Platform
	slugs    []string
	list     lister
}

// Name identifies the source in candidate origins and metrics.
func (s *Source) Name() string {
	return "direct:" + strings.ToLower(string(s.platform))
}

// Discover lists every configured board and keeps postings whose title
// matches a keyword. Failing boards are logged and skipped; their errors are
// joined into the returned error alongside whatever the other boards found.
func (s *Source) Discover(ctx context.Context, keywords []string) ([]jobs.Candidate, error) {
	var (
		out  []jobs.Candidate
		errs []error
	)
	for _, slug := range s.slugs {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			continue
		}
		listings, err := s.list(ctx, slug)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.client.logger.Warn("board listing failed",
				zap.String("platform", string(s.platform)), zap.String("company", slug), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", slug, err))
			continue
		}
		matched := 0
		for _, l := range listings {
			if l.URL == "" || !query.MatchesAny(l.Title, keywords) {
				continue
			}
			matched++
			out = append(out, jobs.Candidate{URL: l.URL, Origin: s.Name(), Payload: l.Payload})
		}
		s.client.logger.Info("board listed",
			zap.String("platform", string(s.platform)), zap.String("company", slug),
			zap.Int("total", len(listings)), zap.Int("matched", matched))
	}
	return out, errors.Join(errs...)
}

// doJSON sends one request, retrying transient failures, and decodes the
// JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, target string, body []byte, out any) error {
	return retry.Do(ctx, c.policy, c.sleeper, func(ctx context.Context, _ int) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, target); err != nil {
				return err
			}
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, target, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			return &jobs.StatusError{URL: target, Code: resp.StatusCode}
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("decode %s: %w", target, err))
		}
		return nil
	})
}
