package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

// Searcher runs a single web search.
type Searcher interface {
	SearchOne(ctx context.Context, query string, limit int) ([]string, error)
}

// linkPhrases mark anchors that usually point at the company's own site.
var linkPhrases = []string{"website", "company site", "visit us", "learn more about", "homepage"}

const searchResultLimit = 5

// Resolver finds a company's website. Answers, including searches that
// found nothing, are cached per company for the resolver's lifetime; failed
// searches are not cached and are retried on the next posting.
type Resolver struct {
	searcher Searcher
	logger   *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
	group singleflight.Group
}

// NewResolver creates a Resolver. A nil searcher disables the search step.
func NewResolver(searcher Searcher, logger *zap.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		logger:   logging.OrNop(logger).Named("resolver"),
		cache:    make(map[string]string),
	}
}

// Resolve returns scheme://host for the posting's company, or "". The first
// source that yields a usable URL wins: platform metadata, then an outbound
// link from the posting, then a web search.
func (r *Resolver) Resolve(ctx context.Context, posting jobs.JobPosting) string {
	key := companyKey(posting.Company)

	if site := siteRoot(posting.Signals.WebsiteHint); site != "" {
		r.remember(key, site)
		return site
	}
	if site := r.fromLinks(posting); site != "" {
		r.remember(key, site)
		return site
	}
	if key == "" || key == "unknown" {
		return ""
	}
	if site, ok := r.cached(key); ok {
		return site
	}
	if r.searcher == nil {
		return ""
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if site, ok := r.cached(key); ok {
			return site, nil
		}
		site, err := r.fromSearch(ctx, posting.Company)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.cache[key] = site
		r.mu.Unlock()
		return site, nil
	})
	if err != nil {
		r.logger.Debug("website search failed", zap.String("company", posting.Company), zap.Error(err))
		return ""
	}
	return v.(string)
}

func (r *Resolver) cached(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	site, ok := r.cache[key]
	return site, ok
}

func (r *Resolver) remember(key, site string) {
	if key == "" {
		return
	}
	r.mu.Lock()
	if r.cache[key] == "" {
		r.cache[key] = site
	}
	r.mu.Unlock()
}

func (r *Resolver) fromLinks(posting jobs.JobPosting) string {
	name := strings.ToLower(strings.TrimSpace(posting.Company))
	slug := companyKey(posting.Company)
	for _, link := range posting.Signals.Links {
		site := siteRoot(link.Href)
		if site == "" {
			continue
		}
		text := strings.ToLower(link.Text)
		if containsAny(text, linkPhrases) || (len(name) > 1 && name != "unknown" && strings.Contains(text, name)) {
			return site
		}
		if len(slug) > 2 && slug != "unknown" && hostMatches(site, slug) {
			return site
		}
	}
	return ""
}

// fromSearch returns "" with a nil error when the search answered without a
// usable result.
func (r *Resolver) fromSearch(ctx context.Context, company string) (string, error) {
	q := fmt.Sprintf("%q official website", searchName(company))
	results, err := r.searcher.SearchOne(ctx, q, searchResultLimit)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", q, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, res := range results {
		if site := siteRoot(res); site != "" {
			r.logger.Debug("website found by search", zap.String("company", company), zap.String("website", site))
			return site, nil
		}
	}
	return "", nil
}

func hostMatches(site, slug string) bool {
	u, err := url.Parse(site)
	if err != nil {
		return false
	}
	return strings.Contains(companyKey(u.Hostname()), slug)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
