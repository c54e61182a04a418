package enrich

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

// DefaultContactPaths are the pages checked on a company site, in priority order.
var DefaultContactPaths = []string{"/", "/careers", "/about", "/team"}

var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	linkedInPattern = regexp.MustCompile(`https?://(?:[a-z]{2,3}\.)?linkedin\.com/(?:company|in)/[A-Za-z0-9_%-]+`)
)

// preferredEmailTokens mark addresses that likely reach hiring staff.
var preferredEmailTokens = []string{"hr", "careers", "jobs", "talent", "recruit", "hiring", "people"}

var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js", ".ico"}

var placeholderDomains = []string{"example.com", "domain.com", "email.com", "sentry.io", "wixpress.com", "sentry-next.wixpress.com"}

// ContactScraper scans a company's public pages for an HR email address and
// a LinkedIn profile.
type ContactScraper struct {
	fetcher     jobs.Fetcher
	paths       []string
	concurrency int
	logger      *zap.Logger
}

// NewContactScraper creates a scraper. Empty paths use DefaultContactPaths.
func NewContactScraper(f jobs.Fetcher, paths []string, concurrency int, logger *zap.Logger) *ContactScraper {
	if len(paths) == 0 {
		paths = DefaultContactPaths
	}
	if concurrency <= 0 {
		concurrency = len(paths)
	}
	return &ContactScraper{fetcher: f, paths: paths, concurrency: concurrency, logger: logging.OrNop(logger).Named("contacts")}
}

type page struct {
	text string
	raw  string
}

// Scrape fetches the configured pages of website and returns the first
// matching email and LinkedIn URL. Page failures are swallowed.
func (s *ContactScraper) Scrape(ctx context.Context, website string) (email, linkedIn string) {
	website = strings.TrimRight(website, "/")
	if website == "" {
		return "", ""
	}
	pages := make([]*page, len(s.paths))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, path := range s.paths {
		g.Go(func() error {
			target := website + "/" + strings.TrimLeft(path, "/")
			if path == "/" || path == "" {
				target = website + "/"
			}
			resp, err := s.fetcher.Fetch(ctx, jobs.FetchRequest{URL: target})
			if err == nil {
				err = jobs.CheckStatus(resp)
			}
			if err != nil {
				s.logger.Debug("contact page unavailable", zap.String("url", target), zap.Error(err))
				return nil
			}
			pages[i] = readPage(resp.Body)
			return nil
		})
	}
	_ = g.Wait()

	return pickEmail(pages), pickLinkedIn(pages)
}

func readPage(body []byte) *page {
	p := &page{raw: string(body)}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		doc.Find("script, style, noscript").Remove()
		p.text = doc.Text()
	}
	return p
}

func pickEmail(pages []*page) string {
	var first string
	for _, p := range pages {
		if p == nil {
			continue
		}
		for _, src := range []string{p.text, p.raw} {
			for _, addr := range emailPattern.FindAllString(src, -1) {
				addr = strings.ToLower(addr)
				if !plausibleEmail(addr) {
					continue
				}
				if preferredEmail(addr) {
					return addr
				}
				if first == "" {
					first = addr
				}
			}
		}
	}
	return first
}

func pickLinkedIn(pages []*page) string {
	for _, p := range pages {
		if p == nil {
			continue
		}
		if m := linkedInPattern.FindString(p.raw); m != "" {
			return m
		}
	}
	return ""
}

// preferredEmail matches short tokens such as "hr" only as a whole segment of
// the local part, so chris@ is not mistaken for an HR inbox.
func preferredEmail(addr string) bool {
	local, _, _ := strings.Cut(addr, "@")
	segments := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for _, tok := range preferredEmailTokens {
		if len(tok) > 2 {
			if strings.Contains(local, tok) {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if seg == tok {
				return true
			}
		}
	}
	return false
}

// plausibleEmail rejects image names like logo@2x.png and vendor placeholders.
func plausibleEmail(addr string) bool {
	_, domain, ok := strings.Cut(addr, "@")
	if !ok {
		return false
	}
	for _, suffix := range assetSuffixes {
		if strings.HasSuffix(addr, suffix) {
			return false
		}
	}
	if strings.Contains(addr, "@2x") || strings.Contains(addr, "@3x") {
		return false
	}
	for _, d := range placeholderDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return false
		}
	}
	return true
}
