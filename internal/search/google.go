package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// GoogleURL is the public results page.
const GoogleURL = "https://www.google.com/search"

// Google scrapes the basic Google results page.
type Google struct {
	fetcher jobs.Fetcher
	baseURL string
}

// NewGoogle returns an engine. An empty baseURL uses GoogleURL.
func NewGoogle(f jobs.Fetcher, baseURL string) *Google {
	if baseURL == "" {
		baseURL = GoogleURL
	}
	return &Google{fetcher: f, baseURL: baseURL}
}

// Name implements Engine.
func (g *Google) Name() string { return "google" }

// Search implements Engine.
func (g *Google) Search(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{"q": {query}, "hl": {"en"}}
	if limit > 0 {
		params.Set("num", strconv.Itoa(limit+2))
	}
	resp, err := fetchResults(ctx, g.fetcher, g.Name(), g.baseURL+"?"+params.Encode(), googleThrottled)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("google parse: %w", err)
	}

	var out []string
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = appendUnique(out, seen, decodeGoogleLink(href), limit)
	})
	return out, nil
}

func googleThrottled(resp jobs.FetchResponse) bool {
	return strings.Contains(resp.URL, "/sorry/") || containsFold(resp.Body, "unusual traffic")
}

// decodeGoogleLink returns the organic target of a result anchor, or "" for
// navigation and Google-owned links.
func decodeGoogleLink(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "google.com" || strings.HasSuffix(host, ".google.com") ||
		strings.HasSuffix(host, ".googleusercontent.com") || strings.HasSuffix(host, ".gstatic.com") {
		return ""
	}
	return href
}
