package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// DuckDuckGoURL is the HTML-only endpoint, which needs no JavaScript.
const DuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the DuckDuckGo HTML results page.
type DuckDuckGo struct {
	fetcher jobs.Fetcher
	baseURL string
}

// NewDuckDuckGo returns an engine. An empty baseURL uses DuckDuckGoURL.
func NewDuckDuckGo(f jobs.Fetcher, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DuckDuckGoURL
	}
	return &DuckDuckGo{fetcher: f, baseURL: baseURL}
}

// Name implements Engine.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements Engine.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]string, error) {
	target := d.baseURL + "?" + url.Values{"q": {query}}.Encode()
	resp, err := fetchResults(ctx, d.fetcher, d.Name(), target, ddgThrottled)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo parse: %w", err)
	}

	var out []string
	seen := map[string]struct{}{}
	doc.Find("a.result__a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = appendUnique(out, seen, decodeDuckDuckGoLink(href), limit)
	})
	return out, nil
}

// ddgThrottled spots the 202 interstitial and the anomaly captcha page.
func ddgThrottled(resp jobs.FetchResponse) bool {
	return resp.StatusCode == http.StatusAccepted || containsFold(resp.Body, "anomaly-modal") ||
		containsFold(resp.Body, "If this error persists")
}

// decodeDuckDuckGoLink unwraps //duckduckgo.com/l/?uddg=<target> redirects.
func decodeDuckDuckGoLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}
