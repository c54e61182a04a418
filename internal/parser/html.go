package parser

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

func newDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// cleanText collapses whitespace, including non-breaking spaces.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLocation strips labels and de-duplicates comma-separated parts.
func normalizeLocation(loc string) string {
	loc = cleanText(loc)
	for _, prefix := range []string{"Location:", "LOCATIONS:", "Locations:"} {
		loc = strings.TrimSpace(strings.TrimPrefix(loc, prefix))
	}
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(loc, ",") {
		part = cleanText(strings.Trim(part, " /"))
		if part == "" || seen[strings.ToLower(part)] {
			continue
		}
		seen[strings.ToLower(part)] = true
		out = append(out, part)
	}
	return strings.Join(out, ", ")
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := `meta[property="` + name + `"], meta[name="` + name + `"]`
		if v := firstAttr(doc, "content", sel); v != "" {
			return cleanText(v)
		}
	}
	return ""
}

// bodyText returns visible page text with scripts and styles removed.
func bodyText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	clone := body.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return cleanText(clone.Text())
}

// outboundLinks lists absolute http(s) anchors, resolved against base.
func outboundLinks(doc *goquery.Document, base string) []jobs.Link {
	baseURL, _ := url.Parse(base)
	seen := make(map[string]struct{})
	var links []jobs.Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if baseURL != nil {
			u = baseURL.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		abs := u.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, jobs.Link{Href: abs, Text: cleanText(a.Text())})
	})
	return links
}

// pathSegments splits the URL path into non-empty segments.
func pathSegments(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// CompanySlug returns the first path segment of an ATS URL, or "Unknown".
func CompanySlug(raw string) string {
	segs := pathSegments(raw)
	if len(segs) == 0 {
		return "Unknown"
	}
	return segs[0]
}

// jsonLDPosting is the subset of a schema.org JobPosting we read.
type jsonLDPosting struct {
	Type               any    `json:"@type"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	HiringOrganization struct {
		Name   string `json:"name"`
		SameAs string `json:"sameAs"`
		URL    string `json:"url"`
	} `json:"hiringOrganization"`
	JobLocation json.RawMessage `json:"jobLocation"`
}

type jsonLDPlace struct {
	Address struct {
		Locality string `json:"addressLocality"`
		Region   string `json:"addressRegion"`
		Country  any    `json:"addressCountry"`
	} `json:"address"`
}

func (p jsonLDPosting) isJobPosting() bool {
	switch t := p.Type.(type) {
	case string:
		return t == "JobPosting"
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func (p jsonLDPosting) location() string {
	if len(p.JobLocation) == 0 {
		return ""
	}
	var places []jsonLDPlace
	if err := json.Unmarshal(p.JobLocation, &places); err != nil {
		var single jsonLDPlace
		if err := json.Unmarshal(p.JobLocation, &single); err != nil {
			return ""
		}
		places = []jsonLDPlace{single}
	}
	var parts []string
	for _, place := range places {
		country := ""
		switch c := place.Address.Country.(type) {
		case string:
			country = c
		case map[string]any:
			if name, ok := c["name"].(string); ok {
				country = name
			}
		}
		parts = append(parts, place.Address.Locality, place.Address.Region, country)
	}
	return normalizeLocation(strings.Join(parts, ","))
}

// findJSONLDPosting returns the first schema.org JobPosting block on the page.
func findJSONLDPosting(doc *goquery.Document) (jsonLDPosting, bool) {
	var (
		found jsonLDPosting
		ok    bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var single jsonLDPosting
		if err := json.Unmarshal([]byte(raw), &single); err == nil && single.isJobPosting() {
			found, ok = single, true
			return false
		}
		var many []jsonLDPosting
		if err := json.Unmarshal([]byte(raw), &many); err == nil {
			for _, p := range many {
				if p.isJobPosting() {
					found, ok = p, true
					return false
				}
			}
		}
		return true
	})
	return found, ok
}

// htmlToText renders an HTML fragment as plain text.
func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanText(fragment)
	}
	return cleanText(doc.Text())
}
