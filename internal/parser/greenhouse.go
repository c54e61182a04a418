package parser

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Greenhouse parses boards.greenhouse.io postings, including the embed form
// /embed/job_app?for=<company>&token=<id>.
type Greenhouse struct{}

// Platform implements Parser.
func (Greenhouse) Platform() jobs.Platform { return jobs.PlatformGreenhouse }

// Parse implements Parser.
func (Greenhouse) Parse(in Input) (jobs.JobPosting, error) {
	const p = jobs.PlatformGreenhouse
	company, ok := greenhouseCompany(in.URL)
	if !ok {
		return jobs.JobPosting{}, failf(p, in.URL, nil, "url has no posting id")
	}
	if len(in.Body) == 0 {
		return jobs.JobPosting{}, failf(p, in.URL, nil, "empty body")
	}
	doc, err := newDocument(in.Body)
	if err != nil {
		return jobs.JobPosting{}, failf(p, in.URL, err, "read html")
	}

	if name := strings.TrimSpace(strings.TrimPrefix(firstText(doc, ".company-name"), "at ")); name != "" {
		company = name
	}
	desc := firstText(doc, "div#content", ".job__description", "div#main")
	if desc == "" {
		desc = bodyText(doc)
	}
	title := firstText(doc, "h1.app-title", ".job__title h1", "h1")
	if title == "" {
		title = metaContent(doc, "og:title")
	}

	return jobs.JobPosting{
		Title:       title,
		Company:     company,
		Location:    normalizeLocation(firstText(doc, "div.location", "span.location", ".job__location", ".location")),
		Description: desc,
		Signals: jobs.Signals{
			WebsiteHint: firstAttr(doc, "href", "#logo a", ".logo a", "a.logo"),
			Links:       outboundLinks(doc, in.URL),
		},
	}, nil
}

func greenhouseCompany(raw string) (string, bool) {
	segs := pathSegments(raw)
	if len(segs) >= 2 && segs[0] == "embed" {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false
		}
		q := u.Query()
		if q.Get("for") == "" || q.Get("token") == "" {
			return "", false
		}
		return q.Get("for"), true
	}
	if len(segs) >= 3 && segs[1] == "jobs" {
		return segs[0], true
	}
	return "", false
}
