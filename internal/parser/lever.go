package parser

import (
	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Lever parses jobs.lever.co posting pages.
type Lever struct{}

// Platform implements Parser.
func (Lever) Platform() jobs.Platform { return jobs.PlatformLever }

// Parse implements Parser.
func (Lever) Parse(in Input) (jobs.JobPosting, error) {
	const p = jobs.PlatformLever
	segs := pathSegments(in.URL)
	if len(segs) < 2 {
		return jobs.JobPosting{}, failf(p, in.URL, nil, "url has no posting id")
	}
	if len(in.Body) == 0 {
		return jobs.JobPosting{}, failf(p, in.URL, nil, "empty body")
	}
	doc, err := newDocument(in.Body)
	if err != nil {
		return jobs.JobPosting{}, failf(p, in.URL, err, "read html")
	}

	desc := firstText(doc,
		`[data-qa="job-description"]`,
		"div.posting-description",
		"div.section-wrapper.page-full-width",
		"div.content",
	)
	if desc == "" {
		desc = bodyText(doc)
	}

	return jobs.JobPosting{
		Title: firstText(doc, ".posting-headline h2", "h2"),
		Location: normalizeLocation(firstText(doc,
			".posting-categories .location",
			".posting-headline .location",
			"div.location",
			".sort-by-location",
		)),
		Company:     segs[0],
		Description: desc,
		Signals: jobs.Signals{
			// A company board renders many postings; a live posting renders none.
			ListingPage: doc.Find("div.posting").Length() > 1,
			WebsiteHint: firstAttr(doc, "href", "a.main-header-logo", ".main-header-logo a"),
			Links:       outboundLinks(doc, in.URL),
		},
	}, nil
}
