package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// SmartRecruiters parses jobs.smartrecruiters.com postings. Schema.org
// JSON-LD, when present, fills gaps left by the markup.
type SmartRecruiters struct{}

// Platform implements Parser.
func (SmartRecruiters) Platform() jobs.Platform { return jobs.PlatformSmartRecruiters }

// Parse implements Parser.
func (SmartRecruiters) Parse(in Input) (jobs.JobPosting, error) {
	const p = jobs.PlatformSmartRecruiters
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
	ld, hasLD := findJSONLDPosting(doc)

	posting := jobs.JobPosting{
		Title:    firstText(doc, "h1.job-title", "h1#st-jobTitle", "h1"),
		Location: smartRecruitersLocation(doc),
		Company:  segs[0],
		Description: firstText(doc,
			`div[itemprop="description"]`,
			"div.job-sections",
			"section#st-jobDescription",
		),
		Signals: jobs.Signals{Links: outboundLinks(doc, in.URL)},
	}

	if hasLD {
		if posting.Title == "" {
			posting.Title = cleanText(ld.Title)
		}
		if posting.Location == "" {
			posting.Location = ld.location()
		}
		if posting.Description == "" {
			posting.Description = htmlToText(ld.Description)
		}
		if name := cleanText(ld.HiringOrganization.Name); name != "" {
			posting.Company = name
		}
		posting.Signals.WebsiteHint = firstNonEmpty(ld.HiringOrganization.SameAs, ld.HiringOrganization.URL)
	}
	if posting.Description == "" {
		posting.Description = bodyText(doc)
	}
	return posting, nil
}

func smartRecruitersLocation(doc *goquery.Document) string {
	if loc := firstAttr(doc, "formattedaddress", "spl-job-location"); loc != "" {
		return normalizeLocation(loc)
	}
	parts := []string{
		firstAttr(doc, "content", `meta[itemprop="addressLocality"]`),
		firstAttr(doc, "content", `meta[itemprop="addressRegion"]`),
		firstAttr(doc, "content", `meta[itemprop="addressCountry"]`),
	}
	if loc := normalizeLocation(strings.Join(parts, ",")); loc != "" {
		return loc
	}
	return normalizeLocation(firstText(doc, `li[itemprop="jobLocation"]`, ".job-details .location"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
