package enrich

import (
	"context"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Enricher resolves the website and then scrapes contacts from it.
type Enricher struct {
	Resolver *Resolver
	Contacts *ContactScraper
}

// Enrich never fails; missing data leaves the contact fields empty.
func (e *Enricher) Enrich(ctx context.Context, posting jobs.JobPosting) jobs.EnrichedJob {
	out := jobs.EnrichedJob{JobPosting: posting}
	if e.Resolver != nil {
		out.CompanyWebsite = e.Resolver.Resolve(ctx, posting)
	}
	if out.CompanyWebsite != "" && e.Contacts != nil {
		out.HREmail, out.HRLinkedIn = e.Contacts.Scrape(ctx, out.CompanyWebsite)
	}
	return out
}
