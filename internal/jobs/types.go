package jobs

import (
	"net/http"
	"time"
)

// Platform identifies one of the supported applicant tracking systems.
type Platform string

// Supported platforms. The string value is what lands in the Source column.
const (
	PlatformLever           Platform = "Lever"
	PlatformAshby           Platform = "Ashby"
	PlatformGreenhouse      Platform = "Greenhouse"
	PlatformSmartRecruiters Platform = "SmartRecruiters"
)

// Platforms lists every supported platform in routing order.
func Platforms() []Platform {
	return []Platform{PlatformLever, PlatformAshby, PlatformGreenhouse, PlatformSmartRecruiters}
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformLever, PlatformAshby, PlatformGreenhouse, PlatformSmartRecruiters:
		return true
	default:
		return false
	}
}

// Status captures the liveness of a posting.
type Status string

// Posting statuses.
const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusUnknown Status = "unknown"
)

// Link is an anchor found on a job page.
type Link struct {
	Href string
	Text string
}

// Signals carries page-level evidence gathered while fetching and parsing a
// posting. None of it is persisted.
type Signals struct {
	RequestedURL string
	FinalURL     string
	// ListingPage is set when the page rendered a list of postings instead of one.
	ListingPage bool
	// WebsiteHint is a company website taken from platform metadata.
	WebsiteHint string
	Links       []Link
}

// Redirected reports whether the fetch landed on a different URL.
func (s Signals) Redirected() bool {
	return s.FinalURL != "" && s.RequestedURL != "" && s.FinalURL != s.RequestedURL
}

// JobPosting is a normalized posting. URL is the canonical identity key.
type JobPosting struct {
	Title    string
	Company  string
	Location string
	URL      string
	Source   Platform
	Status   Status

	// Description is used for liveness checks only.
	Description string
	Signals     Signals
}

// Contact holds enrichment results. Empty strings mean "not found".
type Contact struct {
	CompanyWebsite string
	HREmail        string
	HRLinkedIn     string
}

// EnrichedJob is a posting that survived validation plus its contact data.
type EnrichedJob struct {
	JobPosting
	Contact
}

// Candidate is a discovered posting URL before routing.
type Candidate struct {
	URL string
	// Origin names the discovery source, e.g. "duckduckgo" or "direct:ashby".
	Origin string
	// Payload holds a structured posting from a platform API, when available.
	Payload []byte
}

// FetchRequest describes a page to retrieve.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw result of a page fetch.
type FetchResponse struct {
	RequestedURL string
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
