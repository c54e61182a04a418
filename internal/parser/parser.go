// Package parser turns fetched ATS pages, or structured API payloads, into
// normalized job postings. There is one parser per platform behind a single
// Parser contract and a Registry that dispatches on platform.
package parser

import (
	"fmt"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Input is everything a parser may look at for a single posting.
type Input struct {
	// URL is the canonical posting URL and becomes the record identity.
	URL string
	// FinalURL is where the fetch landed after redirects.
	FinalURL string
	Body     []byte
	// Payload is a structured posting from a platform API.
	Payload []byte
}

// Parser extracts a posting for one platform. Every error it returns is a *Failure.
type Parser interface {
	Platform() jobs.Platform
	Parse(in Input) (jobs.JobPosting, error)
}

// Failure explains why a posting could not be parsed.
type Failure struct {
	Platform jobs.Platform
	URL      string
	Reason   string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("parse %s posting %s: %s: %v", f.Platform, f.URL, f.Reason, f.Err)
	}
	return fmt.Sprintf("parse %s posting %s: %s", f.Platform, f.URL, f.Reason)
}

// Unwrap exposes the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

func failf(p jobs.Platform, url string, err error, format string, args ...any) *Failure {
	return &Failure{Platform: p, URL: url, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Registry selects a parser by platform.
type Registry struct {
	parsers map[jobs.Platform]Parser
}

// NewRegistry registers parsers; a later parser for the same platform replaces an earlier one.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[jobs.Platform]Parser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.Platform()] = p
	}
	return r
}

// Default returns a registry with all four platform parsers.
func Default() *Registry {
	return NewRegistry(Lever{}, Ashby{}, Greenhouse{}, SmartRecruiters{})
}

// Supports reports whether a parser exists for platform.
func (r *Registry) Supports(platform jobs.Platform) bool {
	_, ok := r.parsers[platform]
	return ok
}

// Parse runs the platform parser. Panics inside a parser are reported as a Failure.
func (r *Registry) Parse(platform jobs.Platform, in Input) (posting jobs.JobPosting, err error) {
	p, ok := r.parsers[platform]
	if !ok {
		return jobs.JobPosting{}, failf(platform, in.URL, nil, "no parser registered")
	}
	defer func() {
		if rec := recover(); rec != nil {
			posting = jobs.JobPosting{}
			err = failf(platform, in.URL, nil, "parser panic: %v", rec)
		}
	}()
	posting, err = p.Parse(in)
	if err != nil {
		return jobs.JobPosting{}, err
	}
	posting.Source = platform
	posting.URL = in.URL
	if posting.Status == "" {
		posting.Status = jobs.StatusUnknown
	}
	posting.Signals.RequestedURL = in.URL
	if in.FinalURL != "" {
		posting.Signals.FinalURL = in.FinalURL
	} else {
		posting.Signals.FinalURL = in.URL
	}
	return posting, nil
}
