// Package router maps posting URLs onto the platform whose parser handles them.
package router

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// Route binds a host pattern to a platform. Patterns are exact hosts or
// "*."-prefixed suffix wildcards.
type Route struct {
	Pattern  string
	Platform jobs.Platform
}

// DefaultRoutes is the fixed routing table. Supporting a new platform means
// adding a row here and registering a parser for it.
var DefaultRoutes = []Route{
	{Pattern: "jobs.lever.co", Platform: jobs.PlatformLever},
	{Pattern: "jobs.eu.lever.co", Platform: jobs.PlatformLever},
	{Pattern: "jobs.ashbyhq.com", Platform: jobs.PlatformAshby},
	{Pattern: "boards.greenhouse.io", Platform: jobs.PlatformGreenhouse},
	{Pattern: "job-boards.greenhouse.io", Platform: jobs.PlatformGreenhouse},
	{Pattern: "*.smartrecruiters.com", Platform: jobs.PlatformSmartRecruiters},
}

type suffixRoute struct {
	suffix   string
	platform jobs.Platform
}

// Router selects the platform for a URL using exact hosts first, then suffixes.
type Router struct {
	exact    map[string]jobs.Platform
	suffixes []suffixRoute
}

// New compiles a routing table. Blank patterns are ignored and later
// duplicates never override earlier rows.
func New(routes []Route) *Router {
	r := &Router{exact: make(map[string]jobs.Platform)}
	for _, route := range routes {
		value := strings.TrimSpace(strings.ToLower(route.Pattern))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			r.addSuffix(strings.TrimPrefix(value, "*."), route.Platform)
		case strings.HasPrefix(value, "."):
			r.addSuffix(strings.TrimPrefix(value, "."), route.Platform)
		default:
			if _, exists := r.exact[value]; !exists {
				r.exact[value] = route.Platform
			}
		}
	}
	return r
}

// NewDefault compiles DefaultRoutes.
func NewDefault() *Router {
	return New(DefaultRoutes)
}

func (r *Router) addSuffix(suffix string, platform jobs.Platform) {
	if suffix == "" {
		return
	}
	for _, existing := range r.suffixes {
		if existing.suffix == suffix {
			return
		}
	}
	r.suffixes = append(r.suffixes, suffixRoute{suffix: suffix, platform: platform})
}

// Route returns the platform for rawURL. ok is false for unsupported hosts.
func (r *Router) Route(rawURL string) (jobs.Platform, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if p, ok := r.exact[host]; ok {
		return p, true
	}
	for _, s := range r.suffixes {
		if host == s.suffix || strings.HasSuffix(host, "."+s.suffix) {
			return s.platform, true
		}
	}
	return "", false
}

// Split partitions candidates by platform, returning unsupported ones separately.
func (r *Router) Split(candidates []jobs.Candidate) (routed map[jobs.Platform][]jobs.Candidate, unsupported []jobs.Candidate) {
	routed = make(map[jobs.Platform][]jobs.Candidate)
	for _, c := range candidates {
		p, ok := r.Route(c.URL)
		if !ok {
			unsupported = append(unsupported, c)
			continue
		}
		routed[p] = append(routed[p], c)
	}
	return routed, unsupported
}
