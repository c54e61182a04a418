package dedup

import (
	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// KnownSet answers membership queries for canonical URLs already persisted.
type KnownSet interface {
	Contains(url string) bool
}

// Result is the outcome of a Filter pass.
type Result struct {
	// Fresh holds canonicalized candidates in first-seen order.
	Fresh []jobs.Candidate
	// Known counts candidates already present in the master store.
	Known int
	// Repeated counts intra-run duplicates.
	Repeated int
	// Invalid counts URLs that could not be parsed.
	Invalid int
}

// Skipped returns the number of candidates that will not be parsed.
func (r Result) Skipped() int {
	return r.Known + r.Repeated
}

// Filter returns the candidates that still need parsing. It never mutates
// known. When the same URL appears twice the first occurrence wins, but a
// structured payload from a later occurrence is kept.
func Filter(candidates []jobs.Candidate, known KnownSet) Result {
	var res Result
	index := make(map[string]int, len(candidates))
	for _, c := range candidates {
		canonical, err := Normalize(c.URL)
		if err != nil {
			res.Invalid++
			continue
		}
		if known != nil && known.Contains(canonical) {
			res.Known++
			continue
		}
		if i, seen := index[canonical]; seen {
			res.Repeated++
			if len(res.Fresh[i].Payload) == 0 && len(c.Payload) > 0 {
				res.Fresh[i].Payload = c.Payload
			}
			continue
		}
		c.URL = canonical
		index[canonical] = len(res.Fresh)
		res.Fresh = append(res.Fresh, c)
	}
	return res
}

// Set is a simple KnownSet backed by a map.
type Set map[string]struct{}

// NewSet builds a Set from already-canonical URLs.
func NewSet(urls ...string) Set {
	s := make(Set, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Contains implements KnownSet.
func (s Set) Contains(url string) bool {
	_, ok := s[url]
	return ok
}
