// Package dedup canonicalizes posting URLs and filters out postings that were
// already seen in an earlier run or earlier in the current one.
package dedup

import (
	"fmt"
	"net/url"
	"strings"
)

var trackingParams = map[string]struct{}{
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"mc_cid":       {},
	"mc_eid":       {},
	"mkt_tok":      {},
	"gh_src":       {},
	"lever-source": {},
	"lever-origin": {},
	"ref":          {},
}

// Normalize canonicalizes a posting URL so that equivalent links compare equal.
// It lowercases the scheme and host, removes default ports, fragments,
// tracking parameters and trailing slashes, strips apply-form suffixes, and
// sorts the remaining query parameters.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, drop := trackingParams[lower]; drop || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	path := strings.TrimRight(u.Path, "/")
	switch u.Hostname() {
	case "jobs.lever.co":
		path = strings.TrimSuffix(path, "/apply")
	case "jobs.ashbyhq.com":
		path = strings.TrimSuffix(path, "/application")
	}
	u.Path = path
	u.RawPath = ""

	return u.String(), nil
}

// Host returns the lowercase hostname of rawURL without a leading "www.".
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
