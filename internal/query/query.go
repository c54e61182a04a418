// Package query turns a free-text search intent into platform-scoped search
// queries and title keywords.
package query

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/ats-job-scout/internal/jobs"
)

// DefaultIntent is used when no intent is configured or passed on the command line.
const DefaultIntent = `("AI engineer" OR "Gen AI engineer" OR "AI/ML engineer")`

// Query is one search engine query scoped to a single platform.
type Query struct {
	Platform jobs.Platform
	Site     string
	Text     string
}

// String returns the query text.
func (q Query) String() string {
	return q.Text
}

// siteHosts holds the host each platform publishes postings under, in query order.
var siteHosts = []struct {
	platform jobs.Platform
	host     string
}{
	{jobs.PlatformLever, "jobs.lever.co"},
	{jobs.PlatformAshby, "jobs.ashbyhq.com"},
	{jobs.PlatformGreenhouse, "boards.greenhouse.io"},
	{jobs.PlatformSmartRecruiters, "jobs.smartrecruiters.com"},
}

// Generate builds one site-restricted query per supported platform.
// The output order is fixed; a blank intent falls back to DefaultIntent.
func Generate(intent string) []Query {
	intent = Intent(intent)
	out := make([]Query, 0, len(siteHosts))
	for _, s := range siteHosts {
		out = append(out, Query{
			Platform: s.platform,
			Site:     s.host,
			Text:     fmt.Sprintf("site:%s %s", s.host, intent),
		})
	}
	return out
}

// Intent trims raw and substitutes DefaultIntent when it is empty.
func Intent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultIntent
	}
	return raw
}

var fallbackKeywords = []string{"engineer", "ai", "ml", "machine learning", "developer"}

// Keywords extracts lowercase title keywords from an intent. Boolean
// operators, quotes and parentheses are dropped, as are one-letter tokens.
func Keywords(intent string) []string {
	cleaned := strings.NewReplacer("(", " ", ")", " ", `"`, " ", "'", " ").Replace(strings.ToLower(intent))
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if tok == "or" || tok == "and" || tok == "not" || len(tok) <= 1 {
			continue
		}
		if strings.HasPrefix(tok, "site:") {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	if len(out) == 0 {
		return append([]string(nil), fallbackKeywords...)
	}
	return out
}

// MatchesAny reports whether title contains at least one keyword.
// Slash-separated keywords such as "ai/ml" also match on their parts.
func MatchesAny(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if containsWord(lower, kw) {
			return true
		}
		if strings.Contains(kw, "/") {
			for _, part := range strings.Split(kw, "/") {
				if len(part) > 1 && containsWord(lower, part) {
					return true
				}
			}
		}
	}
	return false
}

// containsWord matches kw on word boundaries so "ai" does not match "maintain".
func containsWord(s, kw string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if (idx == 0 || !isWordByte(s[idx-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
