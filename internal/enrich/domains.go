// Package enrich finds a company's website and public hiring contacts for a
// posting. Every lookup is best effort: a miss yields empty fields.
package enrich

import (
	"net/url"
	"strings"
)

// excludedDomains are ATS hosts, job boards and social sites that never count
// as a company's own website.
var excludedDomains = []string{
	// job boards and aggregators
	"linkedin.com",
	"indeed.com",
	"glassdoor.com",
	"ziprecruiter.com",
	"monster.com",
	"careerbuilder.com",
	"simplyhired.com",
	"builtin.com",
	"wellfound.com",
	"levels.fyi",
	"crunchbase.com",
	"wikipedia.org",

	// ATS
	"greenhouse.io",
	"lever.co",
	"ashbyhq.com",
	"smartrecruiters.com",
	"myworkdayjobs.com",
	"workday.com",
	"icims.com",
	"jobvite.com",
	"applytojob.com",

	// social
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"youtube.com",
	"github.com",
	"medium.com",
	"tiktok.com",
	"google.com",
	"apple.com",
}

func isExcludedHost(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, d := range excludedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// siteRoot reduces raw to scheme://host, or "" when raw is not an absolute
// http(s) URL on an allowed host.
func siteRoot(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if isExcludedHost(u.Hostname()) {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + host
}

// companyKey lowercases the name and keeps only letters and digits, so "Acme,
// Inc." and "acme-inc" compare equal.
func companyKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var companySuffixes = strings.NewReplacer(
	", Inc.", "", " Inc.", "", " Inc", "",
	", LLC", "", " LLC", "",
	", Ltd.", "", " Ltd.", "", " Ltd", "",
	" Recruiting", "", " Staffing", "",
)

// searchName trims legal suffixes that make search results noisier.
func searchName(company string) string {
	return strings.Join(strings.Fields(companySuffixes.Replace(company)), " ")
}
