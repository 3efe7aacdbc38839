// Package discover finds candidate article URLs with Google Custom Search
// and keeps them as CSV exports for the mine command.
package discover

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultRegion is added to every query unless a run sets its own
const DefaultRegion = "South Africa"

var traffickingTerms = []string{
	`"human trafficking"`,
	`"cyber trafficking"`,
	`"child trafficking"`,
	`"forced labor"`,
	`"sexual exploitation"`,
	`"organ trafficking"`,
}

var evidenceTerms = []string{
	"arrest", "suspect", "victim", "rescue", "operation",
	"investigation", "prosecute", "charged", "convicted",
}

// QueryOptions shape the search query of one run
type QueryOptions struct {
	Region          string
	ExcludedDomains []string
	From, To        time.Time
	// TermsOnly drops the evidence, news and region clauses
	TermsOnly bool
}

// BuildQuery assembles the targeted news query
func BuildQuery(opts QueryOptions) string {
	base := "(" + strings.Join(traffickingTerms, " OR ") + ")"
	if !opts.TermsOnly {
		region := opts.Region
		if region == "" {
			region = DefaultRegion
		}
		base = fmt.Sprintf(`%s AND (%s) AND ("news" OR "article") AND %q`,
			base, strings.Join(evidenceTerms, " OR "), region)
	}

	parts := []string{base}
	for _, domain := range opts.ExcludedDomains {
		if domain = strings.TrimSpace(domain); domain != "" {
			parts = append(parts, "-site:"+domain)
		}
	}
	parts = append(parts,
		"after:"+opts.From.Format(time.DateOnly),
		"before:"+opts.To.Format(time.DateOnly))
	return strings.Join(parts, " ")
}

// Excluded reports whether the host of rawURL contains any excluded domain.
// Unparseable URLs count as excluded.
func Excluded(rawURL string, excluded []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	host := strings.ToLower(parsed.Host)
	for _, domain := range excluded {
		if domain = strings.ToLower(strings.TrimSpace(domain)); domain != "" && strings.Contains(host, domain) {
			return true
		}
	}
	return false
}
