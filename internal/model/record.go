package model

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Source labels written to UrlRecord.Source
const (
	SourceGoogleSearch = "google_search" // Records created by the mining pipeline
	SourceGoogleMiner  = "google_miner"  // Candidate rows written by the discover command
)

// Accessibility is the tri-state reachability of a URL
type Accessibility int

const (
	AccessUnknown Accessibility = -1 // Not probed yet
	AccessNo      Accessibility = 0  // Probe, load or extraction failed
	AccessYes     Accessibility = 1  // Page loaded and text extracted
)

// String returns a readable name for logs
func (a Accessibility) String() string {
	switch a {
	case AccessNo:
		return "no"
	case AccessYes:
		return "yes"
	default:
		return "unknown"
	}
}

// IncidentStatus records whether an article reports an actual incident
type IncidentStatus int

const (
	IncidentUnresolved IncidentStatus = -2 // Model gave no usable answer
	IncidentUnknown    IncidentStatus = -1 // Verification never ran
	IncidentNo         IncidentStatus = 0  // Model answered "no"
	IncidentYes        IncidentStatus = 1  // Model answered "yes"
)

// String returns a readable name for logs
func (s IncidentStatus) String() string {
	switch s {
	case IncidentUnresolved:
		return "unresolved"
	case IncidentNo:
		return "no"
	case IncidentYes:
		return "yes"
	default:
		return "unknown"
	}
}

// URLRecord is the single persisted row per processed URL
type URLRecord struct {
	ID             int64          `json:"id"`
	URL            string         `json:"url"`             // Unique key
	DomainName     string         `json:"domain_name"`     // Registrable domain without suffix (e.g. "news24")
	Source         string         `json:"source"`          // Where the URL came from
	Content        string         `json:"content"`         // Extracted article text, possibly empty
	Accessible     Accessibility  `json:"accessible"`      // Reachability tri-state
	ActualIncident IncidentStatus `json:"actual_incident"` // Verification outcome
}

// NeedsVerification reports whether a stored record should be picked up again
// by a later run. Unresolved verdicts and interrupted verifications qualify.
func (r *URLRecord) NeedsVerification() bool {
	if r.ActualIncident == IncidentUnresolved {
		return true
	}
	return r.Accessible == AccessYes && r.ActualIncident == IncidentUnknown && r.Content != ""
}

// NewURLRecord returns a fresh record for url with unknown states
func NewURLRecord(rawURL, source string) *URLRecord {
	return &URLRecord{
		URL:            rawURL,
		DomainName:     DomainName(rawURL),
		Source:         source,
		Accessible:     AccessUnknown,
		ActualIncident: IncidentUnknown,
	}
}

// DomainName extracts the registrable domain label of a URL,
// e.g. "https://www.news24.com/x" -> "news24".
func DomainName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Bare public suffixes have no registrable domain
		return host
	}
	suffix, _ := publicsuffix.PublicSuffix(etld1)
	return strings.TrimSuffix(strings.TrimSuffix(etld1, suffix), ".")
}
