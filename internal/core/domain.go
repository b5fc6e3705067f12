package core

import (
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Canonical is the tenant's choice of primary form for the custom domain.
type Canonical string

const (
	CanonicalApex Canonical = "apex"
	CanonicalWWW  Canonical = "www"
)

// DomainRequest is the tenant's desired hostname. It is immutable once
// monitoring begins; a new request supersedes it.
type DomainRequest struct {
	ID          uuid.UUID `json:"id"`
	Hostname    string    `json:"hostname"`
	Apex        string    `json:"apex"`
	Canonical   Canonical `json:"canonical"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewDomainRequest normalizes and validates hostname. Problems are reported
// as *ConfigurationError since retrying can never fix them.
func NewDomainRequest(hostname string, canonical Canonical, now time.Time) (*DomainRequest, error) {
	if canonical == "" {
		canonical = CanonicalApex
	}
	if canonical != CanonicalApex && canonical != CanonicalWWW {
		return nil, configErr("canonical", "must be %q or %q, got %q", CanonicalApex, CanonicalWWW, canonical)
	}

	host, err := NormalizeHostname(hostname)
	if err != nil {
		return nil, err
	}

	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return nil, configErr("hostname", "%q has no registrable domain: %v", host, err)
	}

	return &DomainRequest{
		ID:          uuid.New(),
		Hostname:    host,
		Apex:        apex,
		Canonical:   canonical,
		RequestedAt: now.UTC(),
	}, nil
}

// WWW returns the www variant of the request's apex domain.
func (r DomainRequest) WWW() string {
	return "www." + r.Apex
}

// CanonicalHost is the form traffic will be routed to once active.
func (r DomainRequest) CanonicalHost() string {
	if r.Canonical == CanonicalWWW {
		return r.WWW()
	}
	return r.Apex
}

// NormalizeHostname lowercases raw and strips any scheme, path, port and
// trailing dot. The result is the ASCII (punycode) form.
func NormalizeHostname(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")

	if host == "" {
		return "", configErr("hostname", "must not be empty")
	}
	if net.ParseIP(host) != nil {
		return "", configErr("hostname", "%q is an IP address, not a domain", host)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", configErr("hostname", "%q is not a valid domain name: %v", host, err)
	}
	if len(ascii) > 253 {
		return "", configErr("hostname", "longer than 253 characters")
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", configErr("hostname", "%q must contain at least two labels", ascii)
	}
	for _, label := range labels {
		if !validLabel(label) {
			return "", configErr("hostname", "%q has an invalid label %q", ascii, label)
		}
	}

	return ascii, nil
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, c := range label {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
		default:
			return false
		}
	}
	return true
}

// PlatformTarget is what a correctly configured custom domain resolves to:
// the platform's canonical CNAME hostname, or one of its published IPs for
// apex domains that cannot carry a CNAME.
type PlatformTarget struct {
	CNAME    string   `json:"cname"`
	ARecords []string `json:"a_records"`
}

// Validate fails fast when the target is missing or malformed.
func (t PlatformTarget) Validate() error {
	if t.CNAME == "" && len(t.ARecords) == 0 {
		return configErr("platform target", "neither a CNAME target nor A records are configured")
	}
	if t.CNAME != "" {
		if _, err := NormalizeHostname(t.CNAME); err != nil {
			return configErr("platform target", "cname %q is not a hostname", t.CNAME)
		}
	}
	for _, ip := range t.ARecords {
		if net.ParseIP(ip) == nil {
			return configErr("platform target", "%q is not an IP address", ip)
		}
	}
	return nil
}

// NormalizedCNAME returns the CNAME target without trailing dot, lowercased.
func (t PlatformTarget) NormalizedCNAME() string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(t.CNAME)), ".")
}
