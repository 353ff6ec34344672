package common

// URL utilities shared by the fetcher, detector, and discovery intake.
//
// Rate limiting and robots caching key on the registrable host; discovery
// dedup keys on the normalized domain. Both normalizations live here so every
// caller agrees on what "the same site" means.

import (
	"fmt"
	"net/url"
	"strings"
)

// RegistrableHost extracts the lowercased host (without port) from a URL.
// Returns "" for unparseable input.
func RegistrableHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return host
}

// NormalizeDomain lowercases a bare domain and strips scheme, "www." and any
// trailing path so that "https://www.Acme.com/about" and "acme.com" collapse
// to the same key.
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	if d == "" {
		return ""
	}
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil && u.Hostname() != "" {
			d = u.Hostname()
		}
	}
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.IndexAny(d, "/?#"); idx >= 0 {
		d = d[:idx]
	}
	return d
}

// EnsureAbsoluteURL resolves href against base when href is relative.
// Absolute hrefs are returned unchanged.
func EnsureAbsoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if h.IsAbs() {
		return h.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

// CareersURLCandidates returns the probe URLs for a company domain, most
// likely first. Used by the ATS detector when no careers URL is known.
func CareersURLCandidates(domain string) []string {
	d := NormalizeDomain(domain)
	if d == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("https://%s/careers", d),
		fmt.Sprintf("https://%s/jobs", d),
		fmt.Sprintf("https://%s/careers/", d),
	}
}

// ValidateAbsoluteURL confirms a URL parses with an http(s) scheme and a host.
func ValidateAbsoluteURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (expected http or https)", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL host is empty")
	}
	return nil
}
