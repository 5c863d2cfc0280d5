package platform

import (
	"fmt"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeHostname lower-cases a hostname and strips a trailing dot and
// surrounding whitespace.
func NormalizeHostname(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// ValidateHostname checks that host is a plain DNS hostname with at least two
// labels. Wildcards, IP literals, ports and underscores are rejected.
func ValidateHostname(host string) error {
	if host == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname %q exceeds 253 characters", host)
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return fmt.Errorf("hostname %q must contain at least two labels", host)
	}
	for _, label := range labels {
		if !isValidLabel(label) {
			return fmt.Errorf("hostname %q has invalid label %q", host, label)
		}
	}
	if isNumeric(labels[len(labels)-1]) {
		return fmt.Errorf("hostname %q must not be an IP address", host)
	}
	return nil
}

// ValidateSlug checks that slug can be used as the leftmost label of a
// platform subdomain.
func ValidateSlug(slug string) error {
	if !isValidLabel(slug) {
		return fmt.Errorf("slug %q must be 1-63 lowercase letters, digits or hyphens", slug)
	}
	return nil
}

// isValidLabel checks a single DNS label: 1-63 chars, alphanumeric and
// hyphens, no leading or trailing hyphen.
func isValidLabel(label string) bool {
	n := len(label)
	if n == 0 || n > 63 {
		return false
	}
	if label[0] == '-' || label[n-1] == '-' {
		return false
	}
	for _, c := range label {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// IsApex reports whether host is a registrable domain (example.com,
// example.co.uk) rather than a subdomain of one. Apex hosts cannot carry a
// CNAME and must be pointed with A records.
func IsApex(host string) bool {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return etld1 == host
}

// IsUnderBase reports whether host equals base or is a subdomain of it.
func IsUnderBase(host, base string) bool {
	return host == base || strings.HasSuffix(host, "."+base)
}

// RouteID derives the reverse-proxy route id for a hostname. Validated
// hostnames never contain underscores, so the mapping is injective.
// Example: shop.example.com -> route_shop_example_com
func RouteID(host string) string {
	return "route_" + strings.ReplaceAll(host, ".", "_")
}

// VerifyTXTName is the name of the TXT record carrying the ownership token.
// Example: _acme-verify.shop.example.com
func VerifyTXTName(platformName, host string) string {
	return fmt.Sprintf("_%s-verify.%s", platformName, host)
}

// VerifyFilePath is the well-known path serving the ownership token.
func VerifyFilePath(platformName string) string {
	return fmt.Sprintf("/.well-known/%s-verify.txt", platformName)
}

// SubdomainRelative is the part of a platform subdomain below the base
// domain. Example: myshop.shops
func SubdomainRelative(slug, namespaceLabel string) string {
	return fmt.Sprintf("%s.%s", slug, namespaceLabel)
}

// SubdomainFQDN builds the full platform subdomain hostname.
// Example: myshop.shops.example.com
func SubdomainFQDN(slug, namespaceLabel, baseDomain string) string {
	return fmt.Sprintf("%s.%s.%s", slug, namespaceLabel, baseDomain)
}
