package analytics

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// ReferrerDirect labels clicks without a referrer
	ReferrerDirect = "Direct"
	// UserAgentUnknown labels clicks without a user agent
	UserAgentUnknown = "Unknown"

	maxReferrerLen  = 255
	maxUserAgentLen = 512
)

// NormalizeReferrer reduces a referrer to its lower-cased host
func NormalizeReferrer(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ReferrerDirect
	}

	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	// Bare hosts such as "example.com/path" parse without a Host
	if u, err := url.Parse("//" + ref); err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	return truncate(ref, maxReferrerLen)
}

// NormalizeUserAgent trims and bounds a user agent string
func NormalizeUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return UserAgentUnknown
	}
	return truncate(ua, maxUserAgentLen)
}

// truncate bounds s to n bytes of valid UTF-8, cutting on a rune boundary
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
