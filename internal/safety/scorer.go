// Package safety scores destination URLs against a set of deterministic
// phishing and spam heuristics. Scoring is pure: no I/O, no state, identical
// input always yields an identical assessment.
package safety

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"unicode"
)

// Verdict classifies an assessment score.
type Verdict string

const (
	VerdictLow    Verdict = "low"
	VerdictMedium Verdict = "medium"
	VerdictHigh   Verdict = "high"
)

// Assessment is the result of scoring a URL. Reasons preserve the order the
// heuristics were evaluated in.
type Assessment struct {
	Score           int      `json:"score"`
	Verdict         Verdict  `json:"verdict"`
	Reasons         []string `json:"reasons"`
	FlagRecommended bool     `json:"flag_recommended"`
}

const (
	mediumThreshold = 40
	highThreshold   = 70
)

var riskyTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top", ".click",
	".link", ".loan", ".work", ".zip", ".mov",
}

var shortenerDomains = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "is.gd", "ow.ly",
	"buff.ly", "cutt.ly", "rb.gy", "shorturl.at",
}

var highRiskKeywords = []string{
	"login", "signin", "verify", "account", "password", "credential",
	"secure", "banking", "paypal", "wallet", "invoice", "confirm",
}

var mediumRiskKeywords = []string{
	"free", "bonus", "prize", "winner", "giveaway", "promo",
	"discount", "cheap", "deal", "offer",
}

// Score normalizes rawURL and accumulates points from each heuristic in a
// fixed order. The score is clamped to [0,100]; a URL that cannot be parsed
// is hard-coded to a high-risk result.
func Score(rawURL string) Assessment {
	normalized := strings.TrimSpace(rawURL)
	if !strings.Contains(normalized, "://") {
		normalized = "http://" + normalized
	}

	u, err := url.Parse(normalized)
	if err != nil || u.Hostname() == "" {
		return Assessment{
			Score:           100,
			Verdict:         VerdictHigh,
			Reasons:         []string{"url could not be parsed"},
			FlagRecommended: true,
		}
	}

	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	score := 0
	var reasons []string

	addPoints := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	for _, tld := range riskyTLDs {
		if strings.HasSuffix(host, tld) {
			addPoints(25, fmt.Sprintf("host uses risky tld %q", tld))
			break
		}
	}

	for _, domain := range shortenerDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			addPoints(15, "host is a known url shortener")
			break
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addPoints(30, "host is an ip address")
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			addPoints(10, "host is a private-range ip address")
		}
	}

	if hasPunycodeLabel(host) {
		addPoints(20, "host contains punycode")
	}

	if strings.Contains(rawURL, "@") {
		addPoints(15, "url contains an @ character")
	}

	switch {
	case len(rawURL) > 150:
		addPoints(15, "url is extremely long")
	case len(rawURL) > 75:
		addPoints(5, "url is unusually long")
	}

	if strings.Count(host, ".") > 3 {
		addPoints(10, "host has excessive subdomain depth")
	}

	if looksAutoGenerated(host) {
		addPoints(15, "host label looks auto-generated")
	}

	haystack := host + path
	for _, kw := range highRiskKeywords {
		if strings.Contains(haystack, kw) {
			addPoints(25, fmt.Sprintf("high-risk keyword %q", kw))
		}
	}
	for _, kw := range mediumRiskKeywords {
		if strings.Contains(haystack, kw) {
			addPoints(10, fmt.Sprintf("medium-risk keyword %q", kw))
		}
	}

	if score > 100 {
		score = 100
	}

	verdict := VerdictLow
	switch {
	case score >= highThreshold:
		verdict = VerdictHigh
	case score >= mediumThreshold:
		verdict = VerdictMedium
	}

	return Assessment{
		Score:           score,
		Verdict:         verdict,
		Reasons:         reasons,
		FlagRecommended: verdict != VerdictLow,
	}
}

func hasPunycodeLabel(host string) bool {
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "xn--") {
			return true
		}
	}
	return false
}

// looksAutoGenerated reports whether the first host label mixes letters and
// digits over a length that rarely occurs in hand-picked domain names.
func looksAutoGenerated(host string) bool {
	label, _, _ := strings.Cut(host, ".")
	if len(label) <= 10 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range label {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case r == '-':
		default:
			return false
		}
	}

	return hasLetter && hasDigit
}
