package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_CleanURL(t *testing.T) {
	got := Score("https://example.com/about")

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, VerdictLow, got.Verdict)
	assert.Empty(t, got.Reasons)
	assert.False(t, got.FlagRecommended)
}

func TestScore_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "scheme only", url: "https://"},
		{name: "control characters", url: "http://exa\x7fmple.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.url)

			assert.Equal(t, 100, got.Score)
			assert.Equal(t, VerdictHigh, got.Verdict)
			assert.Equal(t, []string{"url could not be parsed"}, got.Reasons)
			assert.True(t, got.FlagRecommended)
		})
	}
}

func TestScore_PrivateIPWithCredentialKeywords(t *testing.T) {
	got := Score("http://192.168.1.5/login-verify-account")

	assert.Contains(t, got.Reasons, "host is an ip address")
	assert.Contains(t, got.Reasons, "host is a private-range ip address")

	var highRisk bool
	for _, reason := range got.Reasons {
		if strings.HasPrefix(reason, "high-risk keyword") {
			highRisk = true
		}
	}
	assert.True(t, highRisk)

	assert.NotEqual(t, VerdictLow, got.Verdict)
	assert.True(t, got.FlagRecommended)
	assert.LessOrEqual(t, got.Score, 100)
}

func TestScore_Heuristics(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantReason string
	}{
		{
			name:       "risky tld",
			url:        "http://example.tk/page",
			wantReason: `host uses risky tld ".tk"`,
		},
		{
			name:       "url shortener",
			url:        "https://bit.ly/abc",
			wantReason: "host is a known url shortener",
		},
		{
			name:       "punycode host",
			url:        "http://xn--e1awd7f.com/",
			wantReason: "host contains punycode",
		},
		{
			name:       "embedded credentials",
			url:        "http://user@example.com/",
			wantReason: "url contains an @ character",
		},
		{
			name:       "unusually long",
			url:        "http://example.com/" + strings.Repeat("a", 80),
			wantReason: "url is unusually long",
		},
		{
			name:       "extremely long",
			url:        "http://example.com/" + strings.Repeat("a", 160),
			wantReason: "url is extremely long",
		},
		{
			name:       "subdomain depth",
			url:        "http://a.b.c.d.example.com/",
			wantReason: "host has excessive subdomain depth",
		},
		{
			name:       "auto-generated label",
			url:        "http://x7f9q2a8b3c1.com/",
			wantReason: "host label looks auto-generated",
		},
		{
			name:       "medium-risk keyword",
			url:        "https://example.com/promo",
			wantReason: `medium-risk keyword "promo"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.url)

			assert.Contains(t, got.Reasons, tt.wantReason)
		})
	}
}

func TestScore_SchemeAssumedAndHostLowercased(t *testing.T) {
	got := Score("EXAMPLE.TK/page")

	assert.Contains(t, got.Reasons, `host uses risky tld ".tk"`)
}

func TestScore_VerdictThresholds(t *testing.T) {
	// Risky tld alone stays below the medium threshold.
	low := Score("http://example.xyz/")
	assert.Equal(t, 25, low.Score)
	assert.Equal(t, VerdictLow, low.Verdict)
	assert.False(t, low.FlagRecommended)

	// Risky tld + shortener + punycode lands in the medium band.
	medium := Score("http://example.xyz/promo-offer")
	assert.Equal(t, 45, medium.Score)
	assert.Equal(t, VerdictMedium, medium.Verdict)
	assert.True(t, medium.FlagRecommended)

	// Stacked heuristics clamp at 100.
	high := Score("http://10.0.0.1/login-password-verify-confirm-account")
	assert.Equal(t, 100, high.Score)
	assert.Equal(t, VerdictHigh, high.Verdict)
	assert.True(t, high.FlagRecommended)
}

func TestScore_Deterministic(t *testing.T) {
	const url = "http://192.168.1.5/login-verify-account"

	first := Score(url)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(url))
	}
}
