package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"invoice", "invoice", 0},
		{"Invoice", "invoice", 0}, // case-insensitive
		{"meting", "meeting", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, 1, Threshold("abc"))
	assert.Equal(t, 2, Threshold("hello"))
	assert.Equal(t, 3, Threshold("newsletter"))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		text      string
		threshold int
		expected  bool
	}{
		{"containment", "invoice", "your invoice for march", 2, true},
		{"word prefix", "inv", "invoice attached", 1, true},
		{"one typo", "invoce", "invoice attached", 2, true},
		{"unrelated", "kubernetes", "lunch on friday?", 2, false},
		{"short text whole-string", "helo", "hello", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Match(tt.query, tt.text, tt.threshold))
		})
	}
}

func TestScoreOrdering(t *testing.T) {
	// Subject containment must dominate sender-address containment.
	subjectHit := Score("report", "Quarterly report", "alice@example.com", "Alice")
	addrHit := Score("report", "Lunch", "report@example.com", "Reporting Bot")
	assert.Greater(t, subjectHit, 100.0)
	assert.Greater(t, subjectHit, addrHit)

	// Exact word match in subject beats substring-only match.
	wordHit := Score("report", "report inside", "a@b.c", "")
	substrHit := Score("report", "reporting inside", "a@b.c", "")
	assert.Greater(t, wordHit, substrHit)
}

func TestScoreZeroForUnrelated(t *testing.T) {
	assert.Equal(t, 0.0, Score("zzzzzz", "lunch friday", "alice@example.com", "Alice"))
}

func TestQuickFilter(t *testing.T) {
	assert.True(t, QuickFilter("ali", "hello", "alice@example.com", "Alice Smith"))
	assert.True(t, QuickFilter("invoice", "Invoice #42", "billing@shop.io", "Shop"))
	assert.False(t, QuickFilter("kubernetes", "lunch", "alice@example.com", "Alice"))
}

func TestGmailQuery(t *testing.T) {
	assert.Equal(t, "", GmailQuery("   "))
	assert.Equal(t, "subject:invoice OR from:invoice OR invoice", GmailQuery("invoice"))
	// User-supplied operators pass through untouched.
	assert.Equal(t, `from:"Alice Smith"`, GmailQuery(`from:"Alice Smith"`))
}
