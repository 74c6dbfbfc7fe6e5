// Package fuzzy implements the typo-tolerant matching and relevance scoring
// used by email search. Matching is intentionally cheap: a containment check
// first, Levenshtein distance only for words that survive it.
package fuzzy

import "strings"

// Levenshtein returns the edit distance between two strings, compared
// case-insensitively. Operates on runes so multibyte text scores sanely.
func Levenshtein(a, b string) int {
	a = normalize(a)
	b = normalize(b)

	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two-row rolling window instead of the full matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Threshold picks the edit-distance tolerance for a query: short queries get
// almost none, long queries a little more.
func Threshold(query string) int {
	switch n := len(query); {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Match reports whether query fuzzy-matches text within threshold edits.
func Match(query, text string, threshold int) bool {
	query = normalize(query)
	text = normalize(text)

	if strings.Contains(text, query) {
		return true
	}
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, query) {
			return true
		}
		if Levenshtein(query, word) <= threshold {
			return true
		}
	}
	// Whole-string comparison is only meaningful for short texts.
	if len(text) < 50 && Levenshtein(query, text) <= threshold+len(query)/5 {
		return true
	}
	return false
}

// MatchEmail reports whether an email is a search candidate at all. The body
// is only consulted for its first 500 characters.
func MatchEmail(query, subject, from, fromName, body string) bool {
	threshold := Threshold(query)
	if Match(query, subject, threshold) ||
		Match(query, fromName, threshold) ||
		Match(query, from, threshold) {
		return true
	}
	if len(body) > 500 {
		body = body[:500]
	}
	return body != "" && Match(query, body, threshold)
}

// Score rates a candidate's relevance. Subject hits weigh most, sender name
// next, sender address least. Exact containment beats fuzzy word hits.
func Score(query, subject, from, fromName string) float64 {
	query = normalize(query)
	score := 0.0

	score += fieldScore(query, subject, 100, 50, 50, 15, 40)
	score += fieldScore(query, fromName, 80, 30, 40, 12, 35)

	addr := normalize(from)
	if strings.Contains(addr, query) {
		score += 60
	} else {
		local := addr
		if at := strings.Index(addr, "@"); at > 0 {
			local = addr[:at]
		}
		if strings.HasPrefix(local, query) {
			score += 30
		}
	}
	return score
}

// fieldScore scores one text field. exact/wordBonus apply on containment;
// fuzzyBase/fuzzyPenalty/prefix apply per word otherwise.
func fieldScore(query, text string, exact, wordBonus, fuzzyBase, fuzzyPenalty, prefix float64) float64 {
	text = normalize(text)
	if strings.Contains(text, query) {
		s := exact
		for _, w := range strings.Fields(text) {
			if w == query {
				s += wordBonus
				break
			}
		}
		return s
	}
	s := 0.0
	for _, w := range strings.Fields(text) {
		if d := Levenshtein(query, w); d <= 2 {
			s += fuzzyBase - float64(d)*fuzzyPenalty
		}
		if strings.HasPrefix(w, query) {
			s += prefix
		}
	}
	return s
}

// QuickFilter is the cheap pre-filter applied before scoring when the
// provider could not pre-filter server-side: plain containment over the
// fields the scorer looks at.
func QuickFilter(query, subject, from, fromName string) bool {
	query = normalize(query)
	return strings.Contains(normalize(subject), query) ||
		strings.Contains(normalize(from), query) ||
		strings.Contains(normalize(fromName), query) ||
		anyWordPrefix(query, subject) || anyWordPrefix(query, fromName)
}

// GmailQuery builds a provider-side pre-filter for the Gmail search syntax.
// It is a hint, not a correctness requirement: local scoring still runs over
// whatever comes back.
func GmailQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	if strings.ContainsAny(query, `"()`) {
		// Don't fight the gmail parser over user-typed operators.
		return query
	}
	return "subject:" + query + " OR from:" + query + " OR " + query
}

func anyWordPrefix(query, text string) bool {
	for _, w := range strings.Fields(normalize(text)) {
		if strings.HasPrefix(w, query) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
