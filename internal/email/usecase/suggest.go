package usecase

import (
	"strings"
	"sync"

	emaildomain "mailboard-backend/internal/email/domain"
)

// Suggestion cache bounds. Entries over the length caps are skipped, and the
// per-user set is trimmed best-effort once it passes the size cap.
const (
	suggestionSetCap  = 1000
	suggestionNameMax = 100
	suggestionSubjMax = 200
	suggestionHardCap = 10
)

// suggestionCache is the per-user autocomplete corpus, fed incidentally by
// every fetch path. Purely observational, never authoritative. Its lock is
// independent of the board's status cache so the two features never contend.
type suggestionCache struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{}
}

func newSuggestionCache() *suggestionCache {
	return &suggestionCache{users: make(map[string]map[string]struct{})}
}

func (c *suggestionCache) observe(userID string, email *emaildomain.Email) {
	if email == nil {
		return
	}
	name := strings.TrimSpace(email.FromName)
	subject := strings.TrimSpace(email.Subject)
	if len(name) > suggestionNameMax {
		name = ""
	}
	if len(subject) > suggestionSubjMax {
		subject = ""
	}
	if name == "" && subject == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.users[userID]
	if set == nil {
		set = make(map[string]struct{})
		c.users[userID] = set
	}
	if name != "" {
		set[name] = struct{}{}
	}
	if subject != "" {
		set[subject] = struct{}{}
	}

	// Over capacity: drop arbitrary entries. Map iteration order is as good
	// an eviction policy as this cache needs.
	for key := range set {
		if len(set) <= suggestionSetCap {
			break
		}
		delete(set, key)
	}
}

// get returns cached strings containing at least one query word.
func (c *suggestionCache) get(userID, query string, limit int) []string {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return []string{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	suggestions := make([]string, 0, limit)
	for entry := range c.users[userID] {
		lower := strings.ToLower(entry)
		for _, word := range words {
			if strings.Contains(lower, word) {
				suggestions = append(suggestions, entry)
				break
			}
		}
		if len(suggestions) >= limit {
			break
		}
	}
	return suggestions
}

// GetSearchSuggestions returns autocomplete candidates for a partial query:
// any observed sender name or subject containing at least one query word.
func (s *Service) GetSearchSuggestions(userID, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 5
	}
	if limit > suggestionHardCap {
		limit = suggestionHardCap
	}
	return s.suggestions.get(userID, query, limit), nil
}
