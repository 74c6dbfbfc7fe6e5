package usecase

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionsMatchAnyQueryWord(t *testing.T) {
	env := newTestEnv()
	cache := env.svc.suggestions
	cache.observe("user-1", email("e1", "Weekly project status", "Dana Reeves", time.Now()))
	cache.observe("user-1", email("e2", "Lunch tomorrow?", "Sam Park", time.Now()))

	got, err := env.svc.GetSearchSuggestions("user-1", "project lunch", 10)
	require.NoError(t, err)

	// OR semantics: one matching word is enough.
	assert.Contains(t, got, "Weekly project status")
	assert.Contains(t, got, "Lunch tomorrow?")
	assert.NotContains(t, got, "Dana Reeves")
	assert.NotContains(t, got, "Sam Park")
}

func TestSuggestionsMatchCaseInsensitive(t *testing.T) {
	env := newTestEnv()
	env.svc.suggestions.observe("user-1", email("e1", "Invoice #42", "Billing Dept", time.Now()))

	got, err := env.svc.GetSearchSuggestions("user-1", "INVOICE", 10)
	require.NoError(t, err)
	assert.Contains(t, got, "Invoice #42")
}

func TestSuggestionsCappedAtTen(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 30; i++ {
		env.svc.suggestions.observe("user-1", email(fmt.Sprintf("e%d", i), fmt.Sprintf("report %d", i), "", time.Now()))
	}

	got, err := env.svc.GetSearchSuggestions("user-1", "report", 50)
	require.NoError(t, err)
	assert.Len(t, got, 10, "limit is hard-capped at 10")
}

func TestSuggestionsEmptyQuery(t *testing.T) {
	env := newTestEnv()
	got, err := env.svc.GetSearchSuggestions("user-1", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestionsScopedPerUser(t *testing.T) {
	env := newTestEnv()
	env.svc.suggestions.observe("user-1", email("e1", "team offsite", "Ann", time.Now()))

	got, err := env.svc.GetSearchSuggestions("user-2", "offsite", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestionsSkipOverlongEntries(t *testing.T) {
	env := newTestEnv()
	longSubject := strings.Repeat("x", suggestionSubjMax+1)
	longName := strings.Repeat("y", suggestionNameMax+1)
	e := email("e1", longSubject, longName, time.Now())
	env.svc.suggestions.observe("user-1", e)

	env.svc.suggestions.mu.RLock()
	defer env.svc.suggestions.mu.RUnlock()
	assert.Empty(t, env.svc.suggestions.users["user-1"])
}

func TestSuggestionsBoundedSize(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < suggestionSetCap+200; i++ {
		env.svc.suggestions.observe("user-1", email(fmt.Sprintf("e%d", i), fmt.Sprintf("subject %d", i), "", time.Now()))
	}

	env.svc.suggestions.mu.RLock()
	defer env.svc.suggestions.mu.RUnlock()
	assert.LessOrEqual(t, len(env.svc.suggestions.users["user-1"]), suggestionSetCap)
}
