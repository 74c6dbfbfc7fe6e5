package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuzzySearchEmptyQueryShortCircuits(t *testing.T) {
	env := newTestEnv(email("e1", "hello", "Ann", time.Now()))

	emails, total, err := env.svc.FuzzySearch(context.Background(), "user-1", "   ", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.Zero(t, total)
	assert.Equal(t, 0, env.provider.listCount(), "empty query must not hit the provider")
}

func TestFuzzySearchRanksBySubjectRelevance(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("e1", "quarterly budget review", "Ann", now.Add(-2*time.Hour)),
		email("e2", "lunch plans", "Ben", now.Add(-time.Hour)),
		email("e3", "budget", "Cara", now),
	)

	emails, total, err := env.svc.FuzzySearch(context.Background(), "user-1", "budget", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, emails, 2)

	for _, e := range emails {
		assert.NotEqual(t, "e2", e.ID)
	}
	// Equal scores fall back to recency, and e3 is the newest hit.
	assert.Equal(t, "e3", emails[0].ID)
}

func TestFuzzySearchTiesBreakNewestFirst(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("old", "status update", "Ann", now.Add(-time.Hour)),
		email("new", "status update", "Ann", now),
	)

	emails, _, err := env.svc.FuzzySearch(context.Background(), "user-1", "status update", 10, 0)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "new", emails[0].ID)
	assert.Equal(t, "old", emails[1].ID)
}

func TestFuzzySearchToleratesTypos(t *testing.T) {
	env := newTestEnv(email("e1", "invoice attached", "Billing", time.Now()))

	emails, _, err := env.svc.FuzzySearch(context.Background(), "user-1", "invocie", 10, 0)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "e1", emails[0].ID)
}

func TestFuzzySearchPaginatesAfterSort(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("e1", "report one", "Ann", now),
		email("e2", "report two", "Ann", now.Add(-time.Minute)),
		email("e3", "report three", "Ann", now.Add(-2*time.Minute)),
	)

	page1, total, err := env.svc.FuzzySearch(context.Background(), "user-1", "report", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page1, 2)

	page2, total, err := env.svc.FuzzySearch(context.Background(), "user-1", "report", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page2, 1)
	assert.NotContains(t, []string{page1[0].ID, page1[1].ID}, page2[0].ID)
}

func TestFuzzySearchOffsetPastEnd(t *testing.T) {
	env := newTestEnv(email("e1", "report", "Ann", time.Now()))

	emails, total, err := env.svc.FuzzySearch(context.Background(), "user-1", "report", 10, 50)
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.Equal(t, 1, total)
}
