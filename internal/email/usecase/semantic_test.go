package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticSearchFiltersByDistance(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("id1", "close match", "Ann", now),
		email("id2", "far match", "Ben", now),
		email("id3", "near match", "Cara", now),
	)
	env.vectors.searchIDs = []string{"id1", "id2", "id3"}
	env.vectors.searchDst = []float64{0.9, 1.5, 1.1}

	emails, total, err := env.svc.SemanticSearch(context.Background(), "user-1", "match", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, emails, 2)
	assert.Equal(t, "id1", emails[0].ID)
	assert.Equal(t, "id3", emails[1].ID, "results past the distance threshold are dropped, order preserved")
}

func TestSemanticSearchKeepsRankedOrderUnderParallelHydration(t *testing.T) {
	now := time.Now()
	var ids []string
	var dst []float64
	env := newTestEnv()
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		e := email(id, "subject "+id, "Ann", now)
		env.provider.inbox = append(env.provider.inbox, e)
		env.provider.byID[id] = e
		ids = append(ids, id)
		dst = append(dst, 0.5)
	}
	env.vectors.searchIDs = ids
	env.vectors.searchDst = dst

	emails, _, err := env.svc.SemanticSearch(context.Background(), "user-1", "subject", 6, 0)
	require.NoError(t, err)
	require.Len(t, emails, 6)
	for i, id := range ids {
		assert.Equal(t, id, emails[i].ID)
	}
}

func TestSemanticSearchDropsFailedHydrations(t *testing.T) {
	now := time.Now()
	env := newTestEnv(
		email("id1", "first", "Ann", now),
		email("id2", "second", "Ben", now),
	)
	env.vectors.searchIDs = []string{"id1", "id2"}
	env.vectors.searchDst = []float64{0.5, 0.6}
	env.provider.failFetch["id1"] = true

	emails, total, err := env.svc.SemanticSearch(context.Background(), "user-1", "query", 10, 0)
	require.NoError(t, err, "one failed hydration must not fail the page")
	assert.Equal(t, 2, total)
	require.Len(t, emails, 1)
	assert.Equal(t, "id2", emails[0].ID)
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	env := newTestEnv()
	emails, total, err := env.svc.SemanticSearch(context.Background(), "user-1", "  ", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.Zero(t, total)
}

func TestSemanticSearchWithoutVectorStore(t *testing.T) {
	env := newTestEnv()
	env.svc.vectors = nil
	_, _, err := env.svc.SemanticSearch(context.Background(), "user-1", "query", 10, 0)
	assert.Error(t, err)
}

func TestExpandQuerySynonyms(t *testing.T) {
	env := newTestEnv()

	// No AI service: raw query passes through.
	assert.Equal(t, "invoice", env.svc.expandQuery(context.Background(), "invoice"))

	env.svc.SetAIService(&fakeAI{synonyms: []string{"bill", "receipt"}})
	assert.Equal(t, "invoice bill receipt", env.svc.expandQuery(context.Background(), "invoice"))

	// Synonym failure silently falls back to the original query.
	env.svc.SetAIService(&fakeAI{err: errors.New("model unavailable")})
	assert.Equal(t, "invoice", env.svc.expandQuery(context.Background(), "invoice"))
}

func TestExpandQueryCapsSynonyms(t *testing.T) {
	env := newTestEnv()
	many := make([]string, 20)
	for i := range many {
		many[i] = "syn"
	}
	env.svc.SetAIService(&fakeAI{synonyms: many})

	expanded := env.svc.expandQuery(context.Background(), "q")
	// Query plus at most ten terms.
	assert.Len(t, strings.Fields(expanded), 1+maxSynonyms)
}
