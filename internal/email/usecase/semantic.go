package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	emaildomain "mailboard-backend/internal/email/domain"
)

// hydrateConcurrency caps parallel provider fetches during semantic result
// hydration.
const hydrateConcurrency = 10

// maxSynonyms bounds how far a query is expanded before embedding.
const maxSynonyms = 10

// SemanticSearch embeds the query (best-effort expanded with AI synonyms),
// asks the vector store for nearest emails, drops anything past the distance
// threshold, and hydrates the requested page in ranked order.
func (s *Service) SemanticSearch(ctx context.Context, userID, query string, limit, offset int) ([]*emaildomain.Email, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*emaildomain.Email{}, 0, nil
	}
	if s.vectors == nil {
		return nil, 0, fmt.Errorf("semantic search not available")
	}

	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, 0, err
	}

	searchText := s.expandQuery(ctx, query)

	// Overfetch a little so threshold filtering still fills the page.
	ids, distances, err := s.vectors.Search(ctx, userID, searchText, limit+offset+10)
	if err != nil {
		return nil, 0, fmt.Errorf("semantic search failed: %w", err)
	}

	kept := make([]string, 0, len(ids))
	for i, id := range ids {
		if i < len(distances) && distances[i] > s.cfg.SemanticDistanceMax {
			continue
		}
		kept = append(kept, id)
	}

	total := len(kept)
	if total == 0 || offset >= total {
		return []*emaildomain.Email{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	page := kept[offset:end]

	// Parallel hydration into a pre-sized slot array: completion order varies
	// but slots keep the ranked order. Failed fetches leave nil slots that
	// are compacted out.
	slots := make([]*emaildomain.Email, len(page))
	sem := make(chan struct{}, hydrateConcurrency)
	var wg sync.WaitGroup
	for i, id := range page {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			email, err := p.EmailByID(ctx, acct, id)
			if err != nil {
				log.Printf("[SemanticSearch] Failed to hydrate %s: %v", id, err)
				return
			}
			slots[i] = email
		}(i, id)
	}
	wg.Wait()

	results := make([]*emaildomain.Email, 0, len(slots))
	for _, email := range slots {
		if email != nil {
			results = append(results, email)
		}
	}
	s.annotateColumns(userID, results)
	return results, total, nil
}

// expandQuery appends up to maxSynonyms AI-generated synonym terms to the
// query. Best-effort: any failure falls back to the original query.
func (s *Service) expandQuery(ctx context.Context, query string) string {
	if s.ai == nil {
		return query
	}
	synonyms, err := s.ai.GenerateSynonyms(ctx, query)
	if err != nil {
		log.Printf("[SemanticSearch] Synonym expansion failed, using raw query: %v", err)
		return query
	}
	if len(synonyms) > maxSynonyms {
		synonyms = synonyms[:maxSynonyms]
	}
	if len(synonyms) == 0 {
		return query
	}
	return query + " " + strings.Join(synonyms, " ")
}
