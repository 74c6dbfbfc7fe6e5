package usecase

import (
	"context"
	"sort"
	"strings"

	authdomain "mailboard-backend/internal/auth/domain"
	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/pkg/fuzzy"
)

// Progressive fetch bounds. The loop stops as soon as it has enough good
// matches; the ceilings keep a query that matches nothing from scanning the
// whole mailbox.
const (
	fuzzyBatchSize   = 50
	fuzzyMaxBatches  = 10
	fuzzyMaxExamined = 500
	fuzzyGoodScore   = 50.0
)

type scoredEmail struct {
	email *emaildomain.Email
	score float64
}

// FuzzySearch runs typo-tolerant search over the account's inbox, fetching
// provider pages progressively until enough well-scoring matches are found.
// Results are ordered by descending score, newest first on ties; pagination
// applies after the full in-memory sort.
func (s *Service) FuzzySearch(ctx context.Context, userID, query string, limit, offset int) ([]*emaildomain.Email, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*emaildomain.Email{}, 0, nil
	}

	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, 0, err
	}

	// Gmail accepts a server-side pre-filter; it trims payload but local
	// scoring still decides what matches.
	providerQuery := ""
	if acct.Kind == authdomain.ProviderGoogle {
		providerQuery = fuzzy.GmailQuery(query)
	}

	firstBatch := fuzzyBatchSize
	if limit > 0 {
		firstBatch = limit * 2
		if firstBatch < 30 {
			firstBatch = 30
		}
		if firstBatch > 100 {
			firstBatch = 100
		}
	}
	targetGood := limit
	if targetGood <= 0 {
		targetGood = 20
	}

	var matched []scoredEmail
	currentOffset := 0
	examined := 0

	for batch := 0; batch < fuzzyMaxBatches && examined < fuzzyMaxExamined; batch++ {
		size := fuzzyBatchSize
		if batch == 0 {
			size = firstBatch
		}

		emails, _, err := p.Emails(ctx, acct, "INBOX", size, currentOffset, providerQuery)
		if err != nil {
			return nil, 0, err
		}
		if len(emails) == 0 {
			break
		}
		examined += len(emails)
		currentOffset += len(emails)
		s.observe(userID, emails)

		// Without a server-side pre-filter, a cheap containment pass culls
		// the batch before the expensive scoring.
		if providerQuery == "" {
			cheap := emails[:0]
			for _, email := range emails {
				if fuzzy.QuickFilter(query, email.Subject, email.From, email.FromName) {
					cheap = append(cheap, email)
				}
			}
			emails = cheap
		}

		for _, email := range emails {
			if !fuzzy.MatchEmail(query, email.Subject, email.From, email.FromName, email.Preview) {
				continue
			}
			if score := fuzzy.Score(query, email.Subject, email.From, email.FromName); score > 0 {
				matched = append(matched, scoredEmail{email: email, score: score})
			}
		}

		good := 0
		for _, m := range matched {
			if m.score > fuzzyGoodScore {
				good++
			}
		}
		if limit > 0 && (good >= targetGood || len(matched) >= limit*2) {
			break
		}
		if len(emails) < size {
			// Short batch, the mailbox is exhausted.
			break
		}
	}

	if len(matched) == 0 {
		return []*emaildomain.Email{}, 0, nil
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].email.ReceivedAt.After(matched[j].email.ReceivedAt)
	})

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*emaildomain.Email{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	results := make([]*emaildomain.Email, 0, end-offset)
	for _, m := range matched[offset:end] {
		results = append(results, m.email)
	}
	return results, total, nil
}
