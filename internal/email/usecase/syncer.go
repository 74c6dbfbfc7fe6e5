package usecase

import (
	"context"
	"log"
	"time"

	authdomain "mailboard-backend/internal/auth/domain"
	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/pkg/mailerr"
	"mailboard-backend/pkg/textutil"
)

// embedTimeout bounds a single vector store upsert.
const embedTimeout = 30 * time.Second

// syncAllBatchSize is the page size used by the bulk onboarding sync.
const syncAllBatchSize = 100

type syncJob struct {
	userID  string
	emailID string
	subject string
	body    string
}

// enqueueSync queues one email for embedding. Never blocks: a full queue
// drops the job, and the email is naturally retried the next time any fetch
// path observes it.
func (s *Service) enqueueSync(userID string, email *emaildomain.Email) {
	if email == nil || s.vectors == nil {
		return
	}
	if email.Subject == "" && email.Body == "" {
		return
	}

	body := email.Body
	if email.IsHTML {
		body = textutil.CleanHTML(body)
	}

	select {
	case s.syncQueue <- syncJob{userID: userID, emailID: email.ID, subject: email.Subject, body: body}:
	default:
		log.Printf("[VectorSync] Queue full, skipping email %s (will retry on next fetch)", email.ID)
	}
}

func (s *Service) startSyncWorkers(count int) {
	for i := 0; i < count; i++ {
		s.syncWg.Add(1)
		go s.syncWorker(i)
	}
	log.Printf("[VectorSync] Started %d workers", count)
}

// syncWorker drains the queue until it is closed; closing the queue lets
// every queued job finish before Stop returns.
func (s *Service) syncWorker(id int) {
	defer s.syncWg.Done()
	for job := range s.syncQueue {
		s.processSyncJob(id, job)
	}
	log.Printf("[VectorSync] Worker %d stopped", id)
}

// processSyncJob embeds one email unless the ledger says it is already done.
// The ledger entry is claimed up front so two workers holding the same email
// embed it once; the claim is released on failure so the next fetch retries.
func (s *Service) processSyncJob(workerID int, job syncJob) {
	if s.vectors == nil {
		return
	}

	alreadySynced, err := s.ledgerRepo.EnsureSynced(job.userID, job.emailID)
	if err != nil {
		log.Printf("[VectorSync] Worker %d: ledger check failed for %s: %v", workerID, job.emailID, err)
		return
	}
	if alreadySynced {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	if err := s.vectors.UpsertEmail(ctx, job.emailID, job.userID, job.subject, job.body); err != nil {
		log.Printf("[VectorSync] Worker %d: embedding failed for %s: %v", workerID, job.emailID, err)
		if delErr := s.ledgerRepo.DeleteEntry(job.userID, job.emailID); delErr != nil {
			log.Printf("[VectorSync] Worker %d: failed to release ledger claim for %s: %v", workerID, job.emailID, delErr)
		}
		return
	}
}

// SyncAllEmailsForUser walks every mailbox of the account and queues its
// emails for embedding. Detached and idempotent: it runs once per user,
// guarded by the EmailsSynced flag, and is typically kicked off right after
// sign-in.
func (s *Service) SyncAllEmailsForUser(userID string) {
	if s.vectors == nil {
		log.Printf("[VectorSync] Vector store not configured, skipping bulk sync for user %s", userID)
		return
	}

	go func() {
		// Give the sign-in transaction a moment to land the fresh tokens.
		time.Sleep(2 * time.Second)

		user, err := s.userRepo.FindByID(userID)
		if err != nil || user == nil {
			log.Printf("[VectorSync] Bulk sync aborted, user %s unavailable: %v", userID, err)
			return
		}
		if user.EmailsSynced {
			return
		}
		if user.Provider == authdomain.ProviderGoogle && user.AccessToken == "" {
			log.Printf("[VectorSync] Bulk sync skipped for user %s: no access token yet", userID)
			return
		}

		log.Printf("[VectorSync] Starting bulk sync for user %s", userID)

		ctx := context.Background()
		acct, p, err := s.resolveAccount(userID)
		if err != nil {
			log.Printf("[VectorSync] Bulk sync failed to resolve account for %s: %v", userID, err)
			return
		}

		mailboxes, err := p.Mailboxes(ctx, acct)
		if err != nil {
			if mailerr.IsInsufficientScope(err) {
				log.Printf("[VectorSync] Bulk sync stopped for user %s: token lacks mail scopes", userID)
				return
			}
			log.Printf("[VectorSync] Bulk sync failed to list mailboxes for %s: %v", userID, err)
			return
		}

		// The mailboxes users actually search go first.
		priority := []string{"INBOX", "SENT", "DRAFT"}
		done := make(map[string]bool, len(mailboxes))
		for _, want := range priority {
			for _, mb := range mailboxes {
				if mb.ID == want {
					if !s.syncMailbox(ctx, userID, mb.ID) {
						return
					}
					done[mb.ID] = true
					break
				}
			}
		}
		for _, mb := range mailboxes {
			if done[mb.ID] {
				continue
			}
			if !s.syncMailbox(ctx, userID, mb.ID) {
				return
			}
		}

		// Only a full pass without fatal errors marks the user synced.
		user.EmailsSynced = true
		if err := s.userRepo.Update(user); err != nil {
			log.Printf("[VectorSync] Failed to mark user %s as synced: %v", userID, err)
			return
		}
		log.Printf("[VectorSync] Completed bulk sync for user %s", userID)
	}()
}

// syncMailbox pages through one mailbox queueing everything for embedding.
// Returns false on a scope error, which aborts the whole bulk sync for the
// user without marking it complete.
func (s *Service) syncMailbox(ctx context.Context, userID, mailboxID string) bool {
	offset := 0
	for {
		emails, total, err := s.EmailsByMailbox(ctx, userID, mailboxID, syncAllBatchSize, offset, "")
		if err != nil {
			if mailerr.IsInsufficientScope(err) {
				log.Printf("[VectorSync] Stopping bulk sync in %s for user %s: token lacks mail scopes", mailboxID, userID)
				return false
			}
			log.Printf("[VectorSync] Failed to page mailbox %s for user %s at offset %d: %v", mailboxID, userID, offset, err)
			return true
		}
		if len(emails) == 0 {
			return true
		}

		// EmailsByMailbox already enqueued each email as a fetch side effect.
		log.Printf("[VectorSync] Queued %d emails from %s for user %s (offset %d/%d)", len(emails), mailboxID, userID, offset, total)

		offset += len(emails)
		if offset >= total || len(emails) < syncAllBatchSize {
			return true
		}
	}
}
