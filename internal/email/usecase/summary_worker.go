package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/email/repository"
	"mailboard-backend/pkg/ai"
)

// SummaryJob asks for an AI summary of one email.
type SummaryJob struct {
	UserID  string
	EmailID string
	Subject string
	Body    string
}

// SummaryWorker generates email summaries in the background, caching them in
// the summary store and pushing each finished one to the user over the
// notifier as a "summary_update" event.
type SummaryWorker struct {
	summaryRepo repository.SummaryRepository
	ai          ai.Service
	notifier    Notifier

	queue       chan SummaryJob
	wg          sync.WaitGroup
	workerCount int

	mu      sync.Mutex
	started bool
}

func NewSummaryWorker(summaryRepo repository.SummaryRepository, notifier Notifier, workerCount int) *SummaryWorker {
	if workerCount <= 0 {
		workerCount = 3
	}
	return &SummaryWorker{
		summaryRepo: summaryRepo,
		notifier:    notifier,
		queue:       make(chan SummaryJob, 500),
		workerCount: workerCount,
	}
}

// SetAIService wires the summarizer after construction. Jobs processed
// without one are silently dropped.
func (w *SummaryWorker) SetAIService(svc ai.Service) { w.ai = svc }

func (w *SummaryWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
	w.started = true
	log.Printf("[SummaryWorker] Started %d workers", w.workerCount)
}

// Stop drains queued jobs before returning.
func (w *SummaryWorker) Stop() {
	close(w.queue)
	w.wg.Wait()
	log.Println("[SummaryWorker] All workers stopped")
}

func (w *SummaryWorker) worker(id int) {
	defer w.wg.Done()
	for job := range w.queue {
		w.process(job)
	}
	log.Printf("[SummaryWorker] Worker %d stopped", id)
}

func (w *SummaryWorker) process(job SummaryJob) {
	if w.ai == nil {
		return
	}

	existing, err := w.summaryRepo.GetSummary(job.UserID, job.EmailID)
	if err != nil {
		log.Printf("[SummaryWorker] Cache check failed for %s: %v", job.EmailID, err)
		return
	}
	if existing != nil {
		w.push(job.UserID, job.EmailID, existing.Summary)
		return
	}

	text := fmt.Sprintf("Subject: %s\n\nBody: %s", job.Subject, job.Body)
	if len(text) > 5000 {
		text = text[:5000]
	}

	summary, err := w.ai.SummarizeEmail(context.Background(), text)
	if err != nil {
		log.Printf("[SummaryWorker] Summarization failed for %s: %v", job.EmailID, err)
		return
	}
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}

	if err := w.summaryRepo.SaveSummary(job.UserID, job.EmailID, summary); err != nil {
		log.Printf("[SummaryWorker] Failed to cache summary for %s: %v", job.EmailID, err)
		return
	}
	w.push(job.UserID, job.EmailID, summary)
}

func (w *SummaryWorker) push(userID, emailID, summary string) {
	if w.notifier == nil {
		return
	}
	w.notifier.SendToUser(userID, "summary_update", map[string]interface{}{
		"email_id": emailID,
		"summary":  summary,
	})
}

// QueueJob enqueues without blocking; reports whether the job was accepted.
func (w *SummaryWorker) QueueJob(job SummaryJob) bool {
	select {
	case w.queue <- job:
		return true
	default:
		return false
	}
}

// QueueEmails returns cached summaries immediately and queues the rest for
// background generation; those arrive later as summary_update events.
func (w *SummaryWorker) QueueEmails(userID string, emails []*emaildomain.Email) (map[string]string, int, error) {
	if len(emails) == 0 {
		return map[string]string{}, 0, nil
	}

	ids := make([]string, len(emails))
	for i, email := range emails {
		ids[i] = email.ID
	}
	cached, err := w.summaryRepo.GetSummaries(userID, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load cached summaries: %w", err)
	}

	queued := 0
	for _, email := range emails {
		if _, ok := cached[email.ID]; ok {
			continue
		}
		if w.QueueJob(SummaryJob{UserID: userID, EmailID: email.ID, Subject: email.Subject, Body: email.Body}) {
			queued++
		}
	}
	return cached, queued, nil
}

// CachedSummaries returns stored summaries for the given email ids.
func (w *SummaryWorker) CachedSummaries(userID string, emailIDs []string) (map[string]string, error) {
	return w.summaryRepo.GetSummaries(userID, emailIDs)
}
