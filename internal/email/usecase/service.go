package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	authdomain "mailboard-backend/internal/auth/domain"
	authrepo "mailboard-backend/internal/auth/repository"
	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/email/repository"
	"mailboard-backend/internal/provider"
	"mailboard-backend/pkg/ai"
	"mailboard-backend/pkg/config"
	"mailboard-backend/pkg/crypto"
	"mailboard-backend/pkg/mailerr"

	"golang.org/x/oauth2"
)

// VectorStore is the slice of the vector database the engine depends on.
type VectorStore interface {
	UpsertEmail(ctx context.Context, emailID, userID, subject, body string) error
	Search(ctx context.Context, userID, query string, limit int) ([]string, []float64, error)
	DeleteEmail(ctx context.Context, emailID string) error
}

// Notifier pushes real-time UI-refresh hints to a user. Fire-and-forget:
// failures never propagate into the operation that triggered them.
type Notifier interface {
	SendToUser(userID, eventType string, payload interface{})
}

// Service is the mail engine: it routes operations to the right provider,
// reconciles board columns, and feeds the background workers as a side effect
// of every fetch.
type Service struct {
	userRepo    authrepo.UserRepository
	columnRepo  repository.ColumnRepository
	mappingRepo repository.MappingRepository
	ledgerRepo  repository.LedgerRepository
	registry    *provider.Registry
	cfg         *config.Config

	vectors  VectorStore
	ai       ai.Service
	notifier Notifier

	status      *statusCache
	suggestions *suggestionCache

	syncQueue chan syncJob
	syncWg    sync.WaitGroup

	sweepStop chan struct{}

	mu      sync.Mutex
	started bool
}

func NewService(
	userRepo authrepo.UserRepository,
	columnRepo repository.ColumnRepository,
	mappingRepo repository.MappingRepository,
	ledgerRepo repository.LedgerRepository,
	registry *provider.Registry,
	cfg *config.Config,
) *Service {
	return &Service{
		userRepo:    userRepo,
		columnRepo:  columnRepo,
		mappingRepo: mappingRepo,
		ledgerRepo:  ledgerRepo,
		registry:    registry,
		cfg:         cfg,
		status:      newStatusCache(),
		suggestions: newSuggestionCache(),
		syncQueue:   make(chan syncJob, cfg.VectorSyncQueueSize),
		sweepStop:   make(chan struct{}),
	}
}

// SetVectorStore wires the vector database after construction. Without it,
// semantic search errors and vector sync jobs are skipped.
func (s *Service) SetVectorStore(v VectorStore) { s.vectors = v }

// SetAIService wires the synonym/summary model after construction.
func (s *Service) SetAIService(svc ai.Service) { s.ai = svc }

// SetNotifier wires the real-time event sink after construction.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Start launches the vector sync workers and the snooze sweeper. Idempotent.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.startSyncWorkers(s.cfg.VectorSyncWorkers)
	s.startSnoozeSweeper(s.cfg.SnoozeSweepInterval)
	s.started = true
}

// Stop drains the sync queue gracefully and stops the sweeper.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	close(s.sweepStop)
	close(s.syncQueue)
	s.syncWg.Wait()
	s.started = false
	log.Println("[Engine] Stopped")
}

// resolveAccount loads the user, decrypts whatever credentials their provider
// needs, and returns the account alongside the provider implementation. This
// is the single point where provider kinds are routed.
func (s *Service) resolveAccount(userID string) (provider.Account, provider.Provider, error) {
	var acct provider.Account

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return acct, nil, err
	}
	if user == nil {
		return acct, nil, mailerr.Errorf(mailerr.KindNotFound, "engine.resolveAccount", "user %s not found", userID)
	}

	acct = provider.Account{
		UserID: user.ID,
		Kind:   user.Provider,
		Email:  user.Email,
		Name:   user.Name,
	}

	switch user.Provider {
	case authdomain.ProviderGoogle:
		acct.AccessToken = user.AccessToken
		acct.RefreshToken = user.RefreshToken
		acct.TokenExpiry = user.TokenExpiry
		acct.OnTokenRefresh = s.makeTokenUpdater(user.ID)
	case authdomain.ProviderIMAP:
		password, err := crypto.Decrypt(user.ImapPassword, s.cfg.EncryptionKey)
		if err != nil {
			return acct, nil, mailerr.E(mailerr.KindDecryption, "engine.resolveAccount", err)
		}
		acct.IMAPHost = user.ImapServer
		acct.IMAPPort = user.ImapPort
		acct.IMAPPassword = password
	}

	p, err := s.registry.Get(user.Provider)
	if err != nil {
		return acct, nil, err
	}
	return acct, p, nil
}

// makeTokenUpdater persists a refreshed OAuth token. Last write wins under
// concurrent refreshes; the token source only rotates once per operation.
func (s *Service) makeTokenUpdater(userID string) provider.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		user, err := s.userRepo.FindByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user %s not found", userID)
		}
		user.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			user.RefreshToken = token.RefreshToken
		}
		user.TokenExpiry = token.Expiry
		return s.userRepo.Update(user)
	}
}

// observe is the fetch side effect: every email the engine touches feeds the
// suggestion cache, the vector sync queue, and the local fallback copies.
func (s *Service) observe(userID string, emails []*emaildomain.Email) {
	for _, email := range emails {
		s.suggestions.observe(userID, email)
		s.status.remember(userID, email)
		s.enqueueSync(userID, email)
	}
}

func (s *Service) Mailboxes(ctx context.Context, userID string) ([]*emaildomain.Mailbox, error) {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, err
	}
	return p.Mailboxes(ctx, acct)
}

// EmailsByMailbox lists a provider mailbox page. query is an optional
// provider-side search filter.
func (s *Service) EmailsByMailbox(ctx context.Context, userID, mailboxID string, limit, offset int, query string) ([]*emaildomain.Email, int, error) {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, 0, err
	}
	emails, total, err := p.Emails(ctx, acct, mailboxID, limit, offset, query)
	if err != nil {
		return nil, 0, err
	}
	s.observe(userID, emails)
	s.annotateColumns(userID, emails)
	return emails, total, nil
}

func (s *Service) EmailByID(ctx context.Context, userID, emailID string) (*emaildomain.Email, error) {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, err
	}
	email, err := p.EmailByID(ctx, acct, emailID)
	if err != nil {
		return nil, err
	}
	s.observe(userID, []*emaildomain.Email{email})
	s.annotateColumns(userID, []*emaildomain.Email{email})
	return email, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, emailID string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	return p.SetRead(ctx, acct, emailID, true)
}

func (s *Service) MarkUnread(ctx context.Context, userID, emailID string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	return p.SetRead(ctx, acct, emailID, false)
}

// ToggleStar flips the starred flag, reading the current state first.
func (s *Service) ToggleStar(ctx context.Context, userID, emailID string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	email, err := p.EmailByID(ctx, acct, emailID)
	if err != nil {
		return err
	}
	return p.SetStarred(ctx, acct, emailID, !email.IsStarred)
}

func (s *Service) TrashEmail(ctx context.Context, userID, emailID string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	return p.Trash(ctx, acct, emailID)
}

func (s *Service) ArchiveEmail(ctx context.Context, userID, emailID string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	return p.Archive(ctx, acct, emailID)
}

// PermanentDeleteEmail removes the message at the provider and cleans up
// every local trace: mapping row, sync ledger entry, and vector embedding.
func (s *Service) PermanentDeleteEmail(ctx context.Context, userID, emailID string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	if err := p.Delete(ctx, acct, emailID); err != nil {
		return err
	}

	if err := s.mappingRepo.RemoveEmailColumn(userID, emailID); err != nil {
		log.Printf("[Engine] Failed to remove mapping for deleted email %s: %v", emailID, err)
	}
	if err := s.ledgerRepo.DeleteEntry(userID, emailID); err != nil {
		log.Printf("[Engine] Failed to remove ledger entry for deleted email %s: %v", emailID, err)
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteEmail(ctx, emailID); err != nil {
			log.Printf("[Engine] Failed to remove embedding for deleted email %s: %v", emailID, err)
		}
	}
	s.status.forget(userID, emailID)
	return nil
}

func (s *Service) SendEmail(ctx context.Context, userID string, msg *emaildomain.OutgoingMessage) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}
	return p.Send(ctx, acct, msg)
}

func (s *Service) GetAttachment(ctx context.Context, userID, emailID, attachmentID string) ([]byte, string, error) {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, "", err
	}
	return p.Attachment(ctx, acct, emailID, attachmentID)
}

// WatchInbox registers the account for provider push notifications, when the
// provider supports them.
func (s *Service) WatchInbox(ctx context.Context, userID string) (uint64, error) {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return 0, err
	}
	watcher, ok := p.(provider.Watcher)
	if !ok {
		return 0, fmt.Errorf("provider %q does not support push notifications", acct.Kind)
	}
	topic := fmt.Sprintf("projects/%s/topics/%s", s.cfg.GoogleProjectID, s.cfg.GooglePubSubTopic)
	return watcher.Watch(ctx, acct, topic)
}
