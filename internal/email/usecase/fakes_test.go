package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	authdomain "mailboard-backend/internal/auth/domain"
	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/email/repository"
	"mailboard-backend/internal/provider"
	"mailboard-backend/pkg/config"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*authdomain.User
}

func newFakeUserRepo(users ...*authdomain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*authdomain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByID(id string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) FindAllSyncable() ([]*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*authdomain.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) SaveRefreshToken(token *authdomain.RefreshToken) error     { return nil }
func (r *fakeUserRepo) FindRefreshToken(string) (*authdomain.RefreshToken, error) { return nil, nil }
func (r *fakeUserRepo) DeleteRefreshToken(string) error                           { return nil }
func (r *fakeUserRepo) DeleteRefreshTokensByUser(string) error                    { return nil }

type fakeColumnRepo struct {
	mu      sync.Mutex
	columns []*emaildomain.Column
}

func (r *fakeColumnRepo) GetColumnsByUserID(userID string) ([]*emaildomain.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*emaildomain.Column
	for _, c := range r.columns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeColumnRepo) GetColumn(userID, slug string) (*emaildomain.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.columns {
		if c.UserID == userID && c.Slug == slug {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeColumnRepo) CreateColumn(column *emaildomain.Column) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if column.ID == "" {
		column.ID = uuid.New().String()
	}
	r.columns = append(r.columns, column)
	return nil
}

func (r *fakeColumnRepo) UpdateColumn(column *emaildomain.Column) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.columns {
		if c.ID == column.ID {
			r.columns[i] = column
		}
	}
	return nil
}

func (r *fakeColumnRepo) DeleteColumn(userID, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.columns[:0]
	for _, c := range r.columns {
		if !(c.UserID == userID && c.Slug == slug) {
			kept = append(kept, c)
		}
	}
	r.columns = kept
	return nil
}

func (r *fakeColumnRepo) UpdateColumnOrders(userID string, orders map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.columns {
		if c.UserID != userID {
			continue
		}
		if order, ok := orders[c.Slug]; ok {
			c.Order = order
		}
	}
	return nil
}

type fakeMappingRepo struct {
	mu       sync.Mutex
	mappings []*emaildomain.ColumnMapping
}

func (r *fakeMappingRepo) find(userID, emailID string) *emaildomain.ColumnMapping {
	for _, m := range r.mappings {
		if m.UserID == userID && m.EmailID == emailID {
			return m
		}
	}
	return nil
}

func (r *fakeMappingRepo) SetEmailColumn(userID, emailID, columnSlug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.find(userID, emailID); m != nil {
		m.ColumnID = columnSlug
		m.PreviousColumnID = ""
		m.SnoozedUntil = nil
		m.UpdatedAt = time.Now()
		return nil
	}
	r.mappings = append(r.mappings, &emaildomain.ColumnMapping{
		ID: uuid.New().String(), UserID: userID, EmailID: emailID, ColumnID: columnSlug, UpdatedAt: time.Now(),
	})
	return nil
}

func (r *fakeMappingRepo) GetEmailColumn(userID, emailID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.find(userID, emailID); m != nil {
		return m.ColumnID, nil
	}
	return "", nil
}

func (r *fakeMappingRepo) GetEmailColumnMap(userID string, emailIDs []string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(emailIDs))
	for _, id := range emailIDs {
		want[id] = true
	}
	out := make(map[string]string)
	for _, m := range r.mappings {
		if m.UserID == userID && want[m.EmailID] {
			out[m.EmailID] = m.ColumnID
		}
	}
	return out, nil
}

func (r *fakeMappingRepo) GetEmailsByColumn(userID, columnSlug string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, m := range r.mappings {
		if m.UserID == userID && m.ColumnID == columnSlug {
			ids = append(ids, m.EmailID)
		}
	}
	return ids, nil
}

func (r *fakeMappingRepo) CountEmailsByColumn(userID, columnSlug string) (int64, error) {
	ids, _ := r.GetEmailsByColumn(userID, columnSlug)
	return int64(len(ids)), nil
}

func (r *fakeMappingRepo) RemoveEmailColumn(userID, emailID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.mappings[:0]
	for _, m := range r.mappings {
		if !(m.UserID == userID && m.EmailID == emailID) {
			kept = append(kept, m)
		}
	}
	r.mappings = kept
	return nil
}

func (r *fakeMappingRepo) ReassignColumn(userID, fromSlug, toSlug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.UserID == userID && m.ColumnID == fromSlug {
			m.ColumnID = toSlug
		}
	}
	return nil
}

func (r *fakeMappingRepo) SnoozeEmail(userID, emailID, previousColumnSlug string, snoozedUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	until := snoozedUntil
	if m := r.find(userID, emailID); m != nil {
		m.ColumnID = emaildomain.ColumnSnoozed
		m.PreviousColumnID = previousColumnSlug
		m.SnoozedUntil = &until
		return nil
	}
	r.mappings = append(r.mappings, &emaildomain.ColumnMapping{
		ID: uuid.New().String(), UserID: userID, EmailID: emailID,
		ColumnID: emaildomain.ColumnSnoozed, PreviousColumnID: previousColumnSlug, SnoozedUntil: &until,
	})
	return nil
}

func (r *fakeMappingRepo) GetMapping(userID, emailID string) (*emaildomain.ColumnMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(userID, emailID), nil
}

func (r *fakeMappingRepo) GetAllSnoozed() ([]repository.SnoozedMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.SnoozedMapping
	for _, m := range r.mappings {
		if m.ColumnID != emaildomain.ColumnSnoozed {
			continue
		}
		prev := m.PreviousColumnID
		if prev == "" {
			prev = emaildomain.ColumnInbox
		}
		out = append(out, repository.SnoozedMapping{
			UserID: m.UserID, EmailID: m.EmailID, PreviousColumnID: prev, SnoozedUntil: m.SnoozedUntil,
		})
	}
	return out, nil
}

type fakeLedgerRepo struct {
	mu     sync.Mutex
	synced map[string]bool
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{synced: make(map[string]bool)}
}

func (r *fakeLedgerRepo) key(userID, emailID string) string { return userID + "/" + emailID }

func (r *fakeLedgerRepo) EnsureSynced(userID, emailID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(userID, emailID)
	if r.synced[k] {
		return true, nil
	}
	r.synced[k] = true
	return false, nil
}

func (r *fakeLedgerRepo) DeleteEntry(userID, emailID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.synced, r.key(userID, emailID))
	return nil
}

// fakeProvider serves emails from memory and records mutation calls.
type fakeProvider struct {
	mu          sync.Mutex
	inbox       []*emaildomain.Email
	byID        map[string]*emaildomain.Email
	failFetch   map[string]bool
	modifyErr   error
	listCalls   int
	modifyAdds  [][]string
	modifyRems  [][]string
	sentTargets []string
}

func newFakeProvider(emails ...*emaildomain.Email) *fakeProvider {
	p := &fakeProvider{byID: make(map[string]*emaildomain.Email), failFetch: make(map[string]bool)}
	for _, e := range emails {
		p.inbox = append(p.inbox, e)
		p.byID[e.ID] = e
	}
	return p
}

func (p *fakeProvider) Mailboxes(context.Context, provider.Account) ([]*emaildomain.Mailbox, error) {
	return []*emaildomain.Mailbox{{ID: "INBOX", Name: "Inbox", Type: "system"}}, nil
}

func (p *fakeProvider) Emails(_ context.Context, _ provider.Account, mailboxID string, limit, offset int, _ string) ([]*emaildomain.Email, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	total := len(p.inbox)
	if offset >= total {
		return []*emaildomain.Email{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]*emaildomain.Email, 0, end-offset)
	for _, e := range p.inbox[offset:end] {
		copied := *e
		page = append(page, &copied)
	}
	return page, total, nil
}

func (p *fakeProvider) EmailByID(_ context.Context, _ provider.Account, emailID string) (*emaildomain.Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFetch[emailID] {
		return nil, fmt.Errorf("fetch failed for %s", emailID)
	}
	e, ok := p.byID[emailID]
	if !ok {
		return nil, fmt.Errorf("no such email %s", emailID)
	}
	copied := *e
	return &copied, nil
}

func (p *fakeProvider) SetRead(_ context.Context, _ provider.Account, emailID string, read bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.byID[emailID]; ok {
		e.IsRead = read
	}
	return nil
}

func (p *fakeProvider) SetStarred(_ context.Context, _ provider.Account, emailID string, starred bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.byID[emailID]; ok {
		e.IsStarred = starred
	}
	return nil
}

func (p *fakeProvider) ModifyLabels(_ context.Context, _ provider.Account, emailID string, add, remove []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modifyAdds = append(p.modifyAdds, add)
	p.modifyRems = append(p.modifyRems, remove)
	return p.modifyErr
}

func (p *fakeProvider) Trash(context.Context, provider.Account, string) error   { return nil }
func (p *fakeProvider) Archive(context.Context, provider.Account, string) error { return nil }

func (p *fakeProvider) Delete(_ context.Context, _ provider.Account, emailID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byID, emailID)
	return nil
}

func (p *fakeProvider) Send(_ context.Context, _ provider.Account, msg *emaildomain.OutgoingMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentTargets = append(p.sentTargets, msg.To...)
	return nil
}

func (p *fakeProvider) Attachment(context.Context, provider.Account, string, string) ([]byte, string, error) {
	return nil, "", fmt.Errorf("no attachments in fake")
}

func (p *fakeProvider) listCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

type fakeVectorStore struct {
	mu        sync.Mutex
	upserts   []string
	deletes   []string
	upsertErr error
	searchIDs []string
	searchDst []float64
}

func (v *fakeVectorStore) UpsertEmail(_ context.Context, emailID, _, _, _ string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.upsertErr != nil {
		return v.upsertErr
	}
	v.upserts = append(v.upserts, emailID)
	return nil
}

func (v *fakeVectorStore) Search(context.Context, string, string, int) ([]string, []float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.searchIDs, v.searchDst, nil
}

func (v *fakeVectorStore) DeleteEmail(_ context.Context, emailID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deletes = append(v.deletes, emailID)
	return nil
}

func (v *fakeVectorStore) upsertCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.upserts)
}

type sentEvent struct {
	userID    string
	eventType string
	payload   map[string]interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *fakeNotifier) SendToUser(userID, eventType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	data, _ := payload.(map[string]interface{})
	n.events = append(n.events, sentEvent{userID: userID, eventType: eventType, payload: data})
}

func (n *fakeNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type fakeAI struct {
	synonyms []string
	err      error
}

func (a *fakeAI) SummarizeEmail(context.Context, string) (string, error) { return "summary", nil }
func (a *fakeAI) GenerateSynonyms(context.Context, string) ([]string, error) {
	return a.synonyms, a.err
}

type testEnv struct {
	svc      *Service
	users    *fakeUserRepo
	columns  *fakeColumnRepo
	mappings *fakeMappingRepo
	ledger   *fakeLedgerRepo
	provider *fakeProvider
	vectors  *fakeVectorStore
	notifier *fakeNotifier
}

func testUser() *authdomain.User {
	return &authdomain.User{
		ID:          "user-1",
		Email:       "ada@example.com",
		Name:        "Ada",
		Provider:    authdomain.ProviderGoogle,
		AccessToken: "access-token",
	}
}

func newTestEnv(emails ...*emaildomain.Email) *testEnv {
	cfg := &config.Config{
		VectorSyncWorkers:   2,
		VectorSyncQueueSize: 16,
		SnoozeSweepInterval: time.Hour,
		SemanticDistanceMax: 1.2,
	}

	env := &testEnv{
		users:    newFakeUserRepo(testUser()),
		columns:  &fakeColumnRepo{},
		mappings: &fakeMappingRepo{},
		ledger:   newFakeLedgerRepo(),
		provider: newFakeProvider(emails...),
		vectors:  &fakeVectorStore{},
		notifier: &fakeNotifier{},
	}

	registry := provider.NewRegistry()
	registry.Register(authdomain.ProviderGoogle, env.provider)

	env.svc = NewService(env.users, env.columns, env.mappings, env.ledger, registry, cfg)
	env.svc.SetVectorStore(env.vectors)
	env.svc.SetNotifier(env.notifier)
	return env
}

func email(id, subject, fromName string, receivedAt time.Time) *emaildomain.Email {
	return &emaildomain.Email{
		ID:         id,
		Subject:    subject,
		From:       fromName + "@example.com",
		FromName:   fromName,
		Preview:    subject,
		Body:       subject,
		MailboxID:  "INBOX",
		ReceivedAt: receivedAt,
	}
}
