package usecase

import (
	"context"
	"log"
	"strings"
	"sync"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/provider"
	"mailboard-backend/pkg/mailerr"

	"github.com/google/uuid"
)

// statusCache is the in-memory fallback for column placement, used when the
// persisted mapping is unreadable, plus best-effort local copies of emails
// for hydrating snoozed rows when the provider fails. Lock hold time is O(1);
// nothing under the lock does I/O.
type statusCache struct {
	mu      sync.RWMutex
	columns map[string]map[string]string
	emails  map[string]map[string]emaildomain.Email
}

func newStatusCache() *statusCache {
	return &statusCache{
		columns: make(map[string]map[string]string),
		emails:  make(map[string]map[string]emaildomain.Email),
	}
}

func (c *statusCache) setColumn(userID, emailID, column string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.columns[userID] == nil {
		c.columns[userID] = make(map[string]string)
	}
	c.columns[userID][emailID] = column
	if e, ok := c.emails[userID][emailID]; ok {
		e.Column = column
		if column != emaildomain.ColumnSnoozed {
			e.SnoozedUntil = nil
		}
		c.emails[userID][emailID] = e
	}
}

func (c *statusCache) column(userID, emailID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.columns[userID][emailID]
	return col, ok
}

// remember stores a copy of the email for later fallback hydration.
func (c *statusCache) remember(userID string, email *emaildomain.Email) {
	if email == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emails[userID] == nil {
		c.emails[userID] = make(map[string]emaildomain.Email)
	}
	c.emails[userID][email.ID] = *email
}

func (c *statusCache) cached(userID, emailID string) (*emaildomain.Email, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.emails[userID][emailID]
	if !ok {
		return nil, false
	}
	copied := e
	return &copied, true
}

func (c *statusCache) forget(userID, emailID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.columns[userID], emailID)
	delete(c.emails[userID], emailID)
}

// resolveColumn is the ordered placement lookup: persisted mapping first, the
// in-memory fallback next, "inbox" last. mapped may be nil when the mapping
// read failed.
func (s *Service) resolveColumn(userID, emailID string, mapped map[string]string) string {
	if mapped != nil {
		if col, ok := mapped[emailID]; ok && col != "" {
			return col
		}
	}
	if col, ok := s.status.column(userID, emailID); ok && col != "" {
		return col
	}
	return emaildomain.ColumnInbox
}

// annotateColumns fills each email's Column field from the mapping so list
// responses carry board placement without a second round trip.
func (s *Service) annotateColumns(userID string, emails []*emaildomain.Email) {
	if len(emails) == 0 {
		return
	}
	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.ID
	}
	mapped, err := s.mappingRepo.GetEmailColumnMap(userID, ids)
	if err != nil {
		log.Printf("[Board] Failed to load column map for annotation: %v", err)
		mapped = nil
	}
	for _, e := range emails {
		e.Column = s.resolveColumn(userID, e.ID, mapped)
	}
}

// defaultColumns are created lazily the first time a user's board is read.
// Exactly one (inbox) maps to the provider's native inbox label.
func defaultColumns(userID string) []*emaildomain.Column {
	return []*emaildomain.Column{
		{UserID: userID, Slug: emaildomain.ColumnInbox, Name: "Inbox", Order: 0, LabelID: "INBOX", RemoveLabelIDs: emaildomain.StringArray{"INBOX"}},
		{UserID: userID, Slug: emaildomain.ColumnTodo, Name: "To Do", Order: 1, LabelID: "IMPORTANT", RemoveLabelIDs: emaildomain.StringArray{"IMPORTANT"}},
		{UserID: userID, Slug: emaildomain.ColumnDone, Name: "Done", Order: 2, LabelID: "STARRED", RemoveLabelIDs: emaildomain.StringArray{"STARRED"}},
		{UserID: userID, Slug: emaildomain.ColumnSnoozed, Name: "Snoozed", Order: 3},
	}
}

// Columns returns the user's board columns, creating any missing defaults.
func (s *Service) Columns(userID string) ([]*emaildomain.Column, error) {
	columns, err := s.columnRepo.GetColumnsByUserID(userID)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(columns))
	for _, col := range columns {
		existing[col.Slug] = true
	}

	for _, def := range defaultColumns(userID) {
		if existing[def.Slug] {
			continue
		}
		// Re-check the store: another request may have created it between
		// the list above and now.
		stored, _ := s.columnRepo.GetColumn(userID, def.Slug)
		if stored != nil {
			columns = append(columns, stored)
			continue
		}
		if err := s.columnRepo.CreateColumn(def); err != nil {
			log.Printf("[Board] Failed to create default column %s: %v", def.Slug, err)
			continue
		}
		columns = append(columns, def)
	}
	return columns, nil
}

// CreateColumn adds a custom column. The slug is derived from the name when
// the caller does not supply one.
func (s *Service) CreateColumn(userID string, column *emaildomain.Column) error {
	column.UserID = userID
	if column.Slug == "" {
		column.Slug = slugify(column.Name)
	}
	existing, err := s.columnRepo.GetColumn(userID, column.Slug)
	if err != nil {
		return err
	}
	if existing != nil {
		return mailerr.Errorf(mailerr.KindInvalid, "board.CreateColumn", "column %q already exists", column.Slug)
	}
	return s.columnRepo.CreateColumn(column)
}

// UpdateColumn merges the changed fields into the stored column.
func (s *Service) UpdateColumn(userID, slug string, changes *emaildomain.Column) error {
	existing, err := s.columnRepo.GetColumn(userID, slug)
	if err != nil {
		return err
	}
	if existing == nil {
		return mailerr.Errorf(mailerr.KindNotFound, "board.UpdateColumn", "column %q not found", slug)
	}

	if changes.Name != "" {
		existing.Name = changes.Name
	}
	existing.LabelID = changes.LabelID
	existing.RemoveLabelIDs = changes.RemoveLabelIDs
	if changes.Order > 0 {
		existing.Order = changes.Order
	}
	return s.columnRepo.UpdateColumn(existing)
}

// DeleteColumn removes a custom column and moves its emails back to inbox.
// Default columns cannot be deleted.
func (s *Service) DeleteColumn(userID, slug string) error {
	column, err := s.columnRepo.GetColumn(userID, slug)
	if err != nil {
		return err
	}
	if column == nil {
		return mailerr.Errorf(mailerr.KindNotFound, "board.DeleteColumn", "column %q not found", slug)
	}
	if column.IsDefault() {
		return mailerr.Errorf(mailerr.KindInvalid, "board.DeleteColumn", "column %q is built in and cannot be deleted", slug)
	}

	if err := s.mappingRepo.ReassignColumn(userID, slug, emaildomain.ColumnInbox); err != nil {
		return err
	}
	return s.columnRepo.DeleteColumn(userID, slug)
}

// ReorderColumns applies new display orders keyed by slug.
func (s *Service) ReorderColumns(userID string, orders map[string]int) error {
	return s.columnRepo.UpdateColumnOrders(userID, orders)
}

// EmailsInColumn answers "which emails are in column slug", page (limit,
// offset). kanban requests strict placement: every column is driven purely by
// mapping rows so an email can never show up on two columns of the board.
// Totals are exact for mapping-backed columns and provider estimates
// otherwise.
func (s *Service) EmailsInColumn(ctx context.Context, userID, slug string, limit, offset int, kanban bool) ([]*emaildomain.Email, int, error) {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return nil, 0, err
	}

	column, err := s.columnRepo.GetColumn(userID, slug)
	if err != nil {
		return nil, 0, err
	}
	if column == nil {
		// Lazily create defaults on first read.
		if _, err := s.Columns(userID); err != nil {
			return nil, 0, err
		}
		column, err = s.columnRepo.GetColumn(userID, slug)
		if err != nil {
			return nil, 0, err
		}
		if column == nil {
			return nil, 0, mailerr.Errorf(mailerr.KindNotFound, "board.EmailsInColumn", "column %q not found", slug)
		}
	}

	// Snoozed bypasses the provider: the mapping is the source of truth and
	// the full ordered list is paginated locally.
	if slug == emaildomain.ColumnSnoozed {
		return s.snoozedEmails(ctx, userID, acct, p, limit, offset)
	}

	// Label-backed columns fetch straight from the provider when strict
	// board placement is not required. Snoozed emails are hidden everywhere
	// else, so they are subtracted here.
	if !kanban && column.LabelID != "" {
		emails, total, err := p.Emails(ctx, acct, column.LabelID, limit, offset, "")
		if err != nil {
			return nil, 0, err
		}
		s.observe(userID, emails)

		snoozed := s.snoozedSet(userID)
		filtered := make([]*emaildomain.Email, 0, len(emails))
		for _, email := range emails {
			if snoozed[email.ID] {
				continue
			}
			email.Column = slug
			filtered = append(filtered, email)
		}
		return filtered, total, nil
	}

	// Strict mode, non-inbox: mapping rows drive the column entirely, which
	// gives stable pagination and an exact total.
	if slug != emaildomain.ColumnInbox && (kanban || column.LabelID == "") {
		return s.mappedEmails(ctx, userID, acct, p, slug, limit, offset)
	}

	if kanban {
		// Strict inbox: one provider page, keep only emails with no mapping
		// or an explicit inbox mapping.
		emails, _, err := p.Emails(ctx, acct, "INBOX", limit, offset, "")
		if err != nil {
			return nil, 0, err
		}
		s.observe(userID, emails)
		filtered := s.filterByColumn(userID, emails, emaildomain.ColumnInbox)
		return filtered, len(filtered), nil
	}

	// Default path: overfetch the native inbox so local filtering still fills
	// the page, then reconcile against the mapping.
	emails, total, err := p.Emails(ctx, acct, "INBOX", limit*2, offset, "")
	if err != nil {
		return nil, 0, err
	}
	s.observe(userID, emails)
	filtered := s.filterByColumn(userID, emails, slug)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	if slug != emaildomain.ColumnInbox {
		total = len(filtered)
	}
	return filtered, total, nil
}

// snoozedEmails paginates the snoozed mapping rows and hydrates each id. A
// provider failure for one id falls back to the local cached copy instead of
// failing the page.
func (s *Service) snoozedEmails(ctx context.Context, userID string, acct provider.Account, p provider.Provider, limit, offset int) ([]*emaildomain.Email, int, error) {
	ids, err := s.mappingRepo.GetEmailsByColumn(userID, emaildomain.ColumnSnoozed)
	if err != nil {
		return nil, 0, err
	}
	total := len(ids)
	if total == 0 || offset >= total {
		return []*emaildomain.Email{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	emails := make([]*emaildomain.Email, 0, end-offset)
	for _, id := range ids[offset:end] {
		mapping, _ := s.mappingRepo.GetMapping(userID, id)

		email, err := p.EmailByID(ctx, acct, id)
		if err != nil {
			log.Printf("[Board] Failed to hydrate snoozed email %s: %v", id, err)
			if cached, ok := s.status.cached(userID, id); ok {
				email = cached
			} else {
				continue
			}
		}

		email.Column = emaildomain.ColumnSnoozed
		if mapping != nil {
			email.SnoozedUntil = mapping.SnoozedUntil
		}
		emails = append(emails, email)
	}
	return emails, total, nil
}

// mappedEmails serves a column purely from its mapping rows.
func (s *Service) mappedEmails(ctx context.Context, userID string, acct provider.Account, p provider.Provider, slug string, limit, offset int) ([]*emaildomain.Email, int, error) {
	ids, err := s.mappingRepo.GetEmailsByColumn(userID, slug)
	if err != nil {
		return nil, 0, err
	}
	total := len(ids)
	if total == 0 || offset >= total {
		return []*emaildomain.Email{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	emails := make([]*emaildomain.Email, 0, end-offset)
	for _, id := range ids[offset:end] {
		email, err := p.EmailByID(ctx, acct, id)
		if err != nil {
			log.Printf("[Board] Failed to hydrate email %s for column %s: %v", id, slug, err)
			continue
		}
		email.Column = slug
		emails = append(emails, email)
	}
	s.observe(userID, emails)
	return emails, total, nil
}

// filterByColumn keeps the emails that reconcile to the requested column.
// Snoozed emails never appear here regardless of the requested column.
func (s *Service) filterByColumn(userID string, emails []*emaildomain.Email, slug string) []*emaildomain.Email {
	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.ID
	}
	mapped, err := s.mappingRepo.GetEmailColumnMap(userID, ids)
	if err != nil {
		log.Printf("[Board] Failed to load column map, using in-memory fallback: %v", err)
		mapped = nil
	}

	filtered := make([]*emaildomain.Email, 0, len(emails))
	for _, email := range emails {
		col := s.resolveColumn(userID, email.ID, mapped)
		if col == emaildomain.ColumnSnoozed {
			continue
		}
		if col == slug {
			email.Column = col
			filtered = append(filtered, email)
		}
	}
	return filtered
}

// snoozedSet returns the ids currently snoozed, as a set. Best-effort: a read
// failure yields an empty set rather than an error.
func (s *Service) snoozedSet(userID string) map[string]bool {
	ids, err := s.mappingRepo.GetEmailsByColumn(userID, emaildomain.ColumnSnoozed)
	if err != nil {
		log.Printf("[Board] Failed to load snoozed set: %v", err)
		return map[string]bool{}
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// MoveEmail places an email into targetSlug. The provider label mutation is
// best-effort: the mapping row is upserted even when the provider call fails,
// so the board reflects user intent regardless of label propagation, and the
// provider error (if any) is still returned.
func (s *Service) MoveEmail(ctx context.Context, userID, emailID, targetSlug, sourceHint string) error {
	acct, p, err := s.resolveAccount(userID)
	if err != nil {
		return err
	}

	target, err := s.columnRepo.GetColumn(userID, targetSlug)
	if err != nil {
		return err
	}
	if target == nil {
		if _, err := s.Columns(userID); err != nil {
			return err
		}
		target, err = s.columnRepo.GetColumn(userID, targetSlug)
		if err != nil {
			return err
		}
		if target == nil {
			return mailerr.Errorf(mailerr.KindNotFound, "board.MoveEmail", "column %q not found", targetSlug)
		}
	}

	// Source resolution prefers the persisted mapping over the caller's hint.
	sourceSlug, _ := s.mappingRepo.GetEmailColumn(userID, emailID)
	if sourceSlug == "" {
		sourceSlug = sourceHint
	}
	var source *emaildomain.Column
	if sourceSlug != "" && sourceSlug != targetSlug {
		source, _ = s.columnRepo.GetColumn(userID, sourceSlug)
	}

	add, remove := moveLabelChanges(target, source)

	var providerErr error
	if len(add) > 0 || len(remove) > 0 {
		providerErr = p.ModifyLabels(ctx, acct, emailID, add, remove)
		if providerErr != nil {
			log.Printf("[Board] Label change failed moving %s to %s: %v", emailID, targetSlug, providerErr)
		}
	}

	s.status.setColumn(userID, emailID, targetSlug)
	if err := s.mappingRepo.SetEmailColumn(userID, emailID, targetSlug); err != nil {
		log.Printf("[Board] Failed to save mapping for %s -> %s: %v", emailID, targetSlug, err)
	}

	if s.notifier != nil {
		s.notifier.SendToUser(userID, "email_update", map[string]interface{}{
			"email_id": emailID,
			"action":   "move",
			"column":   targetSlug,
		})
	}
	return providerErr
}

// moveLabelChanges computes the provider label delta for a move. The target's
// label is added, defaulting to INBOX when it has none so the email stays
// discoverable; the target's configured removals plus the source's label are
// removed. A label in both sets stays added.
func moveLabelChanges(target, source *emaildomain.Column) (add, remove []string) {
	if target.LabelID != "" {
		add = append(add, target.LabelID)
	} else {
		add = append(add, "INBOX")
	}

	remove = append(remove, []string(target.RemoveLabelIDs)...)
	if source != nil && source.LabelID != "" && source.LabelID != target.LabelID {
		remove = append(remove, source.LabelID)
	}

	addSet := make(map[string]bool, len(add))
	for _, id := range add {
		addSet[id] = true
	}
	deduped := remove[:0]
	seen := make(map[string]bool, len(remove))
	for _, id := range remove {
		if addSet[id] || seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	return add, deduped
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	if slug == "" {
		slug = "column"
	}
	return slug + "-" + uuid.New().String()[:8]
}
