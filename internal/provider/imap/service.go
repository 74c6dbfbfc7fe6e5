// Package imap implements the mail provider over IMAP and SMTP for generic
// accounts. Connections are per-operation: dial, login, do the work, logout.
// Email IDs are "mailbox:uid" because IMAP UIDs are only unique per mailbox.
package imap

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/provider"
	"mailboard-backend/pkg/mailerr"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

type Service struct{}

var _ provider.Provider = (*Service)(nil)

func NewService() *Service {
	return &Service{}
}

// Verify checks IMAP credentials with a throwaway login. Used at sign-in so
// bad passwords are rejected before they are encrypted and stored.
func Verify(ctx context.Context, server string, port int, email, password string) error {
	addr := fmt.Sprintf("%s:%d", server, port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return mailerr.Errorf(mailerr.KindTransient, "imap.Verify", "connection to %s failed: %v", addr, err)
	}
	defer c.Logout()

	if err := c.Login(email, password); err != nil {
		return mailerr.Errorf(mailerr.KindUnauthenticated, "imap.Verify", "login for %s failed: %v", email, err)
	}
	return nil
}

func (s *Service) connect(acct provider.Account) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", acct.IMAPHost, acct.IMAPPort)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, mailerr.Errorf(mailerr.KindTransient, "imap.connect", "connection to %s failed: %v", addr, err)
	}
	if err := c.Login(acct.Email, acct.IMAPPassword); err != nil {
		c.Logout()
		return nil, mailerr.Errorf(mailerr.KindUnauthenticated, "imap.connect", "login for %s failed: %v", acct.Email, err)
	}
	return c, nil
}

func (s *Service) Mailboxes(ctx context.Context, acct provider.Account) ([]*emaildomain.Mailbox, error) {
	c, err := s.connect(acct)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	infoCh := make(chan *goimap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", infoCh)
	}()

	var names []string
	for info := range infoCh {
		if hasAttr(info.Attributes, goimap.NoSelectAttr) {
			continue
		}
		names = append(names, info.Name)
	}
	if err := <-done; err != nil {
		return nil, mailerr.E(mailerr.KindTransient, "imap.Mailboxes", err)
	}

	mailboxes := make([]*emaildomain.Mailbox, 0, len(names))
	for _, name := range names {
		mb := &emaildomain.Mailbox{ID: name, Name: name, Type: mailboxType(name)}
		if status, err := c.Status(name, []goimap.StatusItem{goimap.StatusMessages, goimap.StatusUnseen}); err == nil {
			mb.TotalCount = int(status.Messages)
			mb.UnreadCount = int(status.Unseen)
		}
		mailboxes = append(mailboxes, mb)
	}
	return mailboxes, nil
}

func (s *Service) Emails(ctx context.Context, acct provider.Account, mailboxID string, limit, offset int, query string) ([]*emaildomain.Email, int, error) {
	c, err := s.connect(acct)
	if err != nil {
		return nil, 0, err
	}
	defer c.Logout()

	if mailboxID == "" || mailboxID == "ALL" {
		mailboxID = "INBOX"
	}
	mbox, err := c.Select(mailboxID, true)
	if err != nil {
		return nil, 0, mailerr.Errorf(mailerr.KindNotFound, "imap.Emails", "cannot select %s: %v", mailboxID, err)
	}

	total := int(mbox.Messages)
	if total == 0 || offset >= total {
		return []*emaildomain.Email{}, total, nil
	}
	if limit <= 0 {
		limit = 20
	}

	// Sequence numbers grow oldest-to-newest; page from the top down.
	top := total - offset
	bottom := top - limit + 1
	if bottom < 1 {
		bottom = 1
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddRange(uint32(bottom), uint32(top))

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchFlags,
		goimap.FetchUid,
		section.FetchItem(),
	}

	msgCh := make(chan *goimap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, msgCh)
	}()

	var emails []*emaildomain.Email
	for msg := range msgCh {
		email, err := parseMessage(mailboxID, msg, section)
		if err != nil {
			continue
		}
		emails = append(emails, email)
	}
	if err := <-done; err != nil {
		return nil, 0, mailerr.E(mailerr.KindTransient, "imap.Emails", err)
	}

	sort.Slice(emails, func(i, j int) bool {
		return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
	})
	return emails, total, nil
}

func (s *Service) EmailByID(ctx context.Context, acct provider.Account, emailID string) (*emaildomain.Email, error) {
	mailbox, uid, err := splitID(emailID)
	if err != nil {
		return nil, err
	}

	c, err := s.connect(acct)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(mailbox, true); err != nil {
		return nil, mailerr.Errorf(mailerr.KindNotFound, "imap.EmailByID", "cannot select %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{
		goimap.FetchEnvelope,
		goimap.FetchFlags,
		goimap.FetchUid,
		section.FetchItem(),
	}

	msgCh := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, msgCh)
	}()

	var email *emaildomain.Email
	for msg := range msgCh {
		if parsed, err := parseMessage(mailbox, msg, section); err == nil {
			email = parsed
		}
	}
	if err := <-done; err != nil {
		return nil, mailerr.E(mailerr.KindTransient, "imap.EmailByID", err)
	}
	if email == nil {
		return nil, mailerr.Errorf(mailerr.KindNotFound, "imap.EmailByID", "message %s not found", emailID)
	}
	return email, nil
}

func (s *Service) SetRead(ctx context.Context, acct provider.Account, emailID string, read bool) error {
	return s.storeFlag(acct, emailID, "imap.SetRead", goimap.SeenFlag, read)
}

func (s *Service) SetStarred(ctx context.Context, acct provider.Account, emailID string, starred bool) error {
	return s.storeFlag(acct, emailID, "imap.SetStarred", goimap.FlaggedFlag, starred)
}

// ModifyLabels maps the portable label vocabulary onto IMAP flags. Labels
// with no IMAP equivalent (INBOX, custom labels) are ignored.
func (s *Service) ModifyLabels(ctx context.Context, acct provider.Account, emailID string, add, remove []string) error {
	for _, label := range add {
		switch label {
		case "STARRED":
			if err := s.SetStarred(ctx, acct, emailID, true); err != nil {
				return err
			}
		case "UNREAD":
			if err := s.SetRead(ctx, acct, emailID, false); err != nil {
				return err
			}
		}
	}
	for _, label := range remove {
		switch label {
		case "STARRED":
			if err := s.SetStarred(ctx, acct, emailID, false); err != nil {
				return err
			}
		case "UNREAD":
			if err := s.SetRead(ctx, acct, emailID, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Trash moves the message to the account's trash mailbox. Core IMAP has no
// MOVE, so this is copy, flag deleted, expunge.
func (s *Service) Trash(ctx context.Context, acct provider.Account, emailID string) error {
	return s.moveTo(acct, emailID, "imap.Trash", []string{"Trash", "Deleted Items", "Deleted Messages", "[Gmail]/Trash"})
}

func (s *Service) Archive(ctx context.Context, acct provider.Account, emailID string) error {
	return s.moveTo(acct, emailID, "imap.Archive", []string{"Archive", "Archived", "All Mail", "[Gmail]/All Mail"})
}

func (s *Service) Delete(ctx context.Context, acct provider.Account, emailID string) error {
	mailbox, uid, err := splitID(emailID)
	if err != nil {
		return err
	}

	c, err := s.connect(acct)
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(mailbox, false); err != nil {
		return mailerr.Errorf(mailerr.KindNotFound, "imap.Delete", "cannot select %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	if err := c.UidStore(seqSet, item, []interface{}{goimap.DeletedFlag}, nil); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Delete", err)
	}
	if err := c.Expunge(nil); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Delete", err)
	}
	return nil
}

func (s *Service) Attachment(ctx context.Context, acct provider.Account, emailID, attachmentID string) ([]byte, string, error) {
	mailbox, uid, err := splitID(emailID)
	if err != nil {
		return nil, "", err
	}

	c, err := s.connect(acct)
	if err != nil {
		return nil, "", err
	}
	defer c.Logout()

	if _, err := c.Select(mailbox, true); err != nil {
		return nil, "", mailerr.Errorf(mailerr.KindNotFound, "imap.Attachment", "cannot select %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)
	section := &goimap.BodySectionName{Peek: true}

	msgCh := make(chan *goimap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []goimap.FetchItem{section.FetchItem()}, msgCh)
	}()

	var data []byte
	var mimeType string
	found := false
	for msg := range msgCh {
		if d, mt, err := extractAttachment(msg, section, attachmentID); err == nil {
			data, mimeType, found = d, mt, true
		}
	}
	if err := <-done; err != nil {
		return nil, "", mailerr.E(mailerr.KindTransient, "imap.Attachment", err)
	}
	if !found {
		return nil, "", mailerr.Errorf(mailerr.KindNotFound, "imap.Attachment", "attachment %s not found on %s", attachmentID, emailID)
	}
	return data, mimeType, nil
}

func (s *Service) storeFlag(acct provider.Account, emailID, op, flag string, set bool) error {
	mailbox, uid, err := splitID(emailID)
	if err != nil {
		return err
	}

	c, err := s.connect(acct)
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(mailbox, false); err != nil {
		return mailerr.Errorf(mailerr.KindNotFound, op, "cannot select %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	operation := goimap.FlagsOp(goimap.RemoveFlags)
	if set {
		operation = goimap.AddFlags
	}
	item := goimap.FormatFlagsOp(operation, true)
	if err := c.UidStore(seqSet, item, []interface{}{flag}, nil); err != nil {
		return mailerr.E(mailerr.KindTransient, op, err)
	}
	return nil
}

func (s *Service) moveTo(acct provider.Account, emailID, op string, candidates []string) error {
	mailbox, uid, err := splitID(emailID)
	if err != nil {
		return err
	}

	c, err := s.connect(acct)
	if err != nil {
		return err
	}
	defer c.Logout()

	dest := ""
	for _, name := range candidates {
		if _, err := c.Status(name, []goimap.StatusItem{goimap.StatusMessages}); err == nil {
			dest = name
			break
		}
	}
	if dest == "" {
		return mailerr.Errorf(mailerr.KindNotFound, op, "no destination mailbox among %v", candidates)
	}

	if _, err := c.Select(mailbox, false); err != nil {
		return mailerr.Errorf(mailerr.KindNotFound, op, "cannot select %s: %v", mailbox, err)
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)
	if err := c.UidCopy(seqSet, dest); err != nil {
		return mailerr.E(mailerr.KindTransient, op, err)
	}

	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	if err := c.UidStore(seqSet, item, []interface{}{goimap.DeletedFlag}, nil); err != nil {
		return mailerr.E(mailerr.KindTransient, op, err)
	}
	if err := c.Expunge(nil); err != nil {
		return mailerr.E(mailerr.KindTransient, op, err)
	}
	return nil
}

// MakeID builds the provider email ID for a message.
func MakeID(mailbox string, uid uint32) string {
	return mailbox + ":" + strconv.FormatUint(uint64(uid), 10)
}

func splitID(emailID string) (string, uint32, error) {
	idx := strings.LastIndex(emailID, ":")
	if idx <= 0 {
		return "", 0, mailerr.Errorf(mailerr.KindNotFound, "imap.id", "malformed email id %q", emailID)
	}
	uid, err := strconv.ParseUint(emailID[idx+1:], 10, 32)
	if err != nil {
		return "", 0, mailerr.Errorf(mailerr.KindNotFound, "imap.id", "malformed email id %q", emailID)
	}
	return emailID[:idx], uint32(uid), nil
}

func hasAttr(attrs []string, want string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a, want) {
			return true
		}
	}
	return false
}

func mailboxType(name string) string {
	switch strings.ToUpper(name) {
	case "INBOX", "SENT", "DRAFTS", "TRASH", "SPAM", "JUNK", "ARCHIVE":
		return "system"
	}
	return "user"
}

// receivedAt prefers the envelope date; messages with a broken Date header
// fall back to now so they don't sort to the epoch.
func receivedAt(env *goimap.Envelope) time.Time {
	if env != nil && !env.Date.IsZero() {
		return env.Date
	}
	return time.Now()
}
