// Package gmail implements the mail provider on the Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sort"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/provider"
	"mailboard-backend/pkg/mailerr"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Gmail caps MaxResults at 500; offsets are walked page by page at that size.
const maxPageSize = 500

type Service struct {
	clientID     string
	clientSecret string
}

var _ provider.Provider = (*Service)(nil)
var _ provider.Watcher = (*Service)(nil)

func NewService(clientID, clientSecret string) *Service {
	return &Service{clientID: clientID, clientSecret: clientSecret}
}

// notifyTokenSource wraps the oauth2 source so a rotated access token is
// persisted before the request that triggered the refresh completes.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback provider.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// oauthToken rebuilds the stored token. A token without an expiry counts as
// forever valid to oauth2 and would never rotate, so when a refresh token
// exists and no expiry was recorded the token is treated as already expired.
func oauthToken(acct provider.Account) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       acct.TokenExpiry,
	}
	if token.Expiry.IsZero() && token.RefreshToken != "" {
		token.Expiry = time.Now()
	}
	return token
}

func (s *Service) api(ctx context.Context, acct provider.Account) (*gmail.Service, error) {
	token := oauthToken(acct)

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrapped := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: acct.OnTokenRefresh,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, wrapped)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}
	return srv, nil
}

func (s *Service) Mailboxes(ctx context.Context, acct provider.Account) ([]*emaildomain.Mailbox, error) {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return nil, mailerr.FromGmail("gmail.Mailboxes", err)
	}

	mailboxes := make([]*emaildomain.Mailbox, 0, len(resp.Labels))
	for _, label := range resp.Labels {
		if label.Type != "system" && label.Type != "user" {
			continue
		}
		mailboxes = append(mailboxes, &emaildomain.Mailbox{
			ID:          label.Id,
			Name:        label.Name,
			Type:        label.Type,
			UnreadCount: int(label.MessagesUnread),
			TotalCount:  int(label.MessagesTotal),
		})
	}
	return mailboxes, nil
}

func (s *Service) Emails(ctx context.Context, acct provider.Account, mailboxID string, limit, offset int, query string) ([]*emaildomain.Email, int, error) {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return nil, 0, err
	}

	q := ""
	if mailboxID != "" && mailboxID != "ALL" {
		q = "label:" + mailboxID + " "
	}
	q += query

	// Gmail pages with tokens, not offsets. To honor an offset we walk
	// lightweight ID-only pages until enough messages are behind us.
	pageToken := ""
	skipped := 0
	for skipped < offset {
		toFetch := int64(offset - skipped)
		if toFetch > maxPageSize {
			toFetch = maxPageSize
		}
		call := srv.Users.Messages.List("me").MaxResults(toFetch).Context(ctx)
		if q != "" {
			call = call.Q(q)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, 0, mailerr.FromGmail("gmail.Emails.skip", err)
		}
		skipped += len(resp.Messages)
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	requestLimit := int64(limit)
	if requestLimit <= 0 {
		requestLimit = 20
	}
	if requestLimit > maxPageSize {
		requestLimit = maxPageSize
	}

	call := srv.Users.Messages.List("me").MaxResults(requestLimit).Context(ctx)
	if q != "" {
		call = call.Q(q)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, 0, mailerr.FromGmail("gmail.Emails", err)
	}

	emails := s.hydrate(ctx, srv, resp.Messages)

	// Parallel hydration returns messages out of order.
	sort.Slice(emails, func(i, j int) bool {
		return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
	})

	total := int(resp.ResultSizeEstimate)
	if total == 0 && len(emails) > 0 {
		total = skipped + len(emails)
	}
	return emails, total, nil
}

// hydrate fetches full message bodies in parallel, at most 10 in flight.
// Messages that fail to fetch are dropped rather than failing the page.
func (s *Service) hydrate(ctx context.Context, srv *gmail.Service, refs []*gmail.Message) []*emaildomain.Email {
	type result struct {
		email *emaildomain.Email
		err   error
	}

	results := make(chan result, len(refs))
	sem := make(chan struct{}, 10)

	for _, ref := range refs {
		go func(id string) {
			sem <- struct{}{}
			defer func() { <-sem }()

			msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
			if err != nil {
				results <- result{nil, err}
				return
			}
			results <- result{convertMessage(msg), nil}
		}(ref.Id)
	}

	emails := make([]*emaildomain.Email, 0, len(refs))
	for range refs {
		r := <-results
		if r.err != nil {
			log.Printf("[Gmail] Skipping message in listing: %v", r.err)
			continue
		}
		emails = append(emails, r.email)
	}
	return emails
}

func (s *Service) EmailByID(ctx context.Context, acct provider.Account, emailID string) (*emaildomain.Email, error) {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", emailID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, mailerr.FromGmail("gmail.EmailByID", err)
	}
	return convertMessage(msg), nil
}

func (s *Service) SetRead(ctx context.Context, acct provider.Account, emailID string, read bool) error {
	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{"UNREAD"}}
	if read {
		req = &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	}
	return s.modify(ctx, acct, emailID, "gmail.SetRead", req)
}

func (s *Service) SetStarred(ctx context.Context, acct provider.Account, emailID string, starred bool) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"STARRED"}}
	if starred {
		req = &gmail.ModifyMessageRequest{AddLabelIds: []string{"STARRED"}}
	}
	return s.modify(ctx, acct, emailID, "gmail.SetStarred", req)
}

func (s *Service) ModifyLabels(ctx context.Context, acct provider.Account, emailID string, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	return s.modify(ctx, acct, emailID, "gmail.ModifyLabels", &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	})
}

func (s *Service) Trash(ctx context.Context, acct provider.Account, emailID string) error {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return err
	}
	if _, err := srv.Users.Messages.Trash("me", emailID).Context(ctx).Do(); err != nil {
		return mailerr.FromGmail("gmail.Trash", err)
	}
	return nil
}

func (s *Service) Archive(ctx context.Context, acct provider.Account, emailID string) error {
	return s.modify(ctx, acct, emailID, "gmail.Archive", &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX"},
	})
}

func (s *Service) Delete(ctx context.Context, acct provider.Account, emailID string) error {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return err
	}
	if err := srv.Users.Messages.Delete("me", emailID).Context(ctx).Do(); err != nil {
		return mailerr.FromGmail("gmail.Delete", err)
	}
	return nil
}

func (s *Service) modify(ctx context.Context, acct provider.Account, emailID, op string, req *gmail.ModifyMessageRequest) error {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return err
	}
	if _, err := srv.Users.Messages.Modify("me", emailID, req).Context(ctx).Do(); err != nil {
		return mailerr.FromGmail(op, err)
	}
	return nil
}

func (s *Service) Send(ctx context.Context, acct provider.Account, msg *emaildomain.OutgoingMessage) error {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return err
	}

	raw := provider.BuildMessage(acct.Name, acct.Email, msg)
	gmsg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}

	if _, err := srv.Users.Messages.Send("me", gmsg).Context(ctx).Do(); err != nil {
		return mailerr.FromGmail("gmail.Send", err)
	}
	return nil
}

func (s *Service) Attachment(ctx context.Context, acct provider.Account, emailID, attachmentID string) ([]byte, string, error) {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return nil, "", err
	}

	msg, err := srv.Users.Messages.Get("me", emailID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, "", mailerr.FromGmail("gmail.Attachment", err)
	}

	mimeType := "application/octet-stream"
	var findMime func(parts []*gmail.MessagePart)
	findMime = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.AttachmentId == attachmentID {
				mimeType = part.MimeType
				return
			}
			if len(part.Parts) > 0 {
				findMime(part.Parts)
			}
		}
	}
	findMime(msg.Payload.Parts)

	part, err := srv.Users.Messages.Attachments.Get("me", emailID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, "", mailerr.FromGmail("gmail.Attachment", err)
	}

	data, err := base64.URLEncoding.DecodeString(part.Data)
	if err != nil {
		return nil, "", fmt.Errorf("unable to decode attachment data: %w", err)
	}
	return data, mimeType, nil
}

// Watch registers the inbox on a Pub/Sub topic. Gmail allows a single watch
// per user, so any existing one is stopped first.
func (s *Service) Watch(ctx context.Context, acct provider.Account, topicName string) (uint64, error) {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return 0, err
	}

	_ = srv.Users.Stop("me").Context(ctx).Do()

	resp, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, mailerr.FromGmail("gmail.Watch", err)
	}

	log.Printf("[Gmail] Watch started for %s, expires %d", acct.Email, resp.Expiration)
	return resp.HistoryId, nil
}

func (s *Service) StopWatch(ctx context.Context, acct provider.Account) error {
	srv, err := s.api(ctx, acct)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Context(ctx).Do(); err != nil {
		return mailerr.FromGmail("gmail.StopWatch", err)
	}
	return nil
}

