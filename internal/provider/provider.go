// Package provider defines the capability surface a mail backend must offer.
// Callers resolve an Account once per operation and hand it to whichever
// implementation the account's Kind selects; nothing above this package
// branches on the provider again.
package provider

import (
	"context"
	"fmt"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"

	"golang.org/x/oauth2"
)

// Account kinds.
const (
	KindGoogle = "google"
	KindIMAP   = "imap"
)

// TokenUpdateFunc persists a refreshed OAuth token. Providers call it at most
// once per operation, after the token source rotated credentials.
type TokenUpdateFunc func(token *oauth2.Token) error

// Account carries everything a provider needs for one operation. Secrets are
// already decrypted; the resolver is the only place that touches ciphertext.
type Account struct {
	UserID string
	Kind   string
	Email  string
	Name   string

	// OAuth credentials (KindGoogle).
	AccessToken    string
	RefreshToken   string
	TokenExpiry    time.Time
	OnTokenRefresh TokenUpdateFunc

	// IMAP credentials (KindIMAP).
	IMAPHost     string
	IMAPPort     int
	IMAPPassword string
}

// Provider is the full mail capability set. Every method is one round trip
// against the remote account identified by acct.
type Provider interface {
	Mailboxes(ctx context.Context, acct Account) ([]*emaildomain.Mailbox, error)

	// Emails lists a mailbox newest-first. query is a provider-side
	// pre-filter hint and may be ignored; total is the provider's count
	// for the mailbox, which can be an estimate.
	Emails(ctx context.Context, acct Account, mailboxID string, limit, offset int, query string) ([]*emaildomain.Email, int, error)

	EmailByID(ctx context.Context, acct Account, emailID string) (*emaildomain.Email, error)

	SetRead(ctx context.Context, acct Account, emailID string, read bool) error
	SetStarred(ctx context.Context, acct Account, emailID string, starred bool) error

	// ModifyLabels adds and removes provider labels in one call. Providers
	// without free-form labels map what they can and ignore the rest.
	ModifyLabels(ctx context.Context, acct Account, emailID string, add, remove []string) error

	Trash(ctx context.Context, acct Account, emailID string) error
	Archive(ctx context.Context, acct Account, emailID string) error
	Delete(ctx context.Context, acct Account, emailID string) error

	Send(ctx context.Context, acct Account, msg *emaildomain.OutgoingMessage) error

	// Attachment returns the raw bytes and mime type of one attachment.
	Attachment(ctx context.Context, acct Account, emailID, attachmentID string) ([]byte, string, error)
}

// Watcher is implemented by providers that can push change notifications.
type Watcher interface {
	// Watch registers for notifications on the account's inbox and returns
	// the history ID the watch starts from.
	Watch(ctx context.Context, acct Account, topicName string) (uint64, error)
	StopWatch(ctx context.Context, acct Account) error
}

// Registry routes an account kind to its provider.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(kind string, p Provider) {
	r.providers[kind] = p
}

func (r *Registry) Get(kind string) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for account kind %q", kind)
	}
	return p, nil
}
