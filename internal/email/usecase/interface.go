package usecase

import (
	"context"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
)

// EmailService is the engine surface the HTTP layer consumes.
type EmailService interface {
	Mailboxes(ctx context.Context, userID string) ([]*emaildomain.Mailbox, error)
	EmailsByMailbox(ctx context.Context, userID, mailboxID string, limit, offset int, query string) ([]*emaildomain.Email, int, error)
	EmailByID(ctx context.Context, userID, emailID string) (*emaildomain.Email, error)
	MarkRead(ctx context.Context, userID, emailID string) error
	MarkUnread(ctx context.Context, userID, emailID string) error
	ToggleStar(ctx context.Context, userID, emailID string) error
	TrashEmail(ctx context.Context, userID, emailID string) error
	ArchiveEmail(ctx context.Context, userID, emailID string) error
	PermanentDeleteEmail(ctx context.Context, userID, emailID string) error
	SendEmail(ctx context.Context, userID string, msg *emaildomain.OutgoingMessage) error
	GetAttachment(ctx context.Context, userID, emailID, attachmentID string) ([]byte, string, error)
	WatchInbox(ctx context.Context, userID string) (uint64, error)

	Columns(userID string) ([]*emaildomain.Column, error)
	CreateColumn(userID string, column *emaildomain.Column) error
	UpdateColumn(userID, slug string, changes *emaildomain.Column) error
	DeleteColumn(userID, slug string) error
	ReorderColumns(userID string, orders map[string]int) error
	EmailsInColumn(ctx context.Context, userID, slug string, limit, offset int, kanban bool) ([]*emaildomain.Email, int, error)
	MoveEmail(ctx context.Context, userID, emailID, targetSlug, sourceHint string) error

	SnoozeEmail(userID, emailID string, wakeAt time.Time) error
	UnsnoozeEmail(userID, emailID string) (string, error)

	FuzzySearch(ctx context.Context, userID, query string, limit, offset int) ([]*emaildomain.Email, int, error)
	SemanticSearch(ctx context.Context, userID, query string, limit, offset int) ([]*emaildomain.Email, int, error)
	GetSearchSuggestions(userID, query string, limit int) ([]string, error)

	SyncAllEmailsForUser(userID string)
}

var _ EmailService = (*Service)(nil)
