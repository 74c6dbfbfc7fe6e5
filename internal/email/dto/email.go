package dto

import (
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
)

type MailboxesResponse struct {
	Mailboxes []*emaildomain.Mailbox `json:"mailboxes"`
}

type EmailsResponse struct {
	Emails []*emaildomain.Email `json:"emails"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
	Total  int                  `json:"total"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type MoveEmailRequest struct {
	Column string `json:"column" binding:"required"`
	// SourceColumn is the board column the UI dragged the email out of,
	// used only when no mapping row exists yet.
	SourceColumn string `json:"source_column"`
}

type SnoozeRequest struct {
	SnoozeUntil time.Time `json:"snooze_until" binding:"required"`
}

type SemanticSearchRequest struct {
	Query  string `json:"query" binding:"required"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type ColumnRequest struct {
	Name           string   `json:"name" binding:"required"`
	Slug           string   `json:"slug"`
	Order          int      `json:"order"`
	LabelID        string   `json:"label_id"`
	RemoveLabelIDs []string `json:"remove_label_ids"`
}

type ColumnOrdersRequest struct {
	Orders map[string]int `json:"orders" binding:"required"`
}

type QueueSummariesRequest struct {
	EmailIDs []string `json:"email_ids" binding:"required"`
}
