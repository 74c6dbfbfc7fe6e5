package domain

import "time"

// Email is the provider-neutral message shape the rest of the engine works
// with. Both the Gmail and IMAP providers convert into it.
type Email struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id,omitempty"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	FromName    string       `json:"from_name"`
	To          []string     `json:"to"`
	Preview     string       `json:"preview"`
	Body        string       `json:"body"`
	IsHTML      bool         `json:"is_html"`
	ReceivedAt  time.Time    `json:"received_at"`
	IsRead      bool         `json:"is_read"`
	IsStarred   bool         `json:"is_starred"`
	MailboxID   string       `json:"mailbox_id"`
	Labels      []string     `json:"labels,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Column the board engine resolved for this email. Filled in by the
	// usecase layer, never by providers.
	Column string `json:"column,omitempty"`

	// SnoozedUntil is set when the email currently sits in the snoozed
	// column.
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
}

type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	// ContentID is set for inline parts referenced from HTML bodies.
	ContentID string `json:"content_id,omitempty"`
}

// Mailbox is a provider folder (Gmail label or IMAP mailbox).
type Mailbox struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"` // system or user
	UnreadCount int    `json:"unread_count"`
	TotalCount  int    `json:"total_count"`
}

// OutgoingMessage is a message to be sent on behalf of the account owner.
type OutgoingMessage struct {
	To          []string
	Cc          []string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []OutgoingAttachment
}

type OutgoingAttachment struct {
	Filename string
	MimeType string
	Content  []byte
}
