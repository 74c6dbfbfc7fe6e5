package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in         string
		name, addr string
	}{
		{"Alice Smith <alice@example.com>", "Alice Smith", "alice@example.com"},
		{`"Billing" <billing@shop.io>`, "Billing", "billing@shop.io"},
		{"bare@example.com", "bare@example.com", "bare@example.com"},
		{"<noname@example.com>", "noname@example.com", "noname@example.com"},
	}
	for _, tt := range tests {
		name, addr := splitAddress(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.addr, addr, tt.in)
	}
}

func TestExtractBodyPrefersHTML(t *testing.T) {
	enc := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("plain version")}},
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<b>html version</b>")}},
		},
	}

	body, isHTML := extractBody(payload)
	assert.True(t, isHTML)
	assert.Equal(t, "<b>html version</b>", body)
}

func TestExtractBodyPlainFallback(t *testing.T) {
	enc := base64.URLEncoding.EncodeToString([]byte("just text"))
	payload := &gmailapi.MessagePart{
		MimeType: "text/plain",
		Body:     &gmailapi.MessagePartBody{Data: enc},
	}

	body, isHTML := extractBody(payload)
	assert.False(t, isHTML)
	assert.Equal(t, "just text", body)
}

func TestConvertMessage(t *testing.T) {
	enc := base64.URLEncoding.EncodeToString([]byte("<p>see attached</p>"))
	msg := &gmailapi.Message{
		Id:           "m1",
		ThreadId:     "t1",
		InternalDate: 1700000000000,
		LabelIds:     []string{"UNREAD", "INBOX"},
		Payload: &gmailapi.MessagePart{
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Invoice"},
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "To", Value: "bob@example.com, carol@example.com"},
			},
			MimeType: "multipart/mixed",
			Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc}},
				{
					Filename: "invoice.pdf",
					MimeType: "application/pdf",
					Body:     &gmailapi.MessagePartBody{AttachmentId: "att1", Size: 1234},
				},
			},
		},
	}

	email := convertMessage(msg)
	require.NotNil(t, email)
	assert.Equal(t, "m1", email.ID)
	assert.Equal(t, "Invoice", email.Subject)
	assert.Equal(t, "alice@example.com", email.From)
	assert.Equal(t, "Alice", email.FromName)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, email.To)
	assert.False(t, email.IsRead)
	assert.Equal(t, "INBOX", email.MailboxID)
	assert.Equal(t, "see attached", email.Preview)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "att1", email.Attachments[0].ID)
	assert.Equal(t, int64(1234), email.Attachments[0].Size)
}

func TestPrimaryMailbox(t *testing.T) {
	assert.Equal(t, "INBOX", primaryMailbox([]string{"STARRED", "INBOX"}))
	assert.Equal(t, "SENT", primaryMailbox([]string{"SENT"}))
	assert.Equal(t, "Label_7", primaryMailbox([]string{"Label_7"}))
	assert.Equal(t, "INBOX", primaryMailbox(nil))
}
