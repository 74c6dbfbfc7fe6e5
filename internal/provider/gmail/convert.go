package gmail

import (
	"encoding/base64"
	"strings"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/pkg/textutil"

	"google.golang.org/api/gmail/v1"
)

func convertMessage(msg *gmail.Message) *emaildomain.Email {
	from := header(msg.Payload.Headers, "From")
	fromName, fromAddr := splitAddress(from)

	var to []string
	if h := header(msg.Payload.Headers, "To"); h != "" {
		for _, addr := range strings.Split(h, ",") {
			to = append(to, strings.TrimSpace(addr))
		}
	}

	body, isHTML := extractBody(msg.Payload)

	return &emaildomain.Email{
		ID:          msg.Id,
		ThreadID:    msg.ThreadId,
		Subject:     header(msg.Payload.Headers, "Subject"),
		From:        fromAddr,
		FromName:    fromName,
		To:          to,
		Preview:     textutil.Preview(body, 200),
		Body:        body,
		IsHTML:      isHTML,
		ReceivedAt:  time.Unix(msg.InternalDate/1000, 0),
		IsRead:      !hasLabel(msg.LabelIds, "UNREAD"),
		IsStarred:   hasLabel(msg.LabelIds, "STARRED"),
		MailboxID:   primaryMailbox(msg.LabelIds),
		Labels:      msg.LabelIds,
		Attachments: extractAttachments(msg.Payload),
	}
}

// splitAddress parses "Name <addr@host>" into its parts. A bare address is
// used for both.
func splitAddress(from string) (name, addr string) {
	if idx := strings.Index(from, "<"); idx >= 0 {
		name = strings.Trim(strings.TrimSpace(from[:idx]), `"`)
		addr = strings.Trim(strings.TrimSpace(from[idx:]), "<>")
		if name == "" {
			name = addr
		}
		return name, addr
	}
	return from, from
}

func header(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME tree preferring text/html over text/plain.
func extractBody(payload *gmail.MessagePart) (string, bool) {
	if payload.Body != nil && payload.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			return string(data), payload.MimeType == "text/html"
		}
	}

	var htmlBody, plainBody string
	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" {
				data, err := base64.URLEncoding.DecodeString(part.Body.Data)
				if err == nil {
					switch part.MimeType {
					case "text/html":
						htmlBody = string(data)
					case "text/plain":
						plainBody = string(data)
					}
				}
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)

	if htmlBody != "" {
		return htmlBody, true
	}
	return plainBody, false
}

func extractAttachments(payload *gmail.MessagePart) []emaildomain.Attachment {
	var attachments []emaildomain.Attachment

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
				attachments = append(attachments, emaildomain.Attachment{
					ID:        part.Body.AttachmentId,
					Filename:  part.Filename,
					MimeType:  part.MimeType,
					Size:      part.Body.Size,
					ContentID: strings.Trim(header(part.Headers, "Content-ID"), "<>"),
				})
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)
	return attachments
}

func hasLabel(labels []string, labelID string) bool {
	for _, l := range labels {
		if l == labelID {
			return true
		}
	}
	return false
}

// primaryMailbox picks the mailbox an email is displayed under when it
// carries several system labels.
func primaryMailbox(labels []string) string {
	for _, p := range []string{"INBOX", "SENT", "DRAFT", "SPAM", "TRASH"} {
		if hasLabel(labels, p) {
			return p
		}
	}
	if len(labels) > 0 {
		return labels[0]
	}
	return "INBOX"
}
