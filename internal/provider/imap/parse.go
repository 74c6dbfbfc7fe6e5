package imap

import (
	"fmt"
	"io"
	"strings"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/pkg/textutil"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"
)

// parseMessage converts one fetched message into the portable email shape.
// Envelope data covers the headers; the raw body section is walked with
// go-message, which handles transfer encodings and charsets.
func parseMessage(mailbox string, msg *goimap.Message, section *goimap.BodySectionName) (*emaildomain.Email, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, fmt.Errorf("message without envelope")
	}

	email := &emaildomain.Email{
		ID:         MakeID(mailbox, msg.Uid),
		Subject:    msg.Envelope.Subject,
		ReceivedAt: receivedAt(msg.Envelope),
		MailboxID:  mailbox,
		IsRead:     hasFlag(msg.Flags, goimap.SeenFlag),
		IsStarred:  hasFlag(msg.Flags, goimap.FlaggedFlag),
	}

	if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
		email.From = msg.Envelope.From[0].Address()
		email.FromName = msg.Envelope.From[0].PersonalName
		if email.FromName == "" {
			email.FromName = email.From
		}
	}
	for _, addr := range msg.Envelope.To {
		if addr != nil {
			email.To = append(email.To, addr.Address())
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		return email, nil
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return email, nil
	}

	var plainBody, htmlBody string
	attachIdx := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/html"):
				htmlBody = string(data)
			case strings.HasPrefix(contentType, "text/plain"):
				plainBody = string(data)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			size, _ := io.Copy(io.Discard, part.Body)
			email.Attachments = append(email.Attachments, emaildomain.Attachment{
				ID:       attachmentID(attachIdx),
				Filename: filename,
				MimeType: contentType,
				Size:     size,
			})
			attachIdx++
		}
	}

	if htmlBody != "" {
		email.Body = htmlBody
		email.IsHTML = true
	} else {
		email.Body = plainBody
	}
	email.Preview = textutil.Preview(email.Body, 200)
	return email, nil
}

// extractAttachment re-walks the message body and returns the attachment the
// ID points at.
func extractAttachment(msg *goimap.Message, section *goimap.BodySectionName, id string) ([]byte, string, error) {
	body := msg.GetBody(section)
	if body == nil {
		return nil, "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return nil, "", err
	}

	attachIdx := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		if attachmentID(attachIdx) == id {
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, "", err
			}
			return data, contentType, nil
		}
		attachIdx++
	}
	return nil, "", fmt.Errorf("attachment %s not found", id)
}

// Attachment IDs are positional. IMAP has no stable part identifier short of
// the full body structure path, and positions are stable for a stored message.
func attachmentID(idx int) string {
	return fmt.Sprintf("att-%d", idx)
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
