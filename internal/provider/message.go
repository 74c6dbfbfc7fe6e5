package provider

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
)

// BuildMessage assembles an RFC 822 multipart/mixed message. Subject and
// display names are RFC 2047 encoded so non-ASCII text survives transport.
func BuildMessage(fromName, fromEmail string, msg *emaildomain.OutgoingMessage) []byte {
	var buf bytes.Buffer
	const boundary = "mailboard_mixed_boundary"

	if fromEmail != "" {
		if fromName != "" {
			buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", encodeWord(fromName), fromEmail))
		} else {
			buf.WriteString(fmt.Sprintf("From: %s\r\n", fromEmail))
		}
	}
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	if len(msg.Cc) > 0 {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(msg.Cc, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", encodeWord(msg.Subject)))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary))

	contentType := "text/plain"
	if msg.IsHTML {
		contentType = "text/html"
	}
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType))
	buf.WriteString(msg.Body)
	buf.WriteString("\r\n")

	for _, att := range msg.Attachments {
		encoded := base64.StdEncoding.EncodeToString(att.Content)

		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString(fmt.Sprintf("Content-Type: %s; name=%q\r\n", att.MimeType, att.Filename))
		buf.WriteString("Content-Transfer-Encoding: base64\r\n")
		buf.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", att.Filename))

		// RFC 2045 line length limit.
		for i := 0; i < len(encoded); i += 76 {
			end := i + 76
			if end > len(encoded) {
				end = len(encoded)
			}
			buf.WriteString(encoded[i:end] + "\r\n")
		}
	}

	buf.WriteString(fmt.Sprintf("--%s--", boundary))
	return buf.Bytes()
}

func encodeWord(s string) string {
	return fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(s)))
}
