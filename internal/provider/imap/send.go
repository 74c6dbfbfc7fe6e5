package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"
	"mailboard-backend/internal/provider"
	"mailboard-backend/pkg/mailerr"
)

const smtpSubmissionPort = 587

// Send delivers via the account's SMTP submission endpoint. The SMTP host is
// derived from the IMAP host by convention (imap.example.com ->
// smtp.example.com); providers that deviate need an explicit setting later.
func (s *Service) Send(ctx context.Context, acct provider.Account, msg *emaildomain.OutgoingMessage) error {
	host := smtpHost(acct.IMAPHost)
	addr := fmt.Sprintf("%s:%d", host, smtpSubmissionPort)

	c, err := smtp.Dial(addr)
	if err != nil {
		return mailerr.Errorf(mailerr.KindTransient, "imap.Send", "dial %s failed: %v", addr, err)
	}
	defer c.Close()

	if err := c.Hello(emailDomain(acct.Email)); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}
	if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}

	auth := smtp.PlainAuth("", acct.Email, acct.IMAPPassword, host)
	if err := c.Auth(auth); err != nil {
		return mailerr.E(mailerr.KindUnauthenticated, "imap.Send", err)
	}

	if err := c.Mail(acct.Email); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}
	for _, rcpt := range append(append([]string{}, msg.To...), msg.Cc...) {
		if err := c.Rcpt(rcpt); err != nil {
			return mailerr.Errorf(mailerr.KindTransient, "imap.Send", "rcpt %s rejected: %v", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}
	if _, err := w.Write(provider.BuildMessage(acct.Name, acct.Email, msg)); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}
	if err := w.Close(); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}

	if err := c.Quit(); err != nil {
		return mailerr.E(mailerr.KindTransient, "imap.Send", err)
	}

	s.appendToSent(acct, msg)
	return nil
}

// appendToSent stores a copy in the Sent mailbox. Best effort: the message
// already left, a miss here only affects the Sent view.
func (s *Service) appendToSent(acct provider.Account, msg *emaildomain.OutgoingMessage) {
	c, err := s.connect(acct)
	if err != nil {
		return
	}
	defer c.Logout()

	for _, name := range []string{"Sent", "Sent Items", "Sent Mail", "[Gmail]/Sent Mail"} {
		if _, err := c.Status(name, nil); err == nil {
			raw := provider.BuildMessage(acct.Name, acct.Email, msg)
			_ = c.Append(name, nil, time.Now(), bytes.NewReader(raw))
			return
		}
	}
}

func smtpHost(imapHost string) string {
	if strings.HasPrefix(imapHost, "imap.") {
		return "smtp" + imapHost[4:]
	}
	return imapHost
}

func emailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return "localhost"
}
