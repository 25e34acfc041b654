package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-mail/mail/v2"

	"github.com/kevinaaaquil/circulation/circulation"
)

// SMTPMailer delivers overdue notices over SMTP.
type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	d := mail.NewDialer(host, port, user, password)
	if user != "" {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.Timeout = 10 * time.Second
	return &SMTPMailer{dialer: d, from: from}
}

// SendNotice mails one overdue reminder. The dialer has its own timeout; ctx
// only short-circuits a cancelled batch.
func (m *SMTPMailer) SendNotice(ctx context.Context, n circulation.OverdueNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.Borrower.Email)
	msg.SetHeader("Subject", "Overdue: "+n.Book.Title)
	msg.SetBody("text/plain", noticeBody(n))
	return m.dialer.DialAndSend(msg)
}

func noticeBody(n circulation.OverdueNotice) string {
	name := n.Borrower.Name
	if name == "" {
		name = n.Borrower.Email
	}
	return fmt.Sprintf(
		"Hello %s,\n\n%q was due on %s and is %d day(s) overdue.\nThe fine so far is %s.\n\nPlease return it to the circulation desk.\n",
		name, n.Book.Title, n.DueDate.UTC().Format("2 Jan 2006"), n.DaysOverdue, n.AccruedFine.StringFixed(2),
	)
}
