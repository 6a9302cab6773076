package delivery

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/careops/reportd/internal/report"
)

// SMTPTransport delivers reports as HTML email through a gomail
// dialer, one message per recipient.
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPTransport(host string, port int, from, password string) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(host, port, from, password),
		from:   from,
	}
}

func (t *SMTPTransport) Deliver(address string, payload *report.Payload) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", payload.Subject)
	m.SetBody("text/html", string(payload.HTML))

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %v", address, err)
	}
	return nil
}
