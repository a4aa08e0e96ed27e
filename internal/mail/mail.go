// Package mail sends rendered email messages.
package mail

import (
	"context"
	"errors"
	"io"
	"net/mail"
	"strings"
)

var (
	ErrNoRecipients = errors.New("mail: message has no recipients")
	ErrNoContent    = errors.New("mail: message has no content")
)

// Message is a rendered email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// Check reports whether msg can be sent.
func (m *Message) Check() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if m.Text == "" && m.HTML == "" {
		return ErrNoContent
	}
	return nil
}

// Mailer delivers one message. Implementations block until the provider answered.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// New returns the SendGrid mailer for backend "sendgrid" when a key is set and a
// Console writing to out otherwise.
func New(backend, key string, from mail.Address, appName string, out io.Writer) Mailer {
	if strings.EqualFold(backend, "sendgrid") && key != "" {
		return NewSendGrid(key, from, appName)
	}
	return NewConsole(from, out)
}

func joinAddresses(addrs []mail.Address) string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return strings.Join(out, ", ")
}
