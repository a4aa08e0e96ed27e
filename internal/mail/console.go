package mail

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"
)

// Console prints messages instead of sending them and keeps a copy of each.
type Console struct {
	from mail.Address
	out  io.Writer

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*Console)(nil)

// NewConsole writes messages to out (stdout when nil).
func NewConsole(from mail.Address, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{from: from, out: out}
}

// NewConsoleMock returns a silent console mailer for tests.
func NewConsoleMock() *Console {
	return NewConsole(mail.Address{Name: "Test", Address: "test@localhost"}, io.Discard)
}

func (c *Console) Send(_ context.Context, msg *Message) error {
	if err := msg.Check(); err != nil {
		return err
	}
	body := new(strings.Builder)
	fmt.Fprintf(body, "From: %s\r\n", c.from.String())
	fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(body, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))

	w := multipart.NewWriter(body)
	fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())
	if msg.Text != "" {
		part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
		if err != nil {
			return fmt.Errorf("mail: text part: %w", err)
		}
		fmt.Fprintf(part, "%s\r\n", msg.Text)
	}
	if msg.HTML != "" {
		part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
		if err != nil {
			return fmt.Errorf("mail: html part: %w", err)
		}
		fmt.Fprintf(part, "%s\r\n", msg.HTML)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: close multipart: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, body.String()); err != nil {
		return fmt.Errorf("mail: console write: %w", err)
	}
	c.sent = append(c.sent, *msg)
	return nil
}

// Sent returns a copy of every message sent so far.
func (c *Console) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}
