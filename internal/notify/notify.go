// Package notify renders and delivers notifications to subjects.
package notify

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"conference/internal/mail"
	"conference/internal/queue"
)

// MessageType tags notifications on the queue.
const MessageType = "notification"

// TemplateWelcome is sent when a subject is accepted.
const TemplateWelcome = "welcome"

// Recipient is who a notification is addressed to.
type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Notification is a templated message for one recipient.
type Notification struct {
	Template  string            `json:"template"`
	Data      map[string]string `json:"data"`
	Recipient Recipient         `json:"recipient"`
}

// Dispatcher hands a notification to a delivery channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, n Notification) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, n Notification) error { return f(ctx, n) }

// MailDispatcher renders and mails notifications synchronously.
type MailDispatcher struct {
	renderer *Renderer
	mailer   mail.Mailer
}

// NewMailDispatcher renders with r and sends with m.
func NewMailDispatcher(r *Renderer, m mail.Mailer) *MailDispatcher {
	return &MailDispatcher{renderer: r, mailer: m}
}

// Dispatch renders n and sends it before returning.
func (d *MailDispatcher) Dispatch(ctx context.Context, n Notification) error {
	msg, err := d.renderer.Render(n)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, msg)
}

// QueueDispatcher publishes notifications for the worker to deliver.
type QueueDispatcher struct {
	q queue.Queue
}

// NewQueueDispatcher publishes to q.
func NewQueueDispatcher(q queue.Queue) *QueueDispatcher {
	return &QueueDispatcher{q: q}
}

// Dispatch publishes n as a notification message.
func (d *QueueDispatcher) Dispatch(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "notify: encode")
	}
	return errors.Wrap(d.q.Publish(ctx, queue.Message{Type: MessageType, Body: body}), "notify: publish")
}

// Decode extracts the notification carried by a queue message.
func Decode(msg queue.Message) (Notification, error) {
	var n Notification
	if msg.Type != MessageType {
		return n, errors.Errorf("notify: unexpected message type %q", msg.Type)
	}
	err := json.Unmarshal(msg.Body, &n)
	return n, errors.Wrap(err, "notify: decode")
}

// Multi dispatches to every member and returns the first error.
type Multi []Dispatcher

// Dispatch sends n to every member, even after one fails.
func (m Multi) Dispatch(ctx context.Context, n Notification) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EventNotification is the websocket event notifications are relayed as.
const EventNotification = "receiveNotification"

// Broadcaster sends an event to every connected client.
type Broadcaster interface {
	Broadcast(event string, data any) error
}

// Broadcast relays notifications to live websocket clients.
type Broadcast struct {
	b Broadcaster
}

// NewBroadcast relays through b.
func NewBroadcast(b Broadcaster) *Broadcast { return &Broadcast{b: b} }

// Dispatch broadcasts n as a receiveNotification event.
func (d *Broadcast) Dispatch(_ context.Context, n Notification) error {
	return d.b.Broadcast(EventNotification, map[string]any{
		"template": n.Template,
		"name":     n.Recipient.Name,
		"data":     n.Data,
	})
}
