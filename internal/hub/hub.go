// Package hub relays chat messages and notifications to websocket clients.
//
// Frames are JSON objects {"event": ..., "data": ...}. Clients send sendMessage and
// sendNotification; the hub answers with receiveMessage, receiveNotification or error.
// Only connections whose upgrade request passed the notify check may send
// sendNotification. Delivery is best effort: a client whose send buffer is full is
// disconnected.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"conference/internal/logger"
	"conference/internal/metrics"
)

const (
	EventSendMessage         = "sendMessage"
	EventSendNotification    = "sendNotification"
	EventReceiveMessage      = "receiveMessage"
	EventReceiveNotification = "receiveNotification"
	EventError               = "error"

	maxTextLen   = 2000
	maxFrameSize = 64 << 10
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pingPeriod   = 60 * time.Second
	pongWait     = pingPeriod + 10*time.Second
)

var ErrClosed = errors.New("hub: closed")

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type chatRequest struct {
	SubjectID string `json:"subject_id"`
	Text      string `json:"text"`
}

type conn struct {
	wc        *websocket.Conn
	send      chan []byte
	canNotify bool
}

// Hub tracks connected clients.
type Hub struct {
	chat      ChatStore
	log       logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	upgr      websocket.Upgrader
	canNotify func(*http.Request) bool

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithOrigins restricts upgrades to the given Origin values. "*" allows any.
func WithOrigins(origins []string) Option {
	return func(h *Hub) {
		if slices.Contains(origins, "*") {
			h.upgr.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		h.upgr.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.ContainsFunc(origins, func(o string) bool {
				return strings.EqualFold(o, origin)
			})
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option { return func(h *Hub) { h.log = l } }

// WithMetrics counts open connections on m.
func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }

// WithClock sets the time source for chat message timestamps.
func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

// WithNotifyAuth decides from the upgrade request whether a connection may broadcast
// notifications. Without it no client may.
func WithNotifyAuth(allow func(*http.Request) bool) Option {
	return func(h *Hub) { h.canNotify = allow }
}

// New creates a hub persisting chat messages to chat.
func New(chat ChatStore, opts ...Option) *Hub {
	h := &Hub{
		chat:  chat,
		log:   logger.Discard(),
		now:   time.Now,
		conns: make(map[*conn]struct{}),
		upgr:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends event to every connected client.
func (h *Hub) Broadcast(event string, data any) error {
	b, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return errors.Wrap(err, "hub: encode")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for c := range h.conns {
		select {
		case c.send <- b:
		default:
			h.log.Warn("dropping slow websocket client", "remote", c.wc.RemoteAddr())
			h.removeLocked(c)
		}
	}
	return nil
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.conns {
		h.removeLocked(c)
	}
}

func (h *Hub) add(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	h.metrics.ConnOpened()
	return true
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked unregisters c and closes its send channel, which ends its writer.
func (h *Hub) removeLocked(c *conn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	close(c.send)
	h.metrics.ConnClosed()
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wc, err := h.upgr.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &conn{
		wc:        wc,
		send:      make(chan []byte, sendBuffer),
		canNotify: h.canNotify != nil && h.canNotify(r),
	}
	if !h.add(c) {
		_ = wc.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeTimeout))
		_ = wc.Close()
		return
	}
	go h.write(c)
	if err := h.read(r.Context(), c); err != nil {
		h.log.Warn("websocket read failed", "err", err)
	}
	h.remove(c)
}

func (h *Hub) read(ctx context.Context, c *conn) error {
	c.wc.SetReadLimit(maxFrameSize)
	_ = c.wc.SetReadDeadline(time.Now().Add(pongWait))
	c.wc.SetPongHandler(func(string) error {
		return c.wc.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		op, b, err := c.wc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return err
			}
			return nil
		}
		if op != websocket.TextMessage {
			h.reply(c, EventError, map[string]string{"message": "text frames only"})
			continue
		}
		var in inbound
		if err := json.Unmarshal(b, &in); err != nil {
			h.reply(c, EventError, map[string]string{"message": "malformed frame"})
			continue
		}
		h.handle(ctx, c, in)
	}
}

func (h *Hub) handle(ctx context.Context, c *conn, in inbound) {
	switch in.Event {
	case EventSendMessage:
		msg, err := h.saveChat(ctx, in.Data)
		if err != nil {
			h.reply(c, EventError, map[string]string{"message": err.Error()})
			return
		}
		if err := h.Broadcast(EventReceiveMessage, msg); err != nil {
			h.log.Warn("broadcast chat message failed", "err", err)
		}
	case EventSendNotification:
		if !c.canNotify {
			h.reply(c, EventError, map[string]string{"message": "sendNotification requires a staff token"})
			return
		}
		if err := h.Broadcast(EventReceiveNotification, in.Data); err != nil {
			h.log.Warn("broadcast notification failed", "err", err)
		}
	default:
		h.reply(c, EventError, map[string]string{"message": "unknown event " + in.Event})
	}
}

func (h *Hub) saveChat(ctx context.Context, raw json.RawMessage) (*ChatMessage, error) {
	var req chatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.New("malformed message")
	}
	id, err := uuid.Parse(req.SubjectID)
	if err != nil {
		return nil, errors.New("subject_id must be a uuid")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || len(text) > maxTextLen {
		return nil, errors.Errorf("text must be 1-%d characters", maxTextLen)
	}
	msg := &ChatMessage{ID: uuid.New(), SubjectID: id, Text: text, CreatedAt: h.now().UTC()}
	if err := h.chat.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, ErrUnknownSubject) {
			return nil, err
		}
		h.log.Error("save chat message failed", "err", err)
		return nil, errors.New("message not saved")
	}
	return msg, nil
}

// reply queues an event for one client.
func (h *Hub) reply(c *conn, event string, data any) {
	b, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	select {
	case c.send <- b:
	default:
		h.removeLocked(c)
	}
}

func (h *Hub) write(c *conn) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	defer c.wc.Close()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.wc.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.wc.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-t.C:
			_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
