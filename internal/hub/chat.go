package hub

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// ErrUnknownSubject is returned when a chat message names no registered subject.
var ErrUnknownSubject = errors.New("hub: unknown subject")

// ChatMessage is one persisted chat line.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatStore persists chat messages.
type ChatStore interface {
	SaveMessage(ctx context.Context, m *ChatMessage) error
	Recent(ctx context.Context, limit int) ([]ChatMessage, error)
}

// MemoryChat keeps messages in process memory.
type MemoryChat struct {
	mu   sync.Mutex
	msgs []ChatMessage
}

// NewMemoryChat returns an empty in-memory store.
func NewMemoryChat() *MemoryChat { return &MemoryChat{} }

// SaveMessage appends a copy of msg.
func (m *MemoryChat) SaveMessage(_ context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, *msg)
	return nil
}

// Recent returns up to limit messages, oldest first.
func (m *MemoryChat) Recent(_ context.Context, limit int) ([]ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]ChatMessage(nil), m.msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// PostgresChat stores messages in chat_messages.
type PostgresChat struct {
	db *sql.DB
}

// NewPostgresChat creates a store over db.
func NewPostgresChat(db *sql.DB) *PostgresChat { return &PostgresChat{db: db} }

// SaveMessage inserts m. A subject_id with no subject row yields ErrUnknownSubject.
func (p *PostgresChat) SaveMessage(ctx context.Context, m *ChatMessage) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, subject_id, body, created_at) VALUES ($1, $2, $3, $4)
	`, m.ID, m.SubjectID, m.Text, m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownSubject
		}
		return errors.Wrap(err, "hub: save message")
	}
	return nil
}

// Recent returns up to limit messages, oldest first.
func (p *PostgresChat) Recent(ctx context.Context, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, subject_id, body, created_at FROM (
			SELECT id, subject_id, body, created_at FROM chat_messages
			ORDER BY created_at DESC LIMIT $1
		) recent ORDER BY created_at
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "hub: recent messages")
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SubjectID, &m.Text, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "hub: scan message")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "hub: recent messages")
}
