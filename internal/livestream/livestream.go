// Package livestream stores the conference's live stream link.
package livestream

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("livestream: no stream set")
	ErrInvalidURL = errors.New("livestream: only YouTube links are accepted")
)

var youtubeURL = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)

// ValidURL reports whether u is a YouTube link.
func ValidURL(u string) bool {
	return youtubeURL.MatchString(strings.TrimSpace(u))
}

// Stream is one published stream link.
type Stream struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps published streams. Latest returns the most recently created one.
type Store interface {
	Add(ctx context.Context, s *Stream) error
	Latest(ctx context.Context) (*Stream, error)
}

// Service publishes and reads the current stream.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService stores streams in store and stamps them with now.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Publish validates and stores a new stream link.
func (s *Service) Publish(ctx context.Context, url string) (*Stream, error) {
	url = strings.TrimSpace(url)
	if !ValidURL(url) {
		return nil, ErrInvalidURL
	}
	st := &Stream{ID: uuid.New(), URL: url, CreatedAt: s.now().UTC()}
	if err := s.store.Add(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Current returns the latest stream or ErrNotFound.
func (s *Service) Current(ctx context.Context) (*Stream, error) {
	return s.store.Latest(ctx)
}

// MemoryStore keeps streams in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	streams []Stream
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Add(_ context.Context, s *Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams = append(m.streams, *s)
	return nil
}

func (m *MemoryStore) Latest(_ context.Context) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil, ErrNotFound
	}
	latest := m.streams[0]
	for _, s := range m.streams[1:] {
		if !s.CreatedAt.Before(latest.CreatedAt) {
			latest = s
		}
	}
	return &latest, nil
}

// PostgresStore keeps streams in live_streams.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (p *PostgresStore) Add(ctx context.Context, s *Stream) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO live_streams (id, url, created_at) VALUES ($1, $2, $3)`,
		s.ID, s.URL, s.CreatedAt)
	return errors.Wrap(err, "livestream: insert")
}

func (p *PostgresStore) Latest(ctx context.Context) (*Stream, error) {
	var s Stream
	err := p.db.QueryRowContext(ctx, `
		SELECT id, url, created_at FROM live_streams ORDER BY created_at DESC LIMIT 1
	`).Scan(&s.ID, &s.URL, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "livestream: latest")
	}
	return &s, nil
}
