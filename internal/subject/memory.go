package subject

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps subjects in process memory. It enforces the same per-day
// uniqueness as the Postgres schema so it can stand in for it in tests and dev runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	subjects map[uuid.UUID]*Subject
	seq      int64
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{subjects: make(map[uuid.UUID]*Subject)}
}

// Create stores a copy of s and assigns the next unique number.
func (r *MemoryRepository) Create(_ context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.subjects {
		if strings.EqualFold(other.Email, s.Email) {
			return ErrDuplicateEmail
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.seq++
	s.UniqueNumber = r.seq
	r.subjects[s.ID] = s.Clone()
	return nil
}

// Load returns a copy of the stored subject.
func (r *MemoryRepository) Load(_ context.Context, id uuid.UUID) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subjects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save merges s into the stored record the way the Postgres store does.
func (r *MemoryRepository) Save(_ context.Context, s *Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.subjects[s.ID]
	if !ok {
		return ErrNotFound
	}
	for _, other := range r.subjects {
		if other.ID != s.ID && strings.EqualFold(other.Email, s.Email) {
			return ErrDuplicateEmail
		}
	}

	merged := s.Clone()
	for _, k := range Kinds {
		log, err := mergeLog(k, stored.Log(k), s.Log(k))
		if err != nil {
			return err
		}
		merged.setLog(k, log)
	}
	merged.UniqueNumber = stored.UniqueNumber
	merged.CreatedAt = stored.CreatedAt
	r.subjects[s.ID] = merged
	return nil
}

// mergeLog applies incoming onto stored: status updates by id, new entries appended
// unless their day key is taken.
func mergeLog(k Kind, stored, incoming []Entry) ([]Entry, error) {
	out := append([]Entry(nil), stored...)
	index := make(map[uuid.UUID]int, len(out))
	taken := make(map[string]bool, len(out))
	for i, e := range out {
		index[e.ID] = i
		taken[entryKey(k, e)] = true
	}
	for _, e := range incoming {
		if i, ok := index[e.ID]; ok {
			out[i].Status = e.Status
			continue
		}
		key := entryKey(k, e)
		if taken[key] {
			return nil, ErrConflict
		}
		taken[key] = true
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out, nil
}

func entryKey(k Kind, e Entry) string {
	if k.Scoped() {
		return e.SubType + "|" + e.Day
	}
	return e.Day
}

// Delete removes the subject with id.
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subjects[id]; !ok {
		return ErrNotFound
	}
	delete(r.subjects, id)
	return nil
}

// List returns subjects ordered by unique number.
func (r *MemoryRepository) List(_ context.Context) ([]*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueNumber < out[j].UniqueNumber })
	return out, nil
}

// FindByEmail looks a subject up by email, case-insensitively.
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subjects {
		if strings.EqualFold(s.Email, email) {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}
