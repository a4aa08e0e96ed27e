package subject

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no subject has the requested id.
	ErrNotFound = errors.New("subject not found")
	// ErrConflict is returned by Save when a new log entry collides with a stored one
	// for the same kind, sub type and day.
	ErrConflict = errors.New("subject: entry already recorded for day")
	// ErrDuplicateEmail is returned when another subject owns the email.
	ErrDuplicateEmail = errors.New("subject: email already registered")
)

// Repository persists subjects. Save writes the record wholesale: profile and
// verification fields are overwritten, entries unknown to the store are appended and
// known entries get their status updated. Entries are never removed by Save.
type Repository interface {
	Create(ctx context.Context, s *Subject) error
	Load(ctx context.Context, id uuid.UUID) (*Subject, error)
	Save(ctx context.Context, s *Subject) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Subject, error)
	FindByEmail(ctx context.Context, email string) (*Subject, error)
}

// DuplicateNames returns the ids of subjects sharing a full name with another subject,
// compared case-insensitively.
func DuplicateNames(subjects []*Subject) []uuid.UUID {
	byName := make(map[string][]uuid.UUID, len(subjects))
	order := make([]string, 0, len(subjects))
	for _, s := range subjects {
		full := strings.ToLower(s.Name.Full())
		if _, ok := byName[full]; !ok {
			order = append(order, full)
		}
		byName[full] = append(byName[full], s.ID)
	}
	out := []uuid.UUID{}
	for _, name := range order {
		if ids := byName[name]; len(ids) > 1 {
			out = append(out, ids...)
		}
	}
	return out
}
