// Package auth handles staff accounts, login and the bearer-token middleware.
package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role is the role carried by a token.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
	// RoleSubject is held by registered participants. It is never stored on a staff account.
	RoleSubject Role = "subject"
)

// ParseRole validates s as a staff Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleVolunteer:
		return r, true
	}
	return "", false
}

// validTokenRole reports whether r may appear in a token.
func validTokenRole(r Role) bool {
	_, staff := ParseRole(string(r))
	return staff || r == RoleSubject
}

var (
	ErrAccountNotFound    = errors.New("auth: account not found")
	ErrDuplicateAccount   = errors.New("auth: account already exists")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
)

// Account is a login. Staff accounts live in an AccountStore; subject accounts are
// views over the subject record.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FullName     string    `json:"full_name,omitempty"`
	Contact      string    `json:"contact,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginAttempt is one row of the login log.
type LoginAttempt struct {
	Email   string
	Success bool
	IP      string
	At      time.Time
}

// AccountStore persists staff accounts and their login history.
type AccountStore interface {
	CreateAccount(ctx context.Context, acc *Account) error
	FindAccount(ctx context.Context, email string) (*Account, error)
	FindAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context, role Role) ([]Account, error)
	UpdateAccount(ctx context.Context, acc *Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	LogLogin(ctx context.Context, attempt LoginAttempt) error
}

// MemoryAccounts is an in-process AccountStore.
type MemoryAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]Account
	logins   []LoginAttempt
}

var _ AccountStore = (*MemoryAccounts)(nil)

// NewMemoryAccounts returns an empty store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[uuid.UUID]Account)}
}

// emailTakenLocked reports whether an account other than id owns email.
func (m *MemoryAccounts) emailTakenLocked(email string, id uuid.UUID) bool {
	for _, acc := range m.accounts {
		if acc.ID != id && strings.EqualFold(acc.Email, email) {
			return true
		}
	}
	return false
}

// CreateAccount stores acc, assigning an ID when it has none.
func (m *MemoryAccounts) CreateAccount(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	if m.emailTakenLocked(acc.Email, acc.ID) {
		return ErrDuplicateAccount
	}
	m.accounts[acc.ID] = *acc
	return nil
}

// FindAccount looks an account up by email, case-insensitively.
func (m *MemoryAccounts) FindAccount(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if strings.EqualFold(acc.Email, email) {
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *MemoryAccounts) FindAccountByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

// ListAccounts returns the accounts holding role, oldest first.
func (m *MemoryAccounts) ListAccounts(_ context.Context, role Role) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Account{}
	for _, acc := range m.accounts {
		if acc.Role == role {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryAccounts) UpdateAccount(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[acc.ID]
	if !ok {
		return ErrAccountNotFound
	}
	if m.emailTakenLocked(acc.Email, acc.ID) {
		return ErrDuplicateAccount
	}
	updated := *acc
	updated.Role = stored.Role
	updated.CreatedAt = stored.CreatedAt
	m.accounts[acc.ID] = updated
	return nil
}

func (m *MemoryAccounts) DeleteAccount(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *MemoryAccounts) LogLogin(_ context.Context, attempt LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, attempt)
	return nil
}

// Logins returns the recorded login attempts.
func (m *MemoryAccounts) Logins() []LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LoginAttempt(nil), m.logins...)
}
