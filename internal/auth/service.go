package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"conference/internal/clock"
	"conference/internal/logger"
)

// AccountFinder looks an account up by email.
type AccountFinder func(ctx context.Context, email string) (*Account, error)

// Profile is the optional contact detail of a staff account.
type Profile struct {
	FullName string
	Contact  string
}

// AccountUpdate changes a staff account. Nil fields keep the current value.
type AccountUpdate struct {
	Email    *string
	Password *string
	FullName *string
	Contact  *string
}

// Service logs staff and subjects in and manages staff accounts.
type Service struct {
	store    AccountStore
	subjects AccountFinder
	tokens   *Tokens
	clock    clock.Clock
	log      logger.Logger
}

// NewService creates a Service over store. A nil clock means the system clock.
func NewService(store AccountStore, tokens *Tokens, c clock.Clock, log logger.Logger) *Service {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: store, tokens: tokens, clock: c, log: log}
}

// WithSubjects enables subject logins against accounts returned by find.
// It must be called before the service is shared.
func (s *Service) WithSubjects(find AccountFinder) *Service {
	s.subjects = find
	return s
}

// Tokens returns the issuer used by the service.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Login checks staff credentials and issues a token pair. Unknown emails and wrong
// passwords both return ErrInvalidCredentials. Every attempt is logged.
func (s *Service) Login(ctx context.Context, email, password, ip string) (Account, TokenPair, error) {
	return s.login(ctx, s.store.FindAccount, email, password, ip)
}

// LoginSubject is Login for registered subjects.
func (s *Service) LoginSubject(ctx context.Context, email, password, ip string) (Account, TokenPair, error) {
	if s.subjects == nil {
		return Account{}, TokenPair{}, ErrInvalidCredentials
	}
	return s.login(ctx, s.subjects, email, password, ip)
}

func (s *Service) login(ctx context.Context, find AccountFinder, email, password, ip string) (Account, TokenPair, error) {
	email = strings.TrimSpace(email)
	acc, err := find(ctx, email)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		s.logAttempt(ctx, email, false, ip)
		return Account{}, TokenPair{}, ErrInvalidCredentials
	case err != nil:
		return Account{}, TokenPair{}, err
	}
	if acc.PasswordHash == "" || !CheckPassword(acc.PasswordHash, password) {
		s.logAttempt(ctx, email, false, ip)
		return Account{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(*acc)
	if err != nil {
		return Account{}, TokenPair{}, fmt.Errorf("auth: issue tokens: %w", err)
	}
	s.logAttempt(ctx, email, true, ip)
	return *acc, pair, nil
}

// Refresh exchanges a refresh token for a new pair. The account must still exist
// with the same id and role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	find := s.store.FindAccount
	if claims.Role == RoleSubject {
		if s.subjects == nil {
			return TokenPair{}, ErrInvalidToken
		}
		find = s.subjects
	}
	acc, err := find(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if acc.ID.String() != claims.Subject || acc.Role != claims.Role {
		return TokenPair{}, ErrInvalidToken
	}
	return s.tokens.Issue(*acc)
}

// CreateAccount validates and stores a new staff account.
func (s *Service) CreateAccount(ctx context.Context, email, password string, role Role) (*Account, error) {
	return s.CreateAccountWithProfile(ctx, email, password, role, Profile{})
}

// CreateAccountWithProfile is CreateAccount with contact details.
func (s *Service) CreateAccountWithProfile(ctx context.Context, email, password string, role Role, p Profile) (*Account, error) {
	addr, err := parseEmail(email)
	if err != nil {
		return nil, err
	}
	if _, ok := ParseRole(string(role)); !ok {
		return nil, invalid("auth: invalid role %q", role)
	}
	hash, err := hashNewPassword(password)
	if err != nil {
		return nil, err
	}
	acc := &Account{
		ID:           uuid.New(),
		Email:        addr,
		PasswordHash: hash,
		Role:         role,
		FullName:     strings.TrimSpace(p.FullName),
		Contact:      strings.TrimSpace(p.Contact),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// ListAccounts returns the staff accounts holding role.
func (s *Service) ListAccounts(ctx context.Context, role Role) ([]Account, error) {
	return s.store.ListAccounts(ctx, role)
}

// findRole loads the account with id, reporting ErrAccountNotFound when it holds another role.
func (s *Service) findRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error) {
	acc, err := s.store.FindAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Role != role {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// UpdateAccount applies u to the account with id, which must hold role.
func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, role Role, u AccountUpdate) (*Account, error) {
	acc, err := s.findRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	if u.Email != nil {
		addr, err := parseEmail(*u.Email)
		if err != nil {
			return nil, err
		}
		acc.Email = addr
	}
	if u.Password != nil {
		hash, err := hashNewPassword(*u.Password)
		if err != nil {
			return nil, err
		}
		acc.PasswordHash = hash
	}
	if u.FullName != nil {
		acc.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Contact != nil {
		acc.Contact = strings.TrimSpace(*u.Contact)
	}
	if err := s.store.UpdateAccount(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// DeleteAccount removes the account with id, which must hold role.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID, role Role) error {
	if _, err := s.findRole(ctx, id, role); err != nil {
		return err
	}
	return s.store.DeleteAccount(ctx, id)
}

func (s *Service) logAttempt(ctx context.Context, email string, ok bool, ip string) {
	err := s.store.LogLogin(ctx, LoginAttempt{Email: email, Success: ok, IP: ip, At: s.clock.Now().UTC()})
	if err != nil {
		s.log.Warn("login log write failed", "email", email, "err", err)
	}
}

// ValidationError reports input a caller can correct.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func parseEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", invalid("auth: invalid email: %v", err)
	}
	return addr.Address, nil
}

func hashNewPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", invalid("auth: password must be at least %d characters", MinPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return hash, nil
}
