package auth

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// PostgresAccounts stores accounts in staff_accounts and attempts in login_logs.
type PostgresAccounts struct {
	db *sql.DB
}

var _ AccountStore = (*PostgresAccounts)(nil)

// NewPostgresAccounts creates a store over db.
func NewPostgresAccounts(db *sql.DB) *PostgresAccounts {
	return &PostgresAccounts{db: db}
}

const accountColumns = `id, email, password_hash, role, full_name, contact, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Role, &acc.FullName, &acc.Contact, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateAccount inserts acc. A taken email is ErrDuplicateAccount.
func (p *PostgresAccounts) CreateAccount(ctx context.Context, acc *Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO staff_accounts (id, email, password_hash, role, full_name, contact)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, acc.ID, acc.Email, acc.PasswordHash, string(acc.Role), acc.FullName, acc.Contact).Scan(&acc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return errors.Wrap(err, "auth: create account")
	}
	return nil
}

// FindAccount looks an account up by email, case-insensitively.
func (p *PostgresAccounts) FindAccount(ctx context.Context, email string) (*Account, error) {
	acc, err := scanAccount(p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM staff_accounts WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, errors.Wrap(err, "auth: find account")
	}
	return acc, err
}

// FindAccountByID looks an account up by id.
func (p *PostgresAccounts) FindAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	acc, err := scanAccount(p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM staff_accounts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, errors.Wrap(err, "auth: find account by id")
	}
	return acc, err
}

// ListAccounts returns the accounts holding role, oldest first.
func (p *PostgresAccounts) ListAccounts(ctx context.Context, role Role) ([]Account, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM staff_accounts WHERE role = $1 ORDER BY created_at, email`, string(role))
	if err != nil {
		return nil, errors.Wrap(err, "auth: list accounts")
	}
	defer rows.Close()
	out := []Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "auth: scan account")
		}
		out = append(out, *acc)
	}
	return out, errors.Wrap(rows.Err(), "auth: list accounts")
}

// UpdateAccount writes the mutable fields of acc. Role and creation time are kept.
func (p *PostgresAccounts) UpdateAccount(ctx context.Context, acc *Account) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE staff_accounts SET email = $2, password_hash = $3, full_name = $4, contact = $5
		WHERE id = $1
	`, acc.ID, acc.Email, acc.PasswordHash, acc.FullName, acc.Contact)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return errors.Wrap(err, "auth: update account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes the account with id.
func (p *PostgresAccounts) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM staff_accounts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "auth: delete account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// LogLogin appends a row to login_logs.
func (p *PostgresAccounts) LogLogin(ctx context.Context, a LoginAttempt) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO login_logs (email, success, ip, created_at) VALUES ($1, $2, $3, $4)
	`, a.Email, a.Success, a.IP, a.At)
	return errors.Wrap(err, "auth: log login")
}
