package subject

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const (
	uniqueViolation    = "23505"
	dayKeyConstraint   = "daily_events_subject_day_key"
	emailKeyConstraint = "subjects_email_key"
)

// PostgresRepository persists subjects in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const subjectColumns = `id, unique_number, title, first_name, middle_name, last_name, email, mobile,
	institution, job_position, gender, biography, picture_url, password_hash,
	conference_kit_received, excursion_attended, verification_status, verified, verified_at,
	verification_requested_at, admin_email, admin_remarks, created_at, updated_at,
	has_accompanying_person, participant_checked_in, participant_checked_in_at,
	accompany_checked_in, accompany_checked_in_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubject(row scanner) (*Subject, error) {
	var s Subject
	var verifiedAt, participantAt, accompanyAt sql.NullTime
	err := row.Scan(&s.ID, &s.UniqueNumber, &s.Title, &s.Name.First, &s.Name.Middle, &s.Name.Last,
		&s.Email, &s.Mobile, &s.Institution, &s.JobPosition, &s.Gender, &s.Biography, &s.PictureURL,
		&s.PasswordHash, &s.ConferenceKitReceived, &s.ExcursionAttended, &s.Verification.Status,
		&s.Verification.Verified, &verifiedAt, &s.Verification.RequestedAt, &s.Verification.AdminEmail,
		&s.Verification.AdminRemarks, &s.CreatedAt, &s.UpdatedAt,
		&s.HasAccompanyingPerson, &s.CheckIn.Participant.CheckedIn, &participantAt,
		&s.CheckIn.Accompany.CheckedIn, &accompanyAt)
	if err != nil {
		return nil, err
	}
	s.Verification.VerifiedAt = timePtr(verifiedAt)
	s.CheckIn.Participant.At = timePtr(participantAt)
	s.CheckIn.Accompany.At = timePtr(accompanyAt)
	return &s, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	at := t.Time
	return &at
}

// Create inserts s and fills its unique number.
func (r *PostgresRepository) Create(ctx context.Context, s *Subject) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO subjects (id, title, first_name, middle_name, last_name, email, mobile, institution,
			job_position, gender, biography, picture_url, password_hash, verification_status,
			verification_requested_at, created_at, updated_at, has_accompanying_person)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING unique_number
	`, s.ID, s.Title, s.Name.First, s.Name.Middle, s.Name.Last, s.Email, s.Mobile, s.Institution,
		s.JobPosition, s.Gender, s.Biography, s.PictureURL, s.PasswordHash, s.Verification.Status,
		s.Verification.RequestedAt, s.CreatedAt, s.UpdatedAt, s.HasAccompanyingPerson)
	if err := row.Scan(&s.UniqueNumber); err != nil {
		return translate(err, "subject: create")
	}
	return nil
}

// Load returns the subject with all its logs.
func (r *PostgresRepository) Load(ctx context.Context, id uuid.UUID) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id)
	s, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "subject: load")
	}
	if err := r.loadEntries(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) loadEntries(ctx context.Context, s *Subject) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, sub_type, to_char(day, 'YYYY-MM-DD'), occurred_at, status
		FROM daily_events
		WHERE subject_id = $1
		ORDER BY occurred_at, id
	`, s.ID)
	if err != nil {
		return errors.Wrap(err, "subject: load entries")
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		var kind Kind
		if err := rows.Scan(&e.ID, &kind, &e.SubType, &e.Day, &e.OccurredAt, &e.Status); err != nil {
			return errors.Wrap(err, "subject: scan entry")
		}
		s.Append(kind, e)
	}
	return errors.Wrap(rows.Err(), "subject: load entries")
}

// Save updates the subject row and upserts its entries in one transaction.
// A new entry on an already recorded day fails the whole save with ErrConflict.
func (r *PostgresRepository) Save(ctx context.Context, s *Subject) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "subject: begin save")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE subjects SET
			title = $2, first_name = $3, middle_name = $4, last_name = $5, email = $6, mobile = $7,
			institution = $8, job_position = $9, gender = $10, biography = $11, picture_url = $12,
			password_hash = $13, conference_kit_received = $14, excursion_attended = $15,
			verification_status = $16, verified = $17, verified_at = $18, admin_email = $19,
			admin_remarks = $20, updated_at = $21, has_accompanying_person = $22,
			participant_checked_in = $23, participant_checked_in_at = $24,
			accompany_checked_in = $25, accompany_checked_in_at = $26
		WHERE id = $1
	`, s.ID, s.Title, s.Name.First, s.Name.Middle, s.Name.Last, s.Email, s.Mobile, s.Institution,
		s.JobPosition, s.Gender, s.Biography, s.PictureURL, s.PasswordHash, s.ConferenceKitReceived,
		s.ExcursionAttended, s.Verification.Status, s.Verification.Verified, s.Verification.VerifiedAt,
		s.Verification.AdminEmail, s.Verification.AdminRemarks, s.UpdatedAt, s.HasAccompanyingPerson,
		s.CheckIn.Participant.CheckedIn, s.CheckIn.Participant.At,
		s.CheckIn.Accompany.CheckedIn, s.CheckIn.Accompany.At)
	if err != nil {
		return translate(err, "subject: save")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	for _, k := range Kinds {
		for _, e := range s.Log(k) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO daily_events (id, subject_id, kind, sub_type, day, occurred_at, status)
				VALUES ($1, $2, $3, $4, $5::date, $6, $7)
				ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
			`, e.ID, s.ID, string(k), e.SubType, e.Day, e.OccurredAt, e.Status)
			if err != nil {
				return translate(err, "subject: save entry")
			}
		}
	}
	return errors.Wrap(tx.Commit(), "subject: commit save")
}

// Delete removes the subject and, by cascade, its entries.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "subject: delete")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every subject ordered by unique number, logs included.
func (r *PostgresRepository) List(ctx context.Context) ([]*Subject, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY unique_number`)
	if err != nil {
		return nil, errors.Wrap(err, "subject: list")
	}
	var out []*Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "subject: scan")
		}
		out = append(out, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "subject: list")
	}
	for _, s := range out {
		if err := r.loadEntries(ctx, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FindByEmail looks a subject up by email, case-insensitively.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Subject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE LOWER(email) = LOWER($1)`, email)
	s, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "subject: find by email")
	}
	return s, nil
}

// translate maps unique violations to package errors and wraps everything else.
func translate(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case dayKeyConstraint:
			return ErrConflict
		case emailKeyConstraint:
			return ErrDuplicateEmail
		}
	}
	return errors.Wrap(err, msg)
}
