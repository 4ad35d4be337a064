package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	date_label TEXT NOT NULL,
	time_range TEXT NOT NULL,
	starts_at INTEGER NOT NULL,
	ends_at INTEGER NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	calendar_ref TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_appointments_session ON appointments(session_id);
`

// SQLiteRepository stores appointments in a local SQLite file, for
// single-node deployments without Postgres.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("booking: create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("booking: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := NewSQLiteRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	if db == nil {
		panic("booking: sql db required")
	}
	return &SQLiteRepository{db: db}
}

// Migrate creates the appointments table when missing.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("booking: create sqlite schema: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (id, session_id, date_label, time_range, starts_at, ends_at, email, name, status, calendar_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		appt.ID, appt.SessionID, appt.Date, appt.TimeRange,
		appt.Start.Unix(), appt.End.Unix(), appt.Email, appt.Name,
		string(appt.Status), appt.CalendarRef, appt.CreatedAt.Unix(), appt.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("booking: insert appointment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `
		SELECT id, session_id, date_label, time_range, starts_at, ends_at, email, name, status, calendar_ref, created_at, updated_at
		FROM appointments WHERE id = ?`
	var (
		appt                                  Appointment
		status                                string
		startsAt, endsAt, createdAt, updateAt int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&appt.ID, &appt.SessionID, &appt.Date, &appt.TimeRange,
		&startsAt, &endsAt, &appt.Email, &appt.Name,
		&status, &appt.CalendarRef, &createdAt, &updateAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: load appointment: %w", err)
	}
	appt.Status = Status(status)
	appt.Start = time.Unix(startsAt, 0).UTC()
	appt.End = time.Unix(endsAt, 0).UTC()
	appt.CreatedAt = time.Unix(createdAt, 0).UTC()
	appt.UpdatedAt = time.Unix(updateAt, 0).UTC()
	return &appt, nil
}

func (r *SQLiteRepository) UpdateContact(ctx context.Context, id string, contact Contact) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET email = ?, name = ?, updated_at = ? WHERE id = ?`,
		contact.Email, contact.Name, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("booking: update contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking: update contact: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
