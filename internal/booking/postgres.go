package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the appointments table.
type PostgresRepository struct {
	pool rowQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec rowQuerier) *PostgresRepository {
	if exec == nil {
		panic("booking: exec required")
	}
	return &PostgresRepository{pool: exec}
}

func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (id, session_id, date_label, time_range, starts_at, ends_at, email, name, status, calendar_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		appt.ID, appt.SessionID, appt.Date, appt.TimeRange,
		appt.Start, appt.End, appt.Email, appt.Name,
		string(appt.Status), appt.CalendarRef, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("booking: insert appointment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `
		SELECT id, session_id, date_label, time_range, starts_at, ends_at, email, name, status, calendar_ref, created_at, updated_at
		FROM appointments WHERE id = $1
	`
	var (
		appt   Appointment
		status string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&appt.ID, &appt.SessionID, &appt.Date, &appt.TimeRange,
		&appt.Start, &appt.End, &appt.Email, &appt.Name,
		&status, &appt.CalendarRef, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: load appointment: %w", err)
	}
	appt.Status = Status(status)
	return &appt, nil
}

func (r *PostgresRepository) UpdateContact(ctx context.Context, id string, contact Contact) error {
	query := `UPDATE appointments SET email = $2, name = $3, updated_at = $4 WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id, contact.Email, contact.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("booking: update contact: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
