package booking

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when an appointment id is unknown.
var ErrNotFound = errors.New("booking: appointment not found")

// Status of a stored appointment.
type Status string

const StatusConfirmed Status = "confirmed"

// Appointment is the durable record created when a customer confirms a slot.
type Appointment struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"-"`
	Date        string    `json:"date"`
	TimeRange   string    `json:"time_range"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Email       string    `json:"email,omitempty"`
	Name        string    `json:"name,omitempty"`
	Status      Status    `json:"status"`
	CalendarRef string    `json:"calendar_ref"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository persists appointments.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	UpdateContact(ctx context.Context, id string, contact Contact) error
}

// MemoryRepository keeps appointments in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]Appointment)}
}

func (r *MemoryRepository) Create(_ context.Context, appt *Appointment) error {
	if appt == nil || appt.ID == "" {
		return errors.New("booking: appointment id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[appt.ID] = *appt
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &appt, nil
}

func (r *MemoryRepository) UpdateContact(_ context.Context, id string, contact Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	appt.Email = contact.Email
	appt.Name = contact.Name
	appt.UpdatedAt = time.Now().UTC()
	r.items[id] = appt
	return nil
}
