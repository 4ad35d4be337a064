package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/spa-concierge/internal/notify"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// Notifier delivers the confirmation email.
type Notifier interface {
	SendAppointmentConfirmation(ctx context.Context, c notify.AppointmentConfirmation) error
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Repository   Repository
	Calendars    CalendarStore
	Resolver     *Resolver
	Notifier     Notifier
	BusinessName string
	// PublicBaseURL, when set, is used to build a downloadable calendar link.
	PublicBaseURL string
	Logger        *logging.Logger
}

// Service makes bookings durable: it resolves the slot to instants, writes the
// calendar file and stores the appointment.
type Service struct {
	repo         Repository
	calendars    CalendarStore
	resolver     *Resolver
	notifier     Notifier
	businessName string
	baseURL      string
	logger       *logging.Logger
	now          func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Repository == nil {
		panic("booking: repository cannot be nil")
	}
	if cfg.Calendars == nil {
		panic("booking: calendar store cannot be nil")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewResolver(time.UTC, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Service{
		repo:         cfg.Repository,
		calendars:    cfg.Calendars,
		resolver:     cfg.Resolver,
		notifier:     cfg.Notifier,
		businessName: cfg.BusinessName,
		baseURL:      strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:       cfg.Logger,
		now:          cfg.Resolver.now,
	}
}

// Confirm turns a selected slot into a stored appointment with a calendar file.
// The appointment id is derived from the session and the resolved slot, so
// confirming the same slot again returns the stored appointment instead of
// booking it twice.
func (s *Service) Confirm(ctx context.Context, sessionID string, req Request) (*Appointment, error) {
	slot, err := req.Slot()
	if err != nil {
		return nil, err
	}
	start, end, err := s.resolver.Resolve(slot)
	if err != nil {
		return nil, err
	}

	id := appointmentID(sessionID, start, end)
	existing, err := s.repo.Get(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	canonical := slot.Request()
	appt := &Appointment{
		ID:        id,
		SessionID: sessionID,
		Date:      canonical.Date,
		TimeRange: canonical.TimeRange,
		Start:     start,
		End:       end,
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	ics := BuildICS(CalendarEvent{
		UID:     appt.ID + "@spa-concierge",
		Summary: s.summary(),
		Start:   start,
		End:     end,
		Stamp:   now,
	})
	ref, err := s.calendars.Put(ctx, appt.ID, ics)
	if err != nil {
		return nil, err
	}
	appt.CalendarRef = ref

	logger := logging.FromContext(ctx, s.logger)
	if err := s.repo.Create(ctx, appt); err != nil {
		if derr := s.calendars.Delete(ctx, appt.ID); derr != nil {
			logger.Warn("failed to remove calendar file for unsaved appointment", "appointment_id", appt.ID, "error", derr)
		}
		return nil, err
	}
	logger.Info("appointment confirmed",
		"appointment_id", appt.ID,
		"start", start.Format(time.RFC3339),
		"end", end.Format(time.RFC3339),
	)
	return appt, nil
}

var appointmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://spa-concierge/appointments"))

func appointmentID(sessionID string, start, end time.Time) string {
	key := sessionID + "|" + start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(appointmentNamespace, []byte(key)).String()
}

// AttachContact records who the appointment is for and emails them a
// confirmation. Email delivery failures are logged, not returned.
func (s *Service) AttachContact(ctx context.Context, appointmentID string, contact Contact) error {
	if err := s.repo.UpdateContact(ctx, appointmentID, contact); err != nil {
		return err
	}
	if s.notifier == nil || contact.Email == "" {
		return nil
	}

	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	ics, err := s.calendars.Get(ctx, appointmentID)
	if err != nil {
		s.logger.Warn("calendar file unavailable for confirmation email", "appointment_id", appointmentID, "error", err)
	}
	err = s.notifier.SendAppointmentConfirmation(ctx, notify.AppointmentConfirmation{
		AppointmentID: appt.ID,
		To:            contact.Email,
		Name:          contact.Name,
		Date:          appt.Date,
		TimeRange:     appt.TimeRange,
		CalendarURL:   s.CalendarURL(appt.ID),
		Calendar:      ics,
	})
	if err != nil {
		logging.FromContext(ctx, s.logger).Error("failed to send confirmation email", "appointment_id", appt.ID, "error", err)
	}
	return nil
}

// Get loads a stored appointment.
func (s *Service) Get(ctx context.Context, appointmentID string) (*Appointment, error) {
	return s.repo.Get(ctx, appointmentID)
}

// Calendar returns the stored .ics file for an appointment.
func (s *Service) Calendar(ctx context.Context, appointmentID string) ([]byte, error) {
	return s.calendars.Get(ctx, appointmentID)
}

// CalendarURL is the public download link for an appointment's calendar file,
// or "" when no public base URL is configured.
func (s *Service) CalendarURL(appointmentID string) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/appointments/%s/calendar.ics", s.baseURL, appointmentID)
}

func (s *Service) summary() string {
	if s.businessName == "" {
		return "Appointment"
	}
	return "Appointment at " + s.businessName
}
