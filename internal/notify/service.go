package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// AppointmentConfirmation is everything needed to tell a customer their
// appointment is booked.
type AppointmentConfirmation struct {
	AppointmentID string
	To            string
	Name          string
	Date          string
	TimeRange     string
	CalendarURL   string
	Calendar      []byte
}

// Service sends customer-facing notifications.
type Service struct {
	email        EmailSender
	businessName string
	logger       *logging.Logger
}

func NewService(email EmailSender, businessName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(businessName) == "" {
		businessName = DefaultFromName
	}
	return &Service{email: email, businessName: businessName, logger: logger}
}

// SendAppointmentConfirmation emails the appointment details, attaching the
// calendar file when one is supplied.
func (s *Service) SendAppointmentConfirmation(ctx context.Context, c AppointmentConfirmation) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping confirmation", "appointment_id", c.AppointmentID)
		return nil
	}
	if strings.TrimSpace(c.To) == "" {
		return errors.New("notify: confirmation recipient is required")
	}

	msg := EmailMessage{
		To:      c.To,
		ToName:  c.Name,
		Subject: fmt.Sprintf("Your %s appointment on %s", s.businessName, c.Date),
		Body:    s.confirmationBody(c),
	}
	if len(c.Calendar) > 0 {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    "appointment.ics",
			ContentType: "text/calendar",
			Content:     c.Calendar,
		})
	}

	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send appointment confirmation: %w", err)
	}
	return nil
}

func (s *Service) confirmationBody(c AppointmentConfirmation) string {
	var b strings.Builder
	greeting := "Hi"
	if name := strings.TrimSpace(c.Name); name != "" {
		greeting = "Hi " + name
	}
	fmt.Fprintf(&b, "%s,\n\n", greeting)
	fmt.Fprintf(&b, "Your appointment at %s is confirmed for %s, %s.\n", s.businessName, c.Date, c.TimeRange)
	if c.CalendarURL != "" {
		fmt.Fprintf(&b, "\nAdd it to your calendar: %s\n", c.CalendarURL)
	}
	b.WriteString("\nIf you need to change or cancel, just reply to this email.\n\nSee you soon!\n")
	return b.String()
}
