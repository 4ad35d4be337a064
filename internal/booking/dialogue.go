package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// Phase is the booking sub-state layered over ordinary chat.
type Phase string

const (
	PhaseNone                 Phase = ""
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseAwaitingEmail        Phase = "awaiting_email"
	PhaseAwaitingName         Phase = "awaiting_name"
)

func (p Phase) String() string {
	if p == PhaseNone {
		return "none"
	}
	return string(p)
}

// Trigger classifies an incoming message relative to the current phase.
type Trigger string

const (
	TriggerSlotRequest  Trigger = "slot_request"
	TriggerNoSlot       Trigger = "no_slot"
	TriggerYes          Trigger = "yes"
	TriggerNo           Trigger = "no"
	TriggerUnclear      Trigger = "unclear"
	TriggerEmail        Trigger = "email"
	TriggerOptOut       Trigger = "opt_out"
	TriggerInvalidEmail Trigger = "invalid_email"
	TriggerName         Trigger = "name"
)

// Transition is one row of the dialogue table.
type Transition struct {
	From    Phase
	Trigger Trigger
	To      Phase
	// Handled is false only when the message is left to normal routing.
	Handled bool
}

// Transitions is the complete dialogue table. Every phase has a row for each
// trigger that phase can observe, and no other.
var Transitions = []Transition{
	{PhaseNone, TriggerSlotRequest, PhaseAwaitingConfirmation, true},
	{PhaseNone, TriggerNoSlot, PhaseNone, false},
	{PhaseAwaitingConfirmation, TriggerYes, PhaseAwaitingEmail, true},
	{PhaseAwaitingConfirmation, TriggerNo, PhaseNone, true},
	{PhaseAwaitingConfirmation, TriggerUnclear, PhaseAwaitingConfirmation, true},
	{PhaseAwaitingEmail, TriggerEmail, PhaseAwaitingName, true},
	{PhaseAwaitingEmail, TriggerOptOut, PhaseNone, true},
	{PhaseAwaitingEmail, TriggerInvalidEmail, PhaseAwaitingEmail, true},
	{PhaseAwaitingName, TriggerName, PhaseNone, true},
}

func lookup(from Phase, trigger Trigger) Transition {
	for _, t := range Transitions {
		if t.From == from && t.Trigger == trigger {
			return t
		}
	}
	panic(fmt.Sprintf("booking: no transition from %s on %s", from, trigger))
}

// Contact is what the customer tells us after confirming.
type Contact struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// State is the per-session dialogue state. The zero value is PhaseNone with
// nothing selected.
type State struct {
	Booking       *Request `json:"booking,omitempty"`
	Phase         Phase    `json:"dialogue_phase,omitempty"`
	Contact       *Contact `json:"contact,omitempty"`
	AppointmentID string   `json:"appointment_id,omitempty"`
}

// Reset returns the dialogue to PhaseNone and forgets everything selected.
func (s *State) Reset() {
	*s = State{}
}

// Active reports whether a booking dialogue is in progress.
func (s State) Active() bool { return s.Phase != PhaseNone }

// Confirmer makes a selected slot durable.
type Confirmer interface {
	Confirm(ctx context.Context, sessionID string, req Request) (*Appointment, error)
	AttachContact(ctx context.Context, appointmentID string, contact Contact) error
}

// Outcome is what the machine did with one message.
type Outcome struct {
	Transition
	Reply string
}

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	optOutPattern = regexp.MustCompile(`(?i)\b(no|cancel)\b`)
)

// Machine runs the booking dialogue. It mutates only the State it is given.
type Machine struct {
	confirmer Confirmer
	logger    *logging.Logger
}

func NewMachine(confirmer Confirmer, logger *logging.Logger) *Machine {
	if confirmer == nil {
		panic("booking: confirmer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{confirmer: confirmer, logger: logger}
}

// Handle advances state with msg. When the returned Outcome is not Handled the
// message should be answered by normal routing and state is unchanged. A
// failed confirmation is answered in the Outcome and leaves the phase as is.
func (m *Machine) Handle(ctx context.Context, sessionID string, state *State, msg string) Outcome {
	text := strings.TrimSpace(msg)
	logger := logging.FromContext(ctx, m.logger)

	switch state.Phase {
	case PhaseNone:
		if !HasBookingKeyword(text) {
			return Outcome{Transition: lookup(PhaseNone, TriggerNoSlot)}
		}
		req, err := ParseRequest(text)
		if err != nil {
			if !errors.Is(err, ErrNoRequest) {
				logger.Debug("ignoring malformed booking request", "error", err)
			}
			return Outcome{Transition: lookup(PhaseNone, TriggerNoSlot)}
		}
		state.Booking = &req
		state.Contact = nil
		state.AppointmentID = ""
		t := lookup(PhaseNone, TriggerSlotRequest)
		state.Phase = t.To
		return Outcome{Transition: t, Reply: confirmationPrompt(req)}

	case PhaseAwaitingConfirmation:
		if state.Booking == nil {
			// Only reachable through a corrupted store entry.
			state.Reset()
			return Outcome{Transition: lookup(PhaseNone, TriggerNoSlot)}
		}
		switch strings.ToLower(text) {
		case "yes":
			appt, err := m.confirmer.Confirm(ctx, sessionID, *state.Booking)
			if err != nil {
				logger.Error("failed to persist appointment", "error", err)
				return Outcome{
					Transition: Transition{From: state.Phase, Trigger: TriggerYes, To: state.Phase, Handled: true},
					Reply:      persistFailedReply,
				}
			}
			state.AppointmentID = appt.ID
			t := lookup(PhaseAwaitingConfirmation, TriggerYes)
			state.Phase = t.To
			return Outcome{Transition: t, Reply: fmt.Sprintf(confirmedReply, state.Booking.Date, state.Booking.TimeRange)}
		case "no":
			state.Reset()
			return Outcome{Transition: lookup(PhaseAwaitingConfirmation, TriggerNo), Reply: cancelledReply}
		default:
			return Outcome{
				Transition: lookup(PhaseAwaitingConfirmation, TriggerUnclear),
				Reply:      fmt.Sprintf(yesNoReprompt, state.Booking.Date, state.Booking.TimeRange),
			}
		}

	case PhaseAwaitingEmail:
		switch {
		case emailPattern.MatchString(text):
			state.Contact = &Contact{Email: text}
			t := lookup(PhaseAwaitingEmail, TriggerEmail)
			state.Phase = t.To
			return Outcome{Transition: t, Reply: askNameReply}
		case optOutPattern.MatchString(text):
			state.Reset()
			return Outcome{Transition: lookup(PhaseAwaitingEmail, TriggerOptOut), Reply: optOutReply}
		default:
			return Outcome{Transition: lookup(PhaseAwaitingEmail, TriggerInvalidEmail), Reply: invalidEmailReply}
		}

	case PhaseAwaitingName:
		contact := Contact{Name: text}
		if state.Contact != nil {
			contact.Email = state.Contact.Email
		}
		if state.AppointmentID != "" {
			if err := m.confirmer.AttachContact(ctx, state.AppointmentID, contact); err != nil {
				logger.Error("failed to attach contact to appointment", "appointment_id", state.AppointmentID, "error", err)
			}
		}
		state.Reset()
		return Outcome{Transition: lookup(PhaseAwaitingName, TriggerName), Reply: closingReply(contact)}
	}

	logger.Warn("unknown dialogue phase, resetting", "phase", string(state.Phase))
	state.Reset()
	return Outcome{Transition: lookup(PhaseNone, TriggerNoSlot)}
}

const (
	confirmedReply     = "Great, your appointment on %s, %s is booked! What email address should we send the confirmation to? (Reply \"no\" to skip.)"
	cancelledReply     = "No problem, I've cancelled that request. Is there anything else I can help you with?"
	yesNoReprompt      = "Please reply \"yes\" to confirm your appointment on %s, %s, or \"no\" to cancel it."
	persistFailedReply = "Sorry, I couldn't save your appointment just now. Please reply \"yes\" to try again, or \"no\" to cancel."
	askNameReply       = "Thanks! And what name should we put the appointment under?"
	optOutReply        = "Okay, we won't send a confirmation email. Your appointment is still booked. Anything else I can help with?"
	invalidEmailReply  = "That doesn't look like a valid email address. Please enter one like name@example.com, or reply \"no\" to skip."
)

func confirmationPrompt(req Request) string {
	return fmt.Sprintf("You'd like to book an appointment on %s, %s. Shall I confirm it? Please answer yes or no.", req.Date, req.TimeRange)
}

func closingReply(c Contact) string {
	name := c.Name
	if name == "" {
		name = "there"
	}
	if c.Email == "" {
		return fmt.Sprintf("Thank you, %s! Your appointment is all set. See you soon!", name)
	}
	return fmt.Sprintf("Thank you, %s! Your appointment is all set and a confirmation is on its way to %s. See you soon!", name, c.Email)
}
