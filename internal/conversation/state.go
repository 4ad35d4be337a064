// Package conversation runs chat turns: it keeps each session's transcript,
// drives the booking dialogue and routes everything else to the completion model.
package conversation

import "github.com/wolfman30/spa-concierge/internal/booking"

// Turn is one message in a transcript.
type Turn struct {
	Message string `json:"message"`
	IsUser  bool   `json:"is_user"`
}

// State is everything remembered about one session.
type State struct {
	History []Turn `json:"history"`
	booking.State
}

// clone copies s so a failed turn can be discarded without touching the original.
func (s *State) clone() *State {
	out := &State{State: s.State}
	out.History = append(make([]Turn, 0, len(s.History)+2), s.History...)
	if s.Booking != nil {
		b := *s.Booking
		out.Booking = &b
	}
	if s.Contact != nil {
		c := *s.Contact
		out.Contact = &c
	}
	return out
}
