package booking

import (
	"fmt"
	"html"
	"strings"
)

// DefaultSlots is the bookable table used when the business profile does not
// define one.
var DefaultSlots = []Request{
	{Date: "Jun 12", TimeRange: "9am - 10am"},
	{Date: "Jun 12", TimeRange: "2pm - 3pm"},
	{Date: "Jun 13", TimeRange: "10am - 11:30am"},
	{Date: "Jun 14", TimeRange: "1pm - 2pm"},
}

// NormalizeSlots validates a configured slot table and rewrites every entry in
// canonical form.
func NormalizeSlots(slots []Request) ([]Request, error) {
	out := make([]Request, 0, len(slots))
	for i, s := range slots {
		slot, err := s.Slot()
		if err != nil {
			return nil, fmt.Errorf("booking: slot %d: %w", i, err)
		}
		out = append(out, slot.Request())
	}
	return out, nil
}

// SlotPrompt is the chat message a slot button sends back.
func SlotPrompt(r Request) string {
	return fmt.Sprintf("Book appointment for %s %s", r.Date, r.TimeRange)
}

// RenderSlotMenu renders the slot table as HTML buttons. Each button carries the
// booking prompt the chat widget posts when it is clicked.
func RenderSlotMenu(slots []Request) string {
	if len(slots) == 0 {
		return "Sorry, there are no appointment slots available right now. Please call us and our team will find a time that works for you."
	}
	var b strings.Builder
	b.WriteString(`<div class="slot-menu"><p>Here are our available appointment slots. Pick one to book it:</p>`)
	for _, s := range slots {
		fmt.Fprintf(&b, `<button class="slot" data-prompt="%s">%s, %s</button>`,
			html.EscapeString(SlotPrompt(s)), html.EscapeString(s.Date), html.EscapeString(s.TimeRange))
	}
	b.WriteString(`</div>`)
	return b.String()
}
