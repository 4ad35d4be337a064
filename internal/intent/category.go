// Package intent sorts free-text chat messages into the handful of categories
// the concierge knows how to answer.
package intent

import (
	"context"
	"fmt"
)

// Category is the closed set of intents a message can be routed by.
type Category string

const (
	// Company covers questions about the business itself: services, prices,
	// opening hours, address and contact details.
	Company Category = "company"
	// Specialty covers domain questions answered from the business's own
	// documents. It routes like Company, against a different collection.
	Specialty Category = "specialty"
	// Appointment covers availability and booking questions.
	Appointment Category = "appointment"
	// Other is everything else, and the default when classification fails.
	Other Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{Company, Specialty, Appointment, Other}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	switch c {
	case Company, Specialty, Appointment, Other:
		return true
	}
	return false
}

// ParseCategory converts a stored or configured name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("intent: unknown category %q", s)
	}
	return c, nil
}

// Classifier maps an utterance to a category. Implementations never fail:
// anything they cannot decide becomes Other.
type Classifier interface {
	Classify(ctx context.Context, utterance string) Category
}
