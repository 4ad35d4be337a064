package booking

import (
	"fmt"
	"time"
)

// maxYearsAhead bounds the search for a year in which a date exists (Feb 29
// recurs at most every eight years across a skipped century leap year).
const maxYearsAhead = 8

// Resolver turns a year-less slot into concrete instants. The year is the
// nearest one in which the slot has not started yet, evaluated in the
// business time zone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

func NewResolver(loc *time.Location, now func() time.Time) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{loc: loc, now: now}
}

// Location is the business time zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns the start and end instants of slot.
func (r *Resolver) Resolve(slot Slot) (time.Time, time.Time, error) {
	now := r.now().In(r.loc)
	for year := now.Year(); year <= now.Year()+maxYearsAhead; year++ {
		start := time.Date(year, slot.Month, slot.Day, slot.Start.Hour(), slot.Start.Minute(), 0, 0, r.loc)
		if start.Month() != slot.Month || start.Day() != slot.Day {
			continue
		}
		if start.Before(now) {
			continue
		}
		end := time.Date(year, slot.Month, slot.Day, slot.End.Hour(), slot.End.Minute(), 0, 0, r.loc)
		return start, end, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %s %d does not occur", ErrMalformedRequest, slot.Month, slot.Day)
}
