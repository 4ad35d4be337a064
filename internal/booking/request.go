// Package booking implements the appointment-booking side of the concierge:
// slot parsing, the confirmation dialogue, durable appointments and calendar
// files.
package booking

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoRequest means the text does not carry both a date and a time range.
	ErrNoRequest = errors.New("booking: no date and time range found")
	// ErrMalformedRequest means a date or time range is present but invalid.
	ErrMalformedRequest = errors.New("booking: malformed date or time range")
)

var (
	bookingKeywordPattern = regexp.MustCompile(`(?i)\b(book(ing)?|appointments?|schedul\w*|reserv\w*)\b`)
	monthDayPattern       = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	timeRangePattern      = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*([ap]m)?\s*(?:-|–|—|\bto\b)\s*(\d{1,2})(?::(\d{2}))?\s*([ap]m)?\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Request is a tentatively selected slot in canonical text form, e.g.
// {Date: "Jun 12", TimeRange: "9am - 10:30am"}.
type Request struct {
	Date      string `json:"date"`
	TimeRange string `json:"time_range"`
}

// Clock is a wall-clock time of day in minutes after midnight.
type Clock int

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// String renders 12-hour form without leading zeros: 9am, 10:30am, 12pm.
func (c Clock) String() string {
	h, m := c.Hour(), c.Minute()
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	if m == 0 {
		return fmt.Sprintf("%d%s", h, suffix)
	}
	return fmt.Sprintf("%d:%02d%s", h, m, suffix)
}

// Slot is the structured form of a Request.
type Slot struct {
	Month time.Month
	Day   int
	Start Clock
	End   Clock
}

// Request renders the slot canonically.
func (s Slot) Request() Request {
	return Request{
		Date:      fmt.Sprintf("%s %d", s.Month.String()[:3], s.Day),
		TimeRange: fmt.Sprintf("%s - %s", s.Start, s.End),
	}
}

// HasBookingKeyword reports whether text asks to book something.
func HasBookingKeyword(text string) bool {
	return bookingKeywordPattern.MatchString(text)
}

// ParseRequest extracts a month/day date and a time range from free text,
// independent of whatever else the text says. It returns ErrNoRequest when
// either token is missing and ErrMalformedRequest when a token is invalid.
func ParseRequest(text string) (Request, error) {
	slot, err := ParseSlot(text)
	if err != nil {
		return Request{}, err
	}
	return slot.Request(), nil
}

// ParseSlot is ParseRequest returning the structured form.
func ParseSlot(text string) (Slot, error) {
	loc := monthDayPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return Slot{}, ErrNoRequest
	}
	// Blank out the date so its day number cannot be read as a clock time.
	rest := text[:loc[0]] + strings.Repeat(" ", loc[1]-loc[0]) + text[loc[1]:]
	tm := timeRangePattern.FindStringSubmatch(rest)
	if tm == nil {
		return Slot{}, ErrNoRequest
	}

	month, day, err := parseMonthDay(text[loc[2]:loc[3]], text[loc[4]:loc[5]])
	if err != nil {
		return Slot{}, err
	}
	start, end, err := parseTimeRange(tm[1:])
	if err != nil {
		return Slot{}, err
	}
	return Slot{Month: month, Day: day, Start: start, End: end}, nil
}

// Slot parses a canonical Request back into its structured form.
func (r Request) Slot() (Slot, error) {
	slot, err := ParseSlot(r.Date + " " + r.TimeRange)
	if errors.Is(err, ErrNoRequest) {
		return Slot{}, fmt.Errorf("%w: %q %q", ErrMalformedRequest, r.Date, r.TimeRange)
	}
	return slot, err
}

func parseMonthDay(monthToken, dayToken string) (time.Month, int, error) {
	month, ok := monthsByPrefix[strings.ToLower(monthToken)[:3]]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown month %q", ErrMalformedRequest, monthToken)
	}
	day, err := strconv.Atoi(dayToken)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: day %q", ErrMalformedRequest, dayToken)
	}
	// 2024 is a leap year, so Feb 29 is accepted here and resolved later.
	if day < 1 || time.Date(2024, month, day, 0, 0, 0, 0, time.UTC).Day() != day {
		return 0, 0, fmt.Errorf("%w: %s has no day %d", ErrMalformedRequest, month, day)
	}
	return month, day, nil
}

// parseTimeRange takes the six capture groups of timeRangePattern.
func parseTimeRange(g []string) (Clock, Clock, error) {
	startSuffix, endSuffix := meridiem(g[2]), meridiem(g[5])

	switch {
	case startSuffix == "" && endSuffix == "" && twelveHour(g[0]) && twelveHour(g[3]):
		start, err := clock12(g[0], g[1], businessMeridiem(g[0]))
		if err != nil {
			return 0, 0, err
		}
		end, err := clock12(g[3], g[4], "am")
		if err != nil {
			return 0, 0, err
		}
		if end <= start {
			if end, err = clock12(g[3], g[4], "pm"); err != nil {
				return 0, 0, err
			}
		}
		return ordered(start, end)

	case startSuffix == "" && endSuffix == "":
		start, err := clock24(g[0], g[1])
		if err != nil {
			return 0, 0, err
		}
		end, err := clock24(g[3], g[4])
		if err != nil {
			return 0, 0, err
		}
		return ordered(start, end)

	case startSuffix == "":
		end, err := clock12(g[3], g[4], endSuffix)
		if err != nil {
			return 0, 0, err
		}
		start, err := clock12(g[0], g[1], endSuffix)
		if err != nil {
			return 0, 0, err
		}
		if start >= end && endSuffix == "pm" {
			if start, err = clock12(g[0], g[1], "am"); err != nil {
				return 0, 0, err
			}
		}
		return ordered(start, end)

	case endSuffix == "":
		start, err := clock12(g[0], g[1], startSuffix)
		if err != nil {
			return 0, 0, err
		}
		end, err := clock12(g[3], g[4], startSuffix)
		if err != nil {
			return 0, 0, err
		}
		if end <= start && startSuffix == "am" {
			if end, err = clock12(g[3], g[4], "pm"); err != nil {
				return 0, 0, err
			}
		}
		return ordered(start, end)

	default:
		start, err := clock12(g[0], g[1], startSuffix)
		if err != nil {
			return 0, 0, err
		}
		end, err := clock12(g[3], g[4], endSuffix)
		if err != nil {
			return 0, 0, err
		}
		return ordered(start, end)
	}
}

// twelveHour reports whether a bare hour could be read on a 12-hour clock.
func twelveHour(hourToken string) bool {
	hour, err := strconv.Atoi(hourToken)
	return err == nil && hour >= 1 && hour <= 12
}

// businessMeridiem places a bare start hour inside opening hours: 8 to 11 are
// mornings, 12 and 1 to 7 are afternoons.
func businessMeridiem(hourToken string) string {
	if hour, _ := strconv.Atoi(hourToken); hour >= 8 && hour <= 11 {
		return "am"
	}
	return "pm"
}

func ordered(start, end Clock) (Clock, Clock, error) {
	if end <= start {
		return 0, 0, fmt.Errorf("%w: range ends at %s, before it starts at %s", ErrMalformedRequest, end, start)
	}
	return start, end, nil
}

func meridiem(token string) string {
	switch token = strings.ToLower(token); token {
	case "am", "pm":
		return token
	}
	return ""
}

func clock12(hourToken, minuteToken, suffix string) (Clock, error) {
	hour, minute, err := hourMinute(hourToken, minuteToken)
	if err != nil {
		return 0, err
	}
	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: hour %d%s", ErrMalformedRequest, hour, suffix)
	}
	hour %= 12
	if suffix == "pm" {
		hour += 12
	}
	return Clock(hour*60 + minute), nil
}

func clock24(hourToken, minuteToken string) (Clock, error) {
	hour, minute, err := hourMinute(hourToken, minuteToken)
	if err != nil {
		return 0, err
	}
	if hour > 23 {
		return 0, fmt.Errorf("%w: hour %d", ErrMalformedRequest, hour)
	}
	return Clock(hour*60 + minute), nil
}

func hourMinute(hourToken, minuteToken string) (int, int, error) {
	hour, err := strconv.Atoi(hourToken)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: hour %q", ErrMalformedRequest, hourToken)
	}
	minute := 0
	if minuteToken != "" {
		if minute, err = strconv.Atoi(minuteToken); err != nil {
			return 0, 0, fmt.Errorf("%w: minute %q", ErrMalformedRequest, minuteToken)
		}
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute %d", ErrMalformedRequest, minute)
	}
	return hour, minute, nil
}
