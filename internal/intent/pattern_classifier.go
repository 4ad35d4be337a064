package intent

import (
	"context"
	"regexp"
	"strings"
)

var (
	appointmentPattern = regexp.MustCompile(`(?i)\b(appointments?|book(ing)?|schedul\w*|reserv\w*|availab\w*|slots?|openings?)\b`)
	companyPattern     = regexp.MustCompile(`(?i)\b(hours?|open|close[sd]?|services?|treatments?|prices?|pricing|costs?|address|located|location|e-?mail|phone|call|contact|spa|specialists?|staff|massages?|facials?|nails?|lash(es)?|waxing|makeup)\b`)
)

// PatternClassifier classifies with keyword rules and needs no network access.
// Appointment keywords win over company keywords.
type PatternClassifier struct{}

func (PatternClassifier) Classify(_ context.Context, utterance string) Category {
	utterance = strings.TrimSpace(utterance)
	switch {
	case utterance == "":
		return Other
	case appointmentPattern.MatchString(utterance):
		return Appointment
	case companyPattern.MatchString(utterance):
		return Company
	default:
		return Other
	}
}
