package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/spa-concierge/internal/booking"
	"github.com/wolfman30/spa-concierge/internal/intent"
	"github.com/wolfman30/spa-concierge/internal/retrieval"
)

// businessPlaceholder is replaced with the business name in the system prompt.
const businessPlaceholder = "{business}"

const defaultSystemPrompt = `You are the virtual concierge of {business}. You answer customer questions about {business}: its services, prices, opening hours, location, staff and appointments.

Be kind, focused, practical and direct. Customers expect straightforward, honest answers.

Some questions arrive with snippets taken from the {business} website and documents. Read each snippet carefully and use only the ones that are relevant to the question. Never invent facts about {business} that the snippets do not support.

You may also answer general questions from your own knowledge.

Never mention snippets, documents or context in your answer. Speak confidently, as someone who knows the business well. When you cannot find a clear answer, warmly suggest calling {business} so the team can help directly.`

// Profile describes the business the concierge speaks for.
type Profile struct {
	BusinessName string            `yaml:"business_name"`
	SystemPrompt string            `yaml:"system_prompt"`
	Slots        []SlotConfig      `yaml:"slots"`
	Routes       map[string]string `yaml:"routes"`
}

// SlotConfig is one bookable entry of the static slot table.
type SlotConfig struct {
	Date      string `yaml:"date"`
	TimeRange string `yaml:"time_range"`
}

// DefaultProfile is used when PROFILE_PATH is unset.
func DefaultProfile() *Profile {
	slots := make([]SlotConfig, 0, len(booking.DefaultSlots))
	for _, s := range booking.DefaultSlots {
		slots = append(slots, SlotConfig{Date: s.Date, TimeRange: s.TimeRange})
	}
	return &Profile{
		BusinessName: "Solorzano Spa",
		SystemPrompt: defaultSystemPrompt,
		Slots:        slots,
		Routes: map[string]string{
			string(intent.Company):   string(retrieval.WebDocs),
			string(intent.Specialty): string(retrieval.CompanyDocs),
		},
	}
}

// LoadProfile reads a YAML profile from path. An empty path yields DefaultProfile.
// Fields the file leaves out keep their defaults.
func LoadProfile(path string) (*Profile, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode profile: %w", err)
	}

	def := DefaultProfile()
	if strings.TrimSpace(p.BusinessName) == "" {
		p.BusinessName = def.BusinessName
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		p.SystemPrompt = def.SystemPrompt
	}
	if p.Slots == nil {
		p.Slots = def.Slots
	}
	if p.Routes == nil {
		p.Routes = def.Routes
	}
	if _, err := p.RouteTable(); err != nil {
		return nil, err
	}
	if _, err := p.SlotTable(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Prompt returns the system prompt with the business name filled in.
func (p *Profile) Prompt() string {
	return strings.ReplaceAll(p.SystemPrompt, businessPlaceholder, p.BusinessName)
}

// RouteTable maps each retrieval category to its collection. Only company and
// specialty may be routed.
func (p *Profile) RouteTable() (map[intent.Category]retrieval.Collection, error) {
	routes := make(map[intent.Category]retrieval.Collection, len(p.Routes))
	for rawCategory, rawCollection := range p.Routes {
		category, err := intent.ParseCategory(strings.ToLower(strings.TrimSpace(rawCategory)))
		if err != nil {
			return nil, fmt.Errorf("config: profile route: %w", err)
		}
		if category != intent.Company && category != intent.Specialty {
			return nil, fmt.Errorf("config: profile route: category %q does not use retrieval", category)
		}
		collection, err := retrieval.ParseCollection(strings.TrimSpace(rawCollection))
		if err != nil {
			return nil, fmt.Errorf("config: profile route: %w", err)
		}
		routes[category] = collection
	}
	if _, ok := routes[intent.Company]; !ok {
		return nil, errors.New("config: profile must route the company category")
	}
	return routes, nil
}

// SpecialtyEnabled reports whether the specialty category has a collection.
func (p *Profile) SpecialtyEnabled() bool {
	routes, err := p.RouteTable()
	if err != nil {
		return false
	}
	_, ok := routes[intent.Specialty]
	return ok
}

// SlotTable returns the slot table in canonical form.
func (p *Profile) SlotTable() ([]booking.Request, error) {
	reqs := make([]booking.Request, 0, len(p.Slots))
	for _, s := range p.Slots {
		reqs = append(reqs, booking.Request{Date: s.Date, TimeRange: s.TimeRange})
	}
	slots, err := booking.NormalizeSlots(reqs)
	if err != nil {
		return nil, fmt.Errorf("config: profile slots: %w", err)
	}
	return slots, nil
}
