// Package listing defines the documents of the real-estate listing domain
// and where they live: every agent owns a document under agents/{uid} and
// subcollections for properties, contacts, leads and landing pages, plus a
// site settings document.
package listing

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Property statuses.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusReserved = "reserved"
	StatusSold     = "sold"
	StatusArchived = "archived"
)

// Lead statuses.
const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadWon       = "won"
	LeadLost      = "lost"
)

// Domain errors.
var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidAgentID    = errors.New("invalid agent id")
	ErrInvalidID         = errors.New("invalid document id")
)

// Agent is the profile document at agents/{uid}.
type Agent struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Creci     string    `json:"creci,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Property is a listing at agents/{uid}/properties/{id}.
type Property struct {
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Kind         string    `json:"kind,omitempty"`
	Status       string    `json:"status"`
	Price        float64   `json:"price"`
	City         string    `json:"city,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Bedrooms     int       `json:"bedrooms,omitempty"`
	Bathrooms    int       `json:"bathrooms,omitempty"`
	Area         float64   `json:"area,omitempty"`
	Images       []string  `json:"images,omitempty"`
	Featured     bool      `json:"featured"`
	AgentID      string    `json:"agentId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Contact is an address-book entry at agents/{uid}/contacts/{id}.
type Contact struct {
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Notes string   `json:"notes,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Lead is an inquiry at agents/{uid}/leads/{id}, usually left on a
// property page.
type Lead struct {
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Message    string    `json:"message,omitempty"`
	PropertyID string    `json:"propertyId,omitempty"`
	Source     string    `json:"source,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Section is one block of a landing page.
type Section struct {
	Kind        string   `json:"kind"`
	Title       string   `json:"title,omitempty"`
	Body        string   `json:"body,omitempty"`
	PropertyIDs []string `json:"propertyIds,omitempty"`
}

// LandingPage is a custom catalog page at agents/{uid}/pages/{id}.
type LandingPage struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Published bool      `json:"published"`
	Sections  []Section `json:"sections"`
}

// SiteSettings is the public site appearance at agents/{uid}/settings/site.
type SiteSettings struct {
	Theme        string `json:"theme,omitempty"`
	PrimaryColor string `json:"primaryColor,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
	Headline     string `json:"headline,omitempty"`
	WhatsApp     string `json:"whatsapp,omitempty"`
}

var transitions = map[string][]string{
	StatusDraft:    {StatusActive, StatusArchived},
	StatusActive:   {StatusDraft, StatusReserved, StatusSold, StatusArchived},
	StatusReserved: {StatusActive, StatusSold, StatusArchived},
	StatusSold:     {StatusArchived},
	StatusArchived: {StatusDraft},
}

// ValidStatus reports whether s is a known property status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a property may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to string) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	return from == to || slices.Contains(transitions[from], to)
}

// SetStatus moves p to status to, stamping UpdatedAt.
func (p *Property) SetStatus(to string, now time.Time) error {
	if !ValidStatus(to) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	from := p.Status
	if from == "" {
		from = StatusDraft
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

// Visible reports whether the property appears on the public site.
func (p Property) Visible() bool {
	return p.Status == StatusActive || p.Status == StatusReserved
}
