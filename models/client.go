// ABOUTME: Client entity and its embedded sub-records
// ABOUTME: Defines Client, Spouse, Address, ClientScore and interaction log types
package models

import (
	"time"

	"github.com/openimob/imob/docstore"
)

// CreditStatus flags feeding the financial score.
const (
	CreditNone        = "none"
	CreditExisting    = "existing"
	CreditPreApproved = "pre_approved"
)

// Score categories.
const (
	CategoryA = "A"
	CategoryB = "B"
	CategoryC = "C"
)

// MaritalStatus values.
const (
	MaritalSingle   = "single"
	MaritalMarried  = "married"
	MaritalUnion    = "civil_union"
	MaritalDivorced = "divorced"
	MaritalWidowed  = "widowed"
)

// Client is a person or household managed by one consultant (tenant).
type Client struct {
	docstore.Meta

	Name        string     `json:"name" validate:"required,min=2"`
	NIF         string     `json:"nif,omitempty"`
	CCNumber    string     `json:"ccNumber,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`

	Phone    string `json:"phone,omitempty"`
	PhoneAlt string `json:"phoneAlt,omitempty"`
	Email    string `json:"email,omitempty"`
	EmailAlt string `json:"emailAlt,omitempty"`

	Address Address `json:"address"`

	AnnualIncome   float64 `json:"annualIncome,omitempty"`
	CreditApproved bool    `json:"creditApproved"`
	HasCredit      bool    `json:"hasCredit"`

	MaritalStatus string  `json:"maritalStatus,omitempty"`
	Spouse        *Spouse `json:"spouse,omitempty"`

	Qualifications []Qualification `json:"qualifications,omitempty"`
	Tags           []string        `json:"tags,omitempty"`

	Score ClientScore `json:"clientScore"`

	IsQuickAdd      bool   `json:"isQuickAdd"`
	ProfileComplete bool   `json:"profileComplete"`
	ReferredBy      string `json:"referredBy,omitempty"`

	LastContactAt  *time.Time `json:"lastContactAt,omitempty"`
	NextFollowUpAt *time.Time `json:"nextFollowUpAt,omitempty"`

	DealStats DealStats `json:"dealStats"`

	// NeedsRepair marks a client whose qualification derivation partially
	// failed, so a later pass can reconcile missing opportunities.
	NeedsRepair bool `json:"needsRepair,omitempty"`
}

// Spouse is an embedded household member. It can be promoted to an
// independent Client, after which both records link to each other.
type Spouse struct {
	Name           string  `json:"name"`
	NIF            string  `json:"nif,omitempty"`
	Email          string  `json:"email,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	AnnualIncome   float64 `json:"annualIncome,omitempty"`
	LinkedClientID string  `json:"linkedClientId,omitempty"`
}

// Address is a structured Portuguese address.
type Address struct {
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	City       string `json:"city,omitempty"`
	District   string `json:"district,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ClientScore holds the computed sub-scores (0-100 each), the weighted
// overall score and the A/B/C category.
type ClientScore struct {
	Engagement int    `json:"engagement"`
	Financial  int    `json:"financial"`
	Urgency    int    `json:"urgency"`
	Overall    int    `json:"overall"`
	Category   string `json:"category"`
}

// Interaction is one recorded touch with a client, used by the engagement
// score.
type Interaction struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Notes      string    `json:"notes,omitempty"`
}

// DealStats aggregates closed business for a client.
type DealStats struct {
	TotalDeals  int     `json:"totalDeals"`
	ClosedDeals int     `json:"closedDeals"`
	TotalVolume float64 `json:"totalVolume"`
}

// HasCompleteProfile reports whether the identity fields required to flip
// profileComplete are all present.
func (c *Client) HasCompleteProfile() bool {
	return c.NIF != "" && c.Address.Street != "" && c.Address.PostalCode != "" && c.DateOfBirth != nil
}

// QualificationByID returns the qualification with the given id, or nil.
func (c *Client) QualificationByID(id string) *Qualification {
	for i := range c.Qualifications {
		if c.Qualifications[i].ID == id {
			return &c.Qualifications[i]
		}
	}
	return nil
}

// TenantCounters is the per-tenant bookkeeping document backing
// subscription limits.
type TenantCounters struct {
	docstore.Meta

	ClientCount      int `json:"clientCount"`
	OpportunityCount int `json:"opportunityCount"`
}
