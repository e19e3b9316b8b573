// ABOUTME: Qualification sub-entity of Client
// ABOUTME: Declared interest types with type-specific preference records
package models

import "time"

// QualificationType is the declared interest of a client.
type QualificationType string

const (
	QualificationBuyer           QualificationType = "buyer"
	QualificationSeller          QualificationType = "seller"
	QualificationTenant          QualificationType = "tenant"
	QualificationLandlord        QualificationType = "landlord"
	QualificationInvestor        QualificationType = "investor"
	QualificationDeveloper       QualificationType = "developer"
	QualificationPropertyManager QualificationType = "propertyManager"
)

// Urgency buckets for buyer qualifications.
const (
	UrgencyImmediate   = "immediate"
	UrgencyThreeMonths = "3months"
	UrgencySixMonths   = "6months"
	UrgencyOneYear     = "1year"
)

var qualificationTypes = map[QualificationType]bool{
	QualificationBuyer:           true,
	QualificationSeller:          true,
	QualificationTenant:          true,
	QualificationLandlord:        true,
	QualificationInvestor:        true,
	QualificationDeveloper:       true,
	QualificationPropertyManager: true,
}

// Valid reports whether t is a known qualification type.
func (t QualificationType) Valid() bool {
	return qualificationTypes[t]
}

// Qualification is a declared interest attached to a Client. Every active
// qualification has exactly one opportunity derived from it; OpportunityID
// is written back inside the same transaction that creates it.
type Qualification struct {
	ID            string            `json:"id"`
	Type          QualificationType `json:"type"`
	Active        bool              `json:"active"`
	OpportunityID string            `json:"opportunityId,omitempty"`

	Buyer    *BuyerPreferences    `json:"buyer,omitempty"`
	Seller   *SellerPreferences   `json:"seller,omitempty"`
	Tenant   *TenantPreferences   `json:"tenant,omitempty"`
	Landlord *LandlordPreferences `json:"landlord,omitempty"`
	Investor *InvestorPreferences `json:"investor,omitempty"`
	// Extra holds the preference bag for types without a dedicated record
	// (developer, propertyManager).
	Extra map[string]any `json:"extra,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type BuyerPreferences struct {
	BudgetMin       float64  `json:"budgetMin,omitempty"`
	BudgetMax       float64  `json:"budgetMax,omitempty"`
	PropertyTypes   []string `json:"propertyTypes,omitempty"`
	Locations       []string `json:"locations,omitempty"`
	Urgency         string   `json:"urgency,omitempty"`
	FinancingNeeded bool     `json:"financingNeeded,omitempty"`
}

type SellerPreferences struct {
	AskingPrice     float64 `json:"askingPrice,omitempty"`
	PropertyType    string  `json:"propertyType,omitempty"`
	Location        string  `json:"location,omitempty"`
	Timeline        string  `json:"timeline,omitempty"`
	HasMortgage     bool    `json:"hasMortgage,omitempty"`
	ReasonForSale   string  `json:"reasonForSale,omitempty"`
	AlreadyListed   bool    `json:"alreadyListed,omitempty"`
	ExclusiveAgency bool    `json:"exclusiveAgency,omitempty"`
}

type TenantPreferences struct {
	RentMax   float64    `json:"rentMax,omitempty"`
	Locations []string   `json:"locations,omitempty"`
	MoveInBy  *time.Time `json:"moveInBy,omitempty"`
	HasPets   bool       `json:"hasPets,omitempty"`
}

type LandlordPreferences struct {
	MonthlyRent  float64 `json:"monthlyRent,omitempty"`
	PropertyType string  `json:"propertyType,omitempty"`
	Location     string  `json:"location,omitempty"`
	Furnished    bool    `json:"furnished,omitempty"`
}

type InvestorPreferences struct {
	InvestmentBudget float64  `json:"investmentBudget,omitempty"`
	TargetYield      float64  `json:"targetYield,omitempty"`
	Strategies       []string `json:"strategies,omitempty"`
	Locations        []string `json:"locations,omitempty"`
}
