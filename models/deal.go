// ABOUTME: Buyer-side Deal sub-entity of an opportunity
// ABOUTME: Separate stage enum, offers, viewings and seller cross-link
package models

import (
	"time"

	"github.com/openimob/imob/docstore"
)

// DealStage is the buyer-side pursuit stage, a separate enum from the
// opportunity pipeline stage.
type DealStage string

const (
	DealLead            DealStage = "lead"
	DealVisitaAgendada  DealStage = "visita_agendada"
	DealVisitaRealizada DealStage = "visita_realizada"
	DealProposta        DealStage = "proposta"
	DealNegociacao      DealStage = "negociacao"
	DealContrato        DealStage = "contrato"
	DealFechado         DealStage = "fechado"
	DealPerdido         DealStage = "perdido"
)

var dealStages = map[DealStage]bool{
	DealLead:            true,
	DealVisitaAgendada:  true,
	DealVisitaRealizada: true,
	DealProposta:        true,
	DealNegociacao:      true,
	DealContrato:        true,
	DealFechado:         true,
	DealPerdido:         true,
}

// Valid reports whether s is a known deal stage.
func (s DealStage) Valid() bool {
	return dealStages[s]
}

// Terminal reports whether the deal can no longer move.
func (s DealStage) Terminal() bool {
	return s == DealFechado || s == DealPerdido
}

// Deal tracks the pursuit of one specific property for a buyer
// opportunity. Canonically stored under the opportunity; a legacy layout
// directly under the client is still readable.
type Deal struct {
	docstore.Meta

	OpportunityID string `json:"opportunityId"`
	ClientID      string `json:"clientId"`

	PropertyRef     string  `json:"propertyRef"`
	PropertyAddress string  `json:"propertyAddress,omitempty"`
	AskingPrice     float64 `json:"askingPrice,omitempty"`
	AgreedPrice     float64 `json:"agreedPrice,omitempty"`

	Stage DealStage `json:"stage"`

	// SellerOpportunityID cross-links the seller-side opportunity when both
	// sides of the transaction are managed by the same tenant.
	SellerOpportunityID string `json:"sellerOpportunityId,omitempty"`

	Viewings   []Viewing  `json:"viewings,omitempty"`
	Offers     []Offer    `json:"offers,omitempty"`
	Activities []Activity `json:"activities,omitempty"`

	ClosedAt *time.Time `json:"closedAt,omitempty"`
}

// Offer is one bid on the pursued property.
type Offer struct {
	ID        string    `json:"id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Offer statuses.
const (
	OfferPending  = "pending"
	OfferAccepted = "accepted"
	OfferRejected = "rejected"
	OfferCountered = "countered"
)
