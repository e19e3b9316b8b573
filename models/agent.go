// ABOUTME: Agent entity for external collaborators
// ABOUTME: Profile, relationship quality, response buckets and derived metrics
package models

import (
	"time"

	"github.com/openimob/imob/docstore"
)

// RelationshipQuality buckets for an agent.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityNeutral   = "neutral"
	QualityDifficult = "difficult"
)

// Response-time buckets.
const (
	ResponseImmediate  = "immediate"
	ResponseWithinHour = "within_hour"
	ResponseWithinDay  = "within_day"
	ResponseSlow       = "slow"
)

// Agent is an external collaborator: a competing or partner agent, or the
// consultant's own representation on the other side of a transaction.
type Agent struct {
	docstore.Meta

	Name          string `json:"name" validate:"required,min=2"`
	Agency        string `json:"agency,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	LicenseNumber string `json:"licenseNumber,omitempty"`

	RelationshipQuality string `json:"relationshipQuality,omitempty"`
	ResponseTime        string `json:"responseTime,omitempty"`

	// CommissionSplit is this side's fraction of a shared commission.
	CommissionSplit float64 `json:"commissionSplit,omitempty"`

	YearsExperience int  `json:"yearsExperience,omitempty"`
	IsSelf          bool `json:"isSelf,omitempty"`

	SuccessfulDeals int `json:"successfulDeals"`
	FailedDeals     int `json:"failedDeals"`
	DealsTogether   int `json:"dealsTogether"`

	Interactions []AgentInteraction `json:"interactions,omitempty"`

	Metrics AgentMetrics `json:"metrics"`
}

// AgentInteraction is one logged exchange with the agent.
type AgentInteraction struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Summary    string    `json:"summary,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AgentMetrics holds the derived reliability figures. They are recomputed
// whenever the underlying counters change, never edited directly.
type AgentMetrics struct {
	SuccessRate      int      `json:"successRate"`
	ReliabilityScore int      `json:"reliabilityScore"`
	Rating           string   `json:"rating"`
	Badges           []string `json:"badges,omitempty"`
}

// Badge names.
const (
	BadgeTopPerformer       = "top_performer"
	BadgeFrequentPartner    = "frequent_partner"
	BadgeImmediateResponder = "immediate_responder"
	BadgeVeteran            = "veteran"
)
