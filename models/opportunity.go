// ABOUTME: Opportunity pipeline entity with stage history and activity logs
// ABOUTME: Defines Stage, Status, StageEntry, Activity, Note, Proposal, Viewing
package models

import (
	"time"

	"github.com/openimob/imob/docstore"
)

// Stage is the pipeline position of an opportunity. Movement is free in
// both directions; only completed is terminal.
type Stage string

const (
	StageQualification Stage = "qualification"
	StageProspecting   Stage = "prospecting"
	StageViewing       Stage = "viewing"
	StageNegotiation   Stage = "negotiation"
	StageDocumentation Stage = "documentation"
	StageClosing       Stage = "closing"
	StageCompleted     Stage = "completed"
)

var stages = map[Stage]bool{
	StageQualification: true,
	StageProspecting:   true,
	StageViewing:       true,
	StageNegotiation:   true,
	StageClosing:       true,
	StageDocumentation: true,
	StageCompleted:     true,
}

// Valid reports whether s is a known stage name.
func (s Stage) Valid() bool {
	return stages[s]
}

// Status is the lifecycle overlay on top of the stage.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
)

// Opportunity tracks progress toward one transaction. It is usually derived
// from a qualification and lives under its client in the document layout.
type Opportunity struct {
	docstore.Meta

	ClientID        string            `json:"clientId"`
	ClientName      string            `json:"clientName,omitempty"`
	QualificationID string            `json:"qualificationId,omitempty"`
	Type            QualificationType `json:"type"`

	Title       string  `json:"title"`
	Stage       Stage   `json:"stage"`
	Status      Status  `json:"status"`
	Value       float64 `json:"value,omitempty"`
	Probability int     `json:"probability"`

	// CommissionRate is a fraction of Value, e.g. 0.05. Zero means the
	// tenant default applies.
	CommissionRate float64 `json:"commissionRate,omitempty"`

	BudgetMin   float64 `json:"budgetMin,omitempty"`
	BudgetMax   float64 `json:"budgetMax,omitempty"`
	Urgency     string  `json:"urgency,omitempty"`
	AskingPrice float64 `json:"askingPrice,omitempty"`
	Timeline    string  `json:"timeline,omitempty"`

	StageHistory []StageEntry `json:"stageHistory"`
	Activities   []Activity   `json:"activities,omitempty"`
	Notes        []Note       `json:"notes,omitempty"`
	Proposals    []Proposal   `json:"proposals,omitempty"`
	Viewings     []Viewing    `json:"viewings,omitempty"`
	DealIDs      []string     `json:"dealIds,omitempty"`

	ExpectedCloseAt *time.Time `json:"expectedCloseAt,omitempty"`
	LastActivityAt  *time.Time `json:"lastActivityAt,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`

	CreatedFrom  string `json:"createdFrom,omitempty"`
	IsActive     bool   `json:"isActive"`
	StatusReason string `json:"statusReason,omitempty"`
}

// StageEntry is one stage-history record. DurationDays stays 0 while the
// entry is the current (open) one.
type StageEntry struct {
	Stage        Stage     `json:"stage"`
	EnteredAt    time.Time `json:"enteredAt"`
	DurationDays int       `json:"durationDays"`
}

// Activity is one append-only log entry on an opportunity or deal.
type Activity struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Note is a free-form annotation.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Proposal is a price proposal attached to an opportunity.
type Proposal struct {
	ID          string    `json:"id"`
	PropertyRef string    `json:"propertyRef,omitempty"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Viewing is a scheduled property visit.
type Viewing struct {
	ID          string     `json:"id"`
	PropertyRef string     `json:"propertyRef,omitempty"`
	ScheduledAt time.Time  `json:"scheduledAt"`
	DoneAt      *time.Time `json:"doneAt,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
}

// CurrentStageEntry returns the open stage-history entry, or nil when the
// history is empty.
func (o *Opportunity) CurrentStageEntry() *StageEntry {
	if len(o.StageHistory) == 0 {
		return nil
	}
	return &o.StageHistory[len(o.StageHistory)-1]
}
