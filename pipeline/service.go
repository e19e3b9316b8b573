// ABOUTME: Opportunity pipeline manager: stage moves, status overlays, logs
// ABOUTME: Maintains the append-only stage history and activity records
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
)

// CollectionOpportunities is the nested collection name under a client.
const CollectionOpportunities = "opportunities"

const collectionClients = "clients"

// Service manages opportunities across all clients of a tenant. Reads go
// through a collection-group scan since opportunities nest under clients.
type Service struct {
	be   docstore.Backend
	repo *docstore.Repository[models.Opportunity, *models.Opportunity]
	log  *logrus.Logger
}

// NewService wires a pipeline manager on the given backend.
func NewService(be docstore.Backend, log *logrus.Logger, opts ...docstore.RepositoryOption) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		be:   be,
		repo: docstore.NewRepository[models.Opportunity, *models.Opportunity](be, CollectionOpportunities, append([]docstore.RepositoryOption{docstore.WithGroupReads(), docstore.WithLogger(log)}, opts...)...),
		log:  log,
	}
}

// Repository exposes the opportunity repository for list, count, subscribe
// and stats.
func (s *Service) Repository() *docstore.Repository[models.Opportunity, *models.Opportunity] {
	return s.repo
}

// Create persists a manually created opportunity under its client.
func (s *Service) Create(ctx context.Context, tenantID, clientID string, opp *models.Opportunity) (*models.Opportunity, error) {
	if clientID == "" {
		return nil, &docstore.ValidationError{Field: "clientId", Message: "required"}
	}
	if opp.Stage == "" {
		opp.Stage = models.StageQualification
	}
	if !opp.Stage.Valid() {
		return nil, &docstore.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", opp.Stage)}
	}
	if opp.Title == "" {
		return nil, &docstore.ValidationError{Field: "title", Message: "required"}
	}
	opp.ClientID = clientID
	opp.Status = models.StatusActive
	opp.IsActive = true
	if opp.CreatedFrom == "" {
		opp.CreatedFrom = "manual"
	}
	opp.StageHistory = []models.StageEntry{{Stage: opp.Stage, EnteredAt: time.Now().UTC()}}
	opp.Probability = CalculateProbability(opp)

	err := s.repo.Under(collectionClients, clientID).Create(ctx, tenantID, opp, docstore.CreateOptions{})
	if err != nil {
		return nil, err
	}
	return opp, nil
}

// Get fetches one opportunity by id, wherever it nests.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Opportunity, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// MoveToStage moves the opportunity to a new stage, closing the open
// stage-history entry and opening a new one. Moving to completed is
// terminal: status flips, closure is timestamped and probability is 100.
func (s *Service) MoveToStage(ctx context.Context, tenantID, id string, newStage models.Stage) (*models.Opportunity, error) {
	if !newStage.Valid() {
		return nil, &docstore.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", newStage)}
	}
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if opp.Stage == newStage {
		return opp, nil
	}

	now := time.Now().UTC()
	history := advanceHistory(opp.StageHistory, newStage, now)

	opp.Stage = newStage
	patch := map[string]any{
		"stage":        string(newStage),
		"stageHistory": docstore.EncodeValue(history),
	}
	if newStage == models.StageCompleted {
		opp.Status = models.StatusCompleted
		patch["status"] = string(models.StatusCompleted)
		patch["isActive"] = false
		patch["closedAt"] = now
		patch["probability"] = 100
	} else {
		patch["probability"] = CalculateProbability(opp)
	}
	patch["activities"] = docstore.EncodeValue(appendActivity(opp.Activities, "stage_changed",
		fmt.Sprintf("moved to %s", newStage), now))
	patch["lastActivityAt"] = now

	return s.repo.Update(ctx, tenantID, id, patch)
}

// Cancel marks the opportunity cancelled, keeping all history.
func (s *Service) Cancel(ctx context.Context, tenantID, id, reason string) (*models.Opportunity, error) {
	return s.setStatus(ctx, tenantID, id, models.StatusCancelled, reason)
}

// Pause suspends an active opportunity.
func (s *Service) Pause(ctx context.Context, tenantID, id, reason string) (*models.Opportunity, error) {
	return s.setStatus(ctx, tenantID, id, models.StatusPaused, reason)
}

// Reactivate returns a paused or cancelled opportunity to the active
// status. Completed opportunities stay completed.
func (s *Service) Reactivate(ctx context.Context, tenantID, id string) (*models.Opportunity, error) {
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if opp.Status == models.StatusCompleted {
		return nil, &docstore.ValidationError{Field: "status", Message: "completed opportunities cannot be reactivated"}
	}
	return s.setStatus(ctx, tenantID, id, models.StatusActive, "")
}

func (s *Service) setStatus(ctx context.Context, tenantID, id string, status models.Status, reason string) (*models.Opportunity, error) {
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	summary := fmt.Sprintf("status set to %s", status)
	if reason != "" {
		summary += ": " + reason
	}

	opp.Status = status
	patch := map[string]any{
		"status":       string(status),
		"isActive":     status == models.StatusActive,
		"statusReason": reason,
		"probability":  CalculateProbability(opp),
		"activities":   docstore.EncodeValue(appendActivity(opp.Activities, "status_changed", summary, now)),
	}
	return s.repo.Update(ctx, tenantID, id, patch)
}

// AddActivity appends one entry to the activity log and refreshes the
// last-activity stamp.
func (s *Service) AddActivity(ctx context.Context, tenantID, id string, activityType, summary string) (*models.Opportunity, error) {
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"activities":     docstore.EncodeValue(appendActivity(opp.Activities, activityType, summary, now)),
		"lastActivityAt": now,
	})
}

// AddNote appends a free-form note.
func (s *Service) AddNote(ctx context.Context, tenantID, id, content string) (*models.Opportunity, error) {
	if content == "" {
		return nil, &docstore.ValidationError{Field: "content", Message: "required"}
	}
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	notes := append(append([]models.Note{}, opp.Notes...), models.Note{
		ID:        docstore.NewLogID(),
		Content:   content,
		CreatedAt: now,
	})
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"notes":          docstore.EncodeValue(notes),
		"lastActivityAt": now,
	})
}

// ScheduleViewing appends a viewing and logs the activity.
func (s *Service) ScheduleViewing(ctx context.Context, tenantID, id, propertyRef string, at time.Time) (*models.Opportunity, error) {
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	viewings := append(append([]models.Viewing{}, opp.Viewings...), models.Viewing{
		ID:          docstore.NewLogID(),
		PropertyRef: propertyRef,
		ScheduledAt: at.UTC(),
	})
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"viewings":       docstore.EncodeValue(viewings),
		"activities":     docstore.EncodeValue(appendActivity(opp.Activities, "viewing_scheduled", "viewing scheduled for "+propertyRef, now)),
		"lastActivityAt": now,
	})
}

// AddProposal appends a proposal. An opportunity sitting in the viewing
// stage is auto-advanced to negotiation as a side effect.
func (s *Service) AddProposal(ctx context.Context, tenantID, id string, proposal models.Proposal) (*models.Opportunity, error) {
	if proposal.Amount <= 0 {
		return nil, &docstore.ValidationError{Field: "amount", Message: "must be positive"}
	}
	opp, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	proposal.ID = docstore.NewLogID()
	proposal.CreatedAt = now
	if proposal.Status == "" {
		proposal.Status = "pending"
	}
	proposals := append(append([]models.Proposal{}, opp.Proposals...), proposal)

	patch := map[string]any{
		"proposals":      docstore.EncodeValue(proposals),
		"activities":     docstore.EncodeValue(appendActivity(opp.Activities, "proposal_added", fmt.Sprintf("proposal of %.2f", proposal.Amount), now)),
		"lastActivityAt": now,
	}
	if opp.Stage == models.StageViewing {
		opp.Stage = models.StageNegotiation
		patch["stage"] = string(models.StageNegotiation)
		patch["stageHistory"] = docstore.EncodeValue(advanceHistory(opp.StageHistory, models.StageNegotiation, now))
		patch["probability"] = CalculateProbability(opp)
	}
	return s.repo.Update(ctx, tenantID, id, patch)
}

// advanceHistory closes the open entry's duration and appends the new
// stage. The returned slice is always one longer than the input.
func advanceHistory(history []models.StageEntry, next models.Stage, now time.Time) []models.StageEntry {
	out := append([]models.StageEntry{}, history...)
	if len(out) > 0 {
		last := &out[len(out)-1]
		last.DurationDays = closedDuration(last.EnteredAt, now)
	}
	return append(out, models.StageEntry{Stage: next, EnteredAt: now})
}

func appendActivity(activities []models.Activity, activityType, summary string, now time.Time) []models.Activity {
	return append(append([]models.Activity{}, activities...), models.Activity{
		ID:         docstore.NewLogID(),
		Type:       activityType,
		Summary:    summary,
		OccurredAt: now,
	})
}
