// ABOUTME: Tests for the opportunity pipeline service
// ABOUTME: Stage history, status overlays, proposals and the attention scan
package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
)

func newTestService() (*Service, *docstore.MemoryBackend) {
	be := docstore.NewMemoryBackend()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewService(be, log), be
}

func createTestOpp(t *testing.T, s *Service, stage models.Stage) *models.Opportunity {
	t.Helper()
	opp, err := s.Create(context.Background(), "t1", "c1", &models.Opportunity{
		Title: "Compra - Maria",
		Type:  models.QualificationBuyer,
		Stage: stage,
		Value: 300000,
	})
	require.NoError(t, err)
	return opp
}

func TestCreateOpportunity(t *testing.T) {
	s, be := newTestService()
	defer be.Close()

	opp := createTestOpp(t, s, "")
	assert.NotEmpty(t, opp.ID)
	assert.Equal(t, models.StageQualification, opp.Stage, "stage defaults to qualification")
	assert.Equal(t, models.StatusActive, opp.Status)
	assert.Equal(t, "manual", opp.CreatedFrom)
	assert.Equal(t, 10, opp.Probability)
	require.Len(t, opp.StageHistory, 1)
	assert.Equal(t, 0, opp.StageHistory[0].DurationDays)

	// nested under its client, readable tenant-wide by id
	got, err := s.Get(context.Background(), "t1", opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ClientID)
}

func TestCreateOpportunityValidation(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()

	_, err := s.Create(ctx, "t1", "", &models.Opportunity{Title: "x"})
	assert.True(t, docstore.IsValidation(err))

	_, err = s.Create(ctx, "t1", "c1", &models.Opportunity{Title: "x", Stage: "limbo"})
	assert.True(t, docstore.IsValidation(err))

	_, err = s.Create(ctx, "t1", "c1", &models.Opportunity{})
	assert.True(t, docstore.IsValidation(err), "missing title")
}

func TestMoveToStageHistory(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()

	opp := createTestOpp(t, s, "")
	moves := []models.Stage{
		models.StageProspecting,
		models.StageViewing,
		models.StageNegotiation,
	}
	var got *models.Opportunity
	var err error
	for _, stage := range moves {
		got, err = s.MoveToStage(ctx, "t1", opp.ID, stage)
		require.NoError(t, err)
	}

	// one open entry per stage visited
	require.Len(t, got.StageHistory, len(moves)+1)
	last := got.StageHistory[len(got.StageHistory)-1]
	assert.Equal(t, models.StageNegotiation, last.Stage)
	assert.Equal(t, 0, last.DurationDays, "the open entry has no duration yet")
	for _, entry := range got.StageHistory[:len(got.StageHistory)-1] {
		assert.NotZero(t, entry.DurationDays, "closed entry %s must record at least a day", entry.Stage)
	}
	assert.Equal(t, models.StageNegotiation, got.Stage)
	assert.Equal(t, 60, got.Probability)
	require.NotNil(t, got.LastActivityAt)

	// a stage_changed activity per move
	assert.Len(t, got.Activities, len(moves))

	// moving backward is allowed
	got, err = s.MoveToStage(ctx, "t1", opp.ID, models.StageViewing)
	require.NoError(t, err)
	assert.Equal(t, models.StageViewing, got.Stage)
	assert.Len(t, got.StageHistory, len(moves)+2)
}

func TestMoveToSameStageIsNoOp(t *testing.T) {
	s, be := newTestService()
	defer be.Close()

	opp := createTestOpp(t, s, models.StageViewing)
	got, err := s.MoveToStage(context.Background(), "t1", opp.ID, models.StageViewing)
	require.NoError(t, err)
	assert.Len(t, got.StageHistory, 1)
	assert.Empty(t, got.Activities)
}

func TestMoveToCompletedIsTerminal(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()

	opp := createTestOpp(t, s, models.StageClosing)
	got, err := s.MoveToStage(ctx, "t1", opp.ID, models.StageCompleted)
	require.NoError(t, err)

	assert.Equal(t, models.StageCompleted, got.Stage)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.False(t, got.IsActive)
	assert.Equal(t, 100, got.Probability)
	require.NotNil(t, got.ClosedAt)

	_, err = s.Reactivate(ctx, "t1", got.ID)
	assert.True(t, docstore.IsValidation(err), "completed cannot be reactivated")
}

func TestStatusOverlays(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()

	opp := createTestOpp(t, s, models.StageNegotiation)

	paused, err := s.Pause(ctx, "t1", opp.ID, "client traveling")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, paused.Status)
	assert.False(t, paused.IsActive)
	assert.Equal(t, "client traveling", paused.StatusReason)
	assert.Equal(t, 50, paused.Probability, "negotiation base minus the pause penalty")

	active, err := s.Reactivate(ctx, "t1", opp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)
	assert.True(t, active.IsActive)
	assert.Equal(t, 60, active.Probability)

	cancelled, err := s.Cancel(ctx, "t1", opp.ID, "bought elsewhere")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, cancelled.Probability)
	assert.Equal(t, models.StageNegotiation, cancelled.Stage, "stage survives cancellation")
}

func TestAddNoteAndActivity(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()

	opp := createTestOpp(t, s, "")

	got, err := s.AddNote(ctx, "t1", opp.ID, "prefers the north side of town")
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.NotEmpty(t, got.Notes[0].ID)

	_, err = s.AddNote(ctx, "t1", opp.ID, "")
	assert.True(t, docstore.IsValidation(err))

	got, err = s.AddActivity(ctx, "t1", opp.ID, "call", "spoke about financing")
	require.NoError(t, err)
	require.Len(t, got.Activities, 1)
	assert.Equal(t, "call", got.Activities[0].Type)
	require.NotNil(t, got.LastActivityAt)
}

func TestScheduleViewing(t *testing.T) {
	s, be := newTestService()
	defer be.Close()

	opp := createTestOpp(t, s, models.StageProspecting)
	at := time.Now().UTC().AddDate(0, 0, 2)
	got, err := s.ScheduleViewing(context.Background(), "t1", opp.ID, "AP-1021", at)
	require.NoError(t, err)

	require.Len(t, got.Viewings, 1)
	assert.Equal(t, "AP-1021", got.Viewings[0].PropertyRef)
	assert.Len(t, got.Activities, 1)
}

func TestAddProposalAutoAdvances(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()

	opp := createTestOpp(t, s, models.StageViewing)
	got, err := s.AddProposal(ctx, "t1", opp.ID, models.Proposal{Amount: 285000, PropertyRef: "AP-1021"})
	require.NoError(t, err)

	require.Len(t, got.Proposals, 1)
	assert.Equal(t, "pending", got.Proposals[0].Status)
	assert.Equal(t, models.StageNegotiation, got.Stage, "viewing advances on first proposal")
	require.Len(t, got.StageHistory, 2)
	assert.Equal(t, models.StageNegotiation, got.StageHistory[1].Stage)

	// outside the viewing stage a proposal does not move the opportunity
	got, err = s.AddProposal(ctx, "t1", opp.ID, models.Proposal{Amount: 290000})
	require.NoError(t, err)
	assert.Equal(t, models.StageNegotiation, got.Stage)
	require.Len(t, got.StageHistory, 2)

	_, err = s.AddProposal(ctx, "t1", opp.ID, models.Proposal{Amount: 0})
	assert.True(t, docstore.IsValidation(err))
}

func TestNeedingAttention(t *testing.T) {
	s, be := newTestService()
	defer be.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	healthy := createTestOpp(t, s, models.StageViewing)
	_, err := s.AddActivity(ctx, "t1", healthy.ID, "call", "recent touch")
	require.NoError(t, err)

	// stale: no activity for 10 days
	stale := createTestOpp(t, s, models.StageViewing)
	_, err = s.repo.Update(ctx, "t1", stale.ID, map[string]any{
		"lastActivityAt": now.AddDate(0, 0, -10),
	})
	require.NoError(t, err)

	// overdue and at risk: past close, high value, low probability
	overdue := createTestOpp(t, s, models.StageQualification)
	_, err = s.repo.Update(ctx, "t1", overdue.ID, map[string]any{
		"expectedCloseAt": now.AddDate(0, 0, -2),
		"lastActivityAt":  now,
	})
	require.NoError(t, err)

	// cancelled opportunities are never flagged
	cancelled := createTestOpp(t, s, models.StageViewing)
	_, err = s.Cancel(ctx, "t1", cancelled.ID, "gone")
	require.NoError(t, err)

	flagged, err := s.NeedingAttention(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, flagged, 2)

	// critical first
	assert.Equal(t, overdue.ID, flagged[0].Opportunity.ID)
	assert.Equal(t, PriorityCritical, flagged[0].Priority)
	assert.Contains(t, flagged[0].Reasons, "past expected close date")

	assert.Equal(t, stale.ID, flagged[1].Opportunity.ID)
	assert.Equal(t, PriorityMedium, flagged[1].Priority)
}

func TestAdvanceHistory(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	history := []models.StageEntry{{Stage: models.StageQualification, EnteredAt: start}}

	next := advanceHistory(history, models.StageProspecting, start.AddDate(0, 0, 5))
	require.Len(t, next, 2)
	assert.Equal(t, 5, next[0].DurationDays, "closing the open entry records its duration")
	assert.Equal(t, models.StageProspecting, next[1].Stage)
	assert.Equal(t, 0, next[1].DurationDays)

	// the input slice is not mutated
	assert.Equal(t, 0, history[0].DurationDays)

	// works from empty
	assert.Len(t, advanceHistory(nil, models.StageQualification, start), 1)
}
