// ABOUTME: Needs-attention scan over a tenant's active opportunities
// ABOUTME: Flags stale, stuck, overdue and at-risk records, ranked by priority
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
)

// Attention flags one opportunity that needs the consultant's attention.
type Attention struct {
	Opportunity *models.Opportunity `json:"opportunity"`
	Reasons     []string            `json:"reasons"`
	Priority    string              `json:"priority"`
}

// NeedingAttention scans active opportunities and flags any that are
// stale (no activity in more than 7 days), stuck past the per-stage
// maximum, past their expected close date, or high-value with low
// probability. Results are ordered critical first.
func (s *Service) NeedingAttention(ctx context.Context, tenantID string) ([]Attention, error) {
	return s.needingAttentionAt(ctx, tenantID, time.Now().UTC())
}

func (s *Service) needingAttentionAt(ctx context.Context, tenantID string, now time.Time) ([]Attention, error) {
	page, err := s.repo.List(ctx, tenantID, docstore.ListOptions{
		Filters: []docstore.Filter{{Field: "status", Op: "==", Value: string(models.StatusActive)}},
	})
	if err != nil {
		return nil, err
	}

	var flagged []Attention
	for _, opp := range page.Items {
		reasons := attentionReasons(opp, now)
		if len(reasons) == 0 {
			continue
		}
		flagged = append(flagged, Attention{
			Opportunity: opp,
			Reasons:     reasons,
			Priority:    calculatePriorityAt(opp, now),
		})
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return priorityRank[flagged[i].Priority] > priorityRank[flagged[j].Priority]
	})
	return flagged, nil
}

func attentionReasons(o *models.Opportunity, now time.Time) []string {
	var reasons []string
	if d := daysSinceActivity(o, now); d > 7 {
		reasons = append(reasons, fmt.Sprintf("no activity for %d days", d))
	}
	if stuckInStage(o, now) {
		reasons = append(reasons, fmt.Sprintf("stuck in %s beyond %d days", o.Stage, maxStageDays[o.Stage]))
	}
	if o.ExpectedCloseAt != nil && now.After(*o.ExpectedCloseAt) {
		reasons = append(reasons, "past expected close date")
	}
	if o.Value > 200000 && o.Probability < 30 {
		reasons = append(reasons, "high value with low probability")
	}
	return reasons
}
