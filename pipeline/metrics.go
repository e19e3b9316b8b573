// ABOUTME: Pure opportunity calculators: probability, commission, priority
// ABOUTME: No I/O; used by the pipeline service and the deriver
package pipeline

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openimob/imob/models"
)

// DefaultCommissionRate applies when an opportunity has no explicit rate.
const DefaultCommissionRate = 0.05

// Priority levels for attention ranking.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

var priorityRank = map[string]int{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityMedium:   1,
	PriorityLow:      0,
}

var stageBaseProbability = map[models.Stage]int{
	models.StageQualification: 10,
	models.StageProspecting:   25,
	models.StageViewing:       40,
	models.StageNegotiation:   60,
	models.StageDocumentation: 75,
	models.StageClosing:       90,
	models.StageCompleted:     100,
}

// maxStageDays is how long an opportunity may sit in a stage before it
// counts as stuck.
var maxStageDays = map[models.Stage]int{
	models.StageQualification: 7,
	models.StageProspecting:   14,
	models.StageViewing:       14,
	models.StageNegotiation:   7,
	models.StageDocumentation: 14,
	models.StageClosing:       7,
}

// CalculateProbability derives the close probability from stage and
// urgency. Completed is always 100, cancelled always 0.
func CalculateProbability(o *models.Opportunity) int {
	if o.Status == models.StatusCancelled {
		return 0
	}
	if o.Stage == models.StageCompleted {
		return 100
	}
	p := stageBaseProbability[o.Stage]
	if o.Urgency == models.UrgencyImmediate {
		p += 10
	}
	if o.Status == models.StatusPaused {
		p -= 10
	}
	if p < 0 {
		p = 0
	}
	if p > 95 {
		p = 95
	}
	return p
}

// CalculateCommission returns the expected commission on the opportunity
// value, using the default rate when none is set.
func CalculateCommission(o *models.Opportunity) decimal.Decimal {
	rate := o.CommissionRate
	if rate == 0 {
		rate = DefaultCommissionRate
	}
	return decimal.NewFromFloat(o.Value).
		Mul(decimal.NewFromFloat(rate)).
		Round(2)
}

// CalculatePriority ranks how urgently an opportunity needs attention.
func CalculatePriority(o *models.Opportunity) string {
	return calculatePriorityAt(o, time.Now().UTC())
}

func calculatePriorityAt(o *models.Opportunity, now time.Time) string {
	if o.ExpectedCloseAt != nil && now.After(*o.ExpectedCloseAt) {
		return PriorityCritical
	}
	if o.Value > 200000 && o.Probability < 30 {
		return PriorityCritical
	}
	if stuckInStage(o, now) {
		return PriorityHigh
	}
	if daysSinceActivity(o, now) > 7 {
		return PriorityMedium
	}
	return PriorityLow
}

func stuckInStage(o *models.Opportunity, now time.Time) bool {
	max, ok := maxStageDays[o.Stage]
	if !ok {
		return false
	}
	entry := o.CurrentStageEntry()
	if entry == nil {
		return false
	}
	return daysBetween(entry.EnteredAt, now) > max
}

func daysSinceActivity(o *models.Opportunity, now time.Time) int {
	last := o.CreatedAt
	if o.LastActivityAt != nil {
		last = *o.LastActivityAt
	}
	return daysBetween(last, now)
}

// daysBetween returns whole days from a to b, never negative.
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}

// closedDuration is the recorded span of a finished stage entry. Partial
// days round up and the floor is 1, so a zero duration always means the
// entry is still open.
func closedDuration(from, to time.Time) int {
	if !to.After(from) {
		return 1
	}
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}
