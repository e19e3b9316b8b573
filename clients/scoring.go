// ABOUTME: Client scoring: engagement, financial and urgency sub-scores
// ABOUTME: Fixed weights and point tables; changing them breaks compatibility
package clients

import (
	"math"
	"time"

	"github.com/openimob/imob/models"
)

// Overall weighting: 30% engagement, 40% financial, 30% urgency.
const (
	weightEngagement = 0.3
	weightFinancial  = 0.4
	weightUrgency    = 0.3
)

// Category thresholds on the overall score.
const (
	categoryAThreshold = 80
	categoryBThreshold = 50
)

// CalculateClientScore computes the score as of now.
func CalculateClientScore(c *models.Client, interactions []models.Interaction) models.ClientScore {
	return CalculateClientScoreAt(c, interactions, time.Now().UTC())
}

// CalculateClientScoreAt is the pure form: the same client, interactions
// and reference time always produce the same score.
func CalculateClientScoreAt(c *models.Client, interactions []models.Interaction, now time.Time) models.ClientScore {
	engagement := engagementScore(interactions, now)
	financial := financialScore(c)
	urgency := urgencyScore(c)

	overall := int(math.Round(
		weightEngagement*float64(engagement) +
			weightFinancial*float64(financial) +
			weightUrgency*float64(urgency)))

	return models.ClientScore{
		Engagement: engagement,
		Financial:  financial,
		Urgency:    urgency,
		Overall:    overall,
		Category:   categoryFor(overall),
	}
}

// engagementScore gives 10 points per interaction in the last 30 days,
// capped at 100.
func engagementScore(interactions []models.Interaction, now time.Time) int {
	cutoff := now.AddDate(0, 0, -30)
	recent := 0
	for _, it := range interactions {
		if !it.OccurredAt.Before(cutoff) && !it.OccurredAt.After(now) {
			recent++
		}
	}
	score := recent * 10
	if score > 100 {
		score = 100
	}
	return score
}

// financialScore sums income-bracket points, credit flags and a spouse
// income bonus. The maximum is exactly 100 (40+30+10+20).
func financialScore(c *models.Client) int {
	score := 0
	switch income := c.AnnualIncome; {
	case income >= 120000:
		score += 40
	case income >= 80000:
		score += 30
	case income >= 50000:
		score += 20
	case income >= 20000:
		score += 10
	}
	if c.CreditApproved {
		score += 30
	}
	if c.HasCredit {
		score += 10
	}
	if c.Spouse != nil && c.Spouse.AnnualIncome > 0 {
		bonus := int(c.Spouse.AnnualIncome / 5000)
		if bonus > 20 {
			bonus = 20
		}
		score += bonus
	}
	return score
}

// urgencyScore is the maximum urgency of any active buyer qualification.
func urgencyScore(c *models.Client) int {
	best := 0
	for _, q := range c.Qualifications {
		if !q.Active || q.Type != models.QualificationBuyer || q.Buyer == nil {
			continue
		}
		if pts := urgencyPoints(q.Buyer.Urgency); pts > best {
			best = pts
		}
	}
	return best
}

func urgencyPoints(urgency string) int {
	switch urgency {
	case models.UrgencyImmediate:
		return 50
	case models.UrgencyThreeMonths:
		return 30
	case models.UrgencySixMonths:
		return 20
	case models.UrgencyOneYear:
		return 10
	}
	return 0
}

func categoryFor(overall int) string {
	switch {
	case overall >= categoryAThreshold:
		return models.CategoryA
	case overall >= categoryBThreshold:
		return models.CategoryB
	}
	return models.CategoryC
}
