// ABOUTME: Pure agent metric derivations: success rate, reliability, rating
// ABOUTME: Bucket point tables are fixed for behavioral compatibility
package agents

import (
	"math"

	"github.com/openimob/imob/models"
)

// Rating thresholds on the reliability score.
const (
	ratingAThreshold = 70
	ratingBThreshold = 40
)

// Response-time bucket points (max 30).
var responsePoints = map[string]int{
	models.ResponseImmediate:  30,
	models.ResponseWithinHour: 25,
	models.ResponseWithinDay:  15,
	models.ResponseSlow:       5,
}

// Relationship-quality points (max 30).
var qualityPoints = map[string]int{
	models.QualityExcellent: 30,
	models.QualityGood:      20,
	models.QualityNeutral:   10,
	models.QualityDifficult: 0,
}

// SuccessRate is the percentage of closed deals that succeeded. An agent
// with no closed deals rates 0.
func SuccessRate(a *models.Agent) int {
	total := a.SuccessfulDeals + a.FailedDeals
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(a.SuccessfulDeals) / float64(total) * 100))
}

// ReliabilityScore sums response-time points (max 30), scaled success rate
// (max 40) and relationship-quality points (max 30).
func ReliabilityScore(a *models.Agent) int {
	rate := SuccessRate(a)
	return responsePoints[a.ResponseTime] +
		int(math.Round(float64(rate)*0.4)) +
		qualityPoints[a.RelationshipQuality]
}

// Rating buckets the reliability score into a letter grade.
func Rating(score int) string {
	switch {
	case score >= ratingAThreshold:
		return models.CategoryA
	case score >= ratingBThreshold:
		return models.CategoryB
	}
	return models.CategoryC
}

// Badges derives the agent's badges from thresholds.
func Badges(a *models.Agent) []string {
	var badges []string
	if SuccessRate(a) >= 80 && a.SuccessfulDeals+a.FailedDeals >= 5 {
		badges = append(badges, models.BadgeTopPerformer)
	}
	if a.DealsTogether >= 10 {
		badges = append(badges, models.BadgeFrequentPartner)
	}
	if a.ResponseTime == models.ResponseImmediate {
		badges = append(badges, models.BadgeImmediateResponder)
	}
	if a.YearsExperience >= 10 {
		badges = append(badges, models.BadgeVeteran)
	}
	return badges
}

// ComputeMetrics derives the full metric record for an agent.
func ComputeMetrics(a *models.Agent) models.AgentMetrics {
	score := ReliabilityScore(a)
	return models.AgentMetrics{
		SuccessRate:      SuccessRate(a),
		ReliabilityScore: score,
		Rating:           Rating(score),
		Badges:           Badges(a),
	}
}
