// ABOUTME: Tests for derived agent metrics
// ABOUTME: Success rate, reliability points, rating buckets and badges
package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openimob/imob/models"
)

func TestSuccessRate(t *testing.T) {
	assert.Equal(t, 0, SuccessRate(&models.Agent{}), "no closed deals")
	assert.Equal(t, 80, SuccessRate(&models.Agent{SuccessfulDeals: 8, FailedDeals: 2}))
	assert.Equal(t, 100, SuccessRate(&models.Agent{SuccessfulDeals: 3}))
	assert.Equal(t, 33, SuccessRate(&models.Agent{SuccessfulDeals: 1, FailedDeals: 2}))
	assert.Equal(t, 67, SuccessRate(&models.Agent{SuccessfulDeals: 2, FailedDeals: 1}), "rounds, not truncates")
}

func TestReliabilityScore(t *testing.T) {
	a := &models.Agent{
		ResponseTime:        models.ResponseImmediate,
		RelationshipQuality: models.QualityGood,
		SuccessfulDeals:     8,
		FailedDeals:         2,
	}
	// 30 response + round(80 * 0.4) + 20 quality
	assert.Equal(t, 82, ReliabilityScore(a))

	empty := &models.Agent{}
	assert.Equal(t, 0, ReliabilityScore(empty), "unknown buckets score nothing")

	best := &models.Agent{
		ResponseTime:        models.ResponseImmediate,
		RelationshipQuality: models.QualityExcellent,
		SuccessfulDeals:     10,
	}
	assert.Equal(t, 100, ReliabilityScore(best))
}

func TestRating(t *testing.T) {
	assert.Equal(t, models.CategoryA, Rating(82))
	assert.Equal(t, models.CategoryA, Rating(70))
	assert.Equal(t, models.CategoryB, Rating(69))
	assert.Equal(t, models.CategoryB, Rating(40))
	assert.Equal(t, models.CategoryC, Rating(39))
	assert.Equal(t, models.CategoryC, Rating(0))
}

func TestBadges(t *testing.T) {
	a := &models.Agent{
		ResponseTime:    models.ResponseImmediate,
		SuccessfulDeals: 9,
		FailedDeals:     1,
		DealsTogether:   12,
		YearsExperience: 15,
	}
	badges := Badges(a)
	assert.Contains(t, badges, models.BadgeTopPerformer)
	assert.Contains(t, badges, models.BadgeFrequentPartner)
	assert.Contains(t, badges, models.BadgeImmediateResponder)
	assert.Contains(t, badges, models.BadgeVeteran)

	// a perfect rate on too few deals earns nothing
	rookie := &models.Agent{SuccessfulDeals: 2}
	assert.Empty(t, Badges(rookie))
}

func TestComputeMetrics(t *testing.T) {
	a := &models.Agent{
		ResponseTime:        models.ResponseWithinHour,
		RelationshipQuality: models.QualityNeutral,
		SuccessfulDeals:     5,
		FailedDeals:         5,
	}
	m := ComputeMetrics(a)
	assert.Equal(t, 50, m.SuccessRate)
	// 25 response + 20 scaled rate + 10 quality
	assert.Equal(t, 55, m.ReliabilityScore)
	assert.Equal(t, models.CategoryB, m.Rating)
}
