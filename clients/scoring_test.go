// ABOUTME: Tests for the client scoring calculator
// ABOUTME: Point tables and weights are behavioral contracts; fixtures are exact
package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openimob/imob/models"
)

var scoreRef = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestScoreQuickAddClient(t *testing.T) {
	c := &models.Client{Name: "Maria"}
	score := CalculateClientScoreAt(c, nil, scoreRef)

	assert.Equal(t, 0, score.Engagement)
	assert.Equal(t, 0, score.Financial)
	assert.Equal(t, 0, score.Urgency)
	assert.Equal(t, 0, score.Overall)
	assert.Equal(t, models.CategoryC, score.Category)
}

func TestScoreFinancialBrackets(t *testing.T) {
	cases := []struct {
		income float64
		want   int
	}{
		{150000, 40},
		{120000, 40},
		{80000, 30},
		{50000, 20},
		{20000, 10},
		{19999, 0},
		{0, 0},
	}
	for _, tc := range cases {
		c := &models.Client{AnnualIncome: tc.income}
		score := CalculateClientScoreAt(c, nil, scoreRef)
		assert.Equal(t, tc.want, score.Financial, "income %.0f", tc.income)
	}
}

func TestScoreFinancialCreditAndSpouse(t *testing.T) {
	c := &models.Client{
		AnnualIncome:   120000,
		CreditApproved: true,
	}
	score := CalculateClientScoreAt(c, nil, scoreRef)
	assert.Equal(t, 70, score.Financial)
	// overall = 0.4 * 70, other components zero
	assert.Equal(t, 28, score.Overall)
	assert.Equal(t, models.CategoryC, score.Category)

	c.HasCredit = true
	c.Spouse = &models.Spouse{AnnualIncome: 60000}
	score = CalculateClientScoreAt(c, nil, scoreRef)
	// 40 + 30 + 10 + min(60000/5000, 20) = 92
	assert.Equal(t, 92, score.Financial)

	// the spouse bonus caps at 20
	c.Spouse.AnnualIncome = 500000
	score = CalculateClientScoreAt(c, nil, scoreRef)
	assert.Equal(t, 100, score.Financial)
}

func TestScoreEngagement(t *testing.T) {
	recent := func(daysAgo int) models.Interaction {
		return models.Interaction{OccurredAt: scoreRef.AddDate(0, 0, -daysAgo)}
	}
	c := &models.Client{}

	score := CalculateClientScoreAt(c, []models.Interaction{recent(1), recent(5), recent(29)}, scoreRef)
	assert.Equal(t, 30, score.Engagement)

	// interactions older than 30 days do not count
	score = CalculateClientScoreAt(c, []models.Interaction{recent(31), recent(90)}, scoreRef)
	assert.Equal(t, 0, score.Engagement)

	// caps at 100
	var many []models.Interaction
	for i := 0; i < 15; i++ {
		many = append(many, recent(2))
	}
	score = CalculateClientScoreAt(c, many, scoreRef)
	assert.Equal(t, 100, score.Engagement)
}

func TestScoreUrgency(t *testing.T) {
	buyer := func(urgency string, active bool) models.Qualification {
		return models.Qualification{
			Type:   models.QualificationBuyer,
			Active: active,
			Buyer:  &models.BuyerPreferences{Urgency: urgency},
		}
	}

	cases := []struct {
		urgency string
		want    int
	}{
		{models.UrgencyImmediate, 50},
		{models.UrgencyThreeMonths, 30},
		{models.UrgencySixMonths, 20},
		{models.UrgencyOneYear, 10},
		{"", 0},
	}
	for _, tc := range cases {
		c := &models.Client{Qualifications: []models.Qualification{buyer(tc.urgency, true)}}
		score := CalculateClientScoreAt(c, nil, scoreRef)
		assert.Equal(t, tc.want, score.Urgency, "urgency %q", tc.urgency)
	}

	// the best active buyer qualification wins; inactive ones are ignored
	c := &models.Client{Qualifications: []models.Qualification{
		buyer(models.UrgencyOneYear, true),
		buyer(models.UrgencyImmediate, false),
		buyer(models.UrgencyThreeMonths, true),
	}}
	score := CalculateClientScoreAt(c, nil, scoreRef)
	assert.Equal(t, 30, score.Urgency)

	// seller qualifications carry no urgency
	c = &models.Client{Qualifications: []models.Qualification{{
		Type:   models.QualificationSeller,
		Active: true,
		Seller: &models.SellerPreferences{Timeline: "asap"},
	}}}
	score = CalculateClientScoreAt(c, nil, scoreRef)
	assert.Equal(t, 0, score.Urgency)
}

func TestScoreCategories(t *testing.T) {
	// engagement 100, financial 100, urgency 50 -> overall 85 -> A
	c := &models.Client{
		AnnualIncome:   120000,
		CreditApproved: true,
		HasCredit:      true,
		Spouse:         &models.Spouse{AnnualIncome: 100000},
		Qualifications: []models.Qualification{{
			Type:   models.QualificationBuyer,
			Active: true,
			Buyer:  &models.BuyerPreferences{Urgency: models.UrgencyImmediate},
		}},
	}
	var many []models.Interaction
	for i := 0; i < 12; i++ {
		many = append(many, models.Interaction{OccurredAt: scoreRef.AddDate(0, 0, -1)})
	}
	score := CalculateClientScoreAt(c, many, scoreRef)
	assert.Equal(t, 85, score.Overall)
	assert.Equal(t, models.CategoryA, score.Category)

	// financial 100, urgency 50, no engagement -> overall 55 -> B
	score = CalculateClientScoreAt(c, nil, scoreRef)
	assert.Equal(t, 55, score.Overall)
	assert.Equal(t, models.CategoryB, score.Category)
}

func TestScoreIsPure(t *testing.T) {
	c := &models.Client{
		AnnualIncome: 80000,
		Qualifications: []models.Qualification{{
			Type:   models.QualificationBuyer,
			Active: true,
			Buyer:  &models.BuyerPreferences{Urgency: models.UrgencySixMonths},
		}},
	}
	first := CalculateClientScoreAt(c, nil, scoreRef)
	second := CalculateClientScoreAt(c, nil, scoreRef)
	assert.Equal(t, first, second)
}
