// ABOUTME: End-to-end test over the wired CRM facade
// ABOUTME: Exercises the full client -> qualification -> pipeline -> deal flow
package imob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openimob/imob/clients"
	"github.com/openimob/imob/config"
	"github.com/openimob/imob/models"
)

func TestOpenMemoryStore(t *testing.T) {
	crm, err := Open(context.Background(), config.Config{Store: config.StoreMemory, LogLevel: "error"})
	require.NoError(t, err)
	defer crm.Close()

	require.NotNil(t, crm.Clients)
	require.NotNil(t, crm.Pipeline)
	require.NotNil(t, crm.Deals)
	require.NotNil(t, crm.Agents)
}

func TestOpenAppliesSearchScanLimit(t *testing.T) {
	ctx := context.Background()
	crm, err := Open(ctx, config.Config{Store: config.StoreMemory, LogLevel: "error", SearchScanLimit: 1})
	require.NoError(t, err)
	defer crm.Close()

	_, err = crm.Clients.QuickAdd(ctx, "t1", clients.QuickAddInput{Name: "Maria Alves"})
	require.NoError(t, err)
	_, err = crm.Clients.QuickAdd(ctx, "t1", clients.QuickAddInput{Name: "Maria Braga"})
	require.NoError(t, err)

	hits, err := crm.Clients.Repository().Search(ctx, "t1", "maria", []string{"name"})
	require.NoError(t, err)
	assert.Len(t, hits, 1, "search scans at most the configured number of documents")
}

func TestOpenUnknownStore(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: "punchcards"})
	assert.Error(t, err)
}

func TestOpenFirestoreRequiresProject(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: config.StoreFirestore})
	assert.Error(t, err)
}

func TestClientToClosedDealFlow(t *testing.T) {
	ctx := context.Background()
	crm, err := Open(ctx, config.Config{Store: config.StoreMemory, LogLevel: "error"})
	require.NoError(t, err)
	defer crm.Close()

	const tenant = "t1"

	client, err := crm.Clients.CreateFull(ctx, tenant, &models.Client{
		Name:         "Maria Silva",
		NIF:          "123456789",
		Email:        "maria@example.pt",
		AnnualIncome: 95000,
		Qualifications: []models.Qualification{{
			Type:   models.QualificationBuyer,
			Active: true,
			Buyer: &models.BuyerPreferences{
				BudgetMax: 350000,
				Urgency:   models.UrgencyThreeMonths,
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, client.Qualifications, 1)

	oppID := client.Qualifications[0].OpportunityID
	require.NotEmpty(t, oppID)

	// walk the opportunity to the viewing stage and record a deal
	_, err = crm.Pipeline.MoveToStage(ctx, tenant, oppID, models.StageProspecting)
	require.NoError(t, err)
	_, err = crm.Pipeline.MoveToStage(ctx, tenant, oppID, models.StageViewing)
	require.NoError(t, err)

	deal, err := crm.Deals.Create(ctx, tenant, &models.Deal{
		ClientID:      client.ID,
		OpportunityID: oppID,
		PropertyRef:   "AP-1021",
		AskingPrice:   340000,
		AgreedPrice:   330000,
	})
	require.NoError(t, err)

	// a proposal in viewing auto-advances the opportunity
	opp, err := crm.Pipeline.AddProposal(ctx, tenant, oppID, models.Proposal{Amount: 330000})
	require.NoError(t, err)
	assert.Equal(t, models.StageNegotiation, opp.Stage)
	assert.Contains(t, opp.DealIDs, deal.ID)

	// close the deal and complete the opportunity
	_, err = crm.Deals.MoveToStage(ctx, tenant, deal.ID, models.DealFechado)
	require.NoError(t, err)
	opp, err = crm.Pipeline.MoveToStage(ctx, tenant, oppID, models.StageCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, opp.Status)
	assert.Equal(t, 100, opp.Probability)

	got, err := crm.Clients.Get(ctx, tenant, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DealStats.ClosedDeals)
	assert.Equal(t, 330000.0, got.DealStats.TotalVolume)
}
