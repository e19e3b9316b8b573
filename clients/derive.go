// ABOUTME: Qualification lifecycle and the opportunity deriver
// ABOUTME: Adding a qualification transactionally creates its opportunity
package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
	"github.com/openimob/imob/pipeline"
)

// DerivationError reports qualifications whose opportunity could not be
// created. The client itself is persisted; callers decide whether to retry.
type DerivationError struct {
	ClientID string
	Types    []string
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("client %s: opportunity derivation failed for %v", e.ClientID, e.Types)
}

// AddQualification appends a qualification to the client and derives its
// opportunity. The opportunity create and the qualification write-back are
// one transaction, so a stored qualification never references a missing
// opportunity.
func (s *Service) AddQualification(ctx context.Context, tenantID, clientID string, q models.Qualification) (*models.Qualification, error) {
	if !q.Type.Valid() {
		return nil, &docstore.ValidationError{Field: "type", Message: fmt.Sprintf("unknown qualification type %q", q.Type)}
	}
	client, err := s.repo.GetByID(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if q.ID == "" {
		q.ID = docstore.NewID()
	}
	q.Active = true
	q.CreatedAt = now

	opp, err := buildOpportunity(tenantID, client, &q, now)
	if err != nil {
		return nil, err
	}
	q.OpportunityID = opp.ID

	quals := append(append([]models.Qualification{}, client.Qualifications...), q)
	scored := *client
	scored.Qualifications = quals
	score := CalculateClientScoreAt(&scored, nil, now)

	oppDoc, err := docstore.Encode(opp)
	if err != nil {
		return nil, err
	}
	oppPath := s.opps.Under(CollectionClients, clientID).DocPath(tenantID, opp.ID)
	clientPath := s.repo.DocPath(tenantID, clientID)

	err = s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Set(oppPath, oppDoc); err != nil {
			return err
		}
		return tx.Update(clientPath, map[string]any{
			"qualifications": docstore.EncodeValue(quals),
			"clientScore":    docstore.EncodeValue(score),
			"updatedAt":      now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("derive opportunity for %s: %w", q.Type, err)
	}
	return &q, nil
}

// RemoveQualification drops the qualification from the client. A linked
// opportunity is cancelled, not deleted, so its history survives.
func (s *Service) RemoveQualification(ctx context.Context, tenantID, clientID, qualificationID string) error {
	client, err := s.repo.GetByID(ctx, tenantID, clientID)
	if err != nil {
		return err
	}
	removed := client.QualificationByID(qualificationID)
	if removed == nil {
		return docstore.ErrNotFound
	}
	opportunityID := removed.OpportunityID

	quals := make([]models.Qualification, 0, len(client.Qualifications)-1)
	for _, q := range client.Qualifications {
		if q.ID != qualificationID {
			quals = append(quals, q)
		}
	}
	now := time.Now().UTC()
	scored := *client
	scored.Qualifications = quals
	score := CalculateClientScoreAt(&scored, nil, now)

	clientPath := s.repo.DocPath(tenantID, clientID)
	return s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Update(clientPath, map[string]any{
			"qualifications": docstore.EncodeValue(quals),
			"clientScore":    docstore.EncodeValue(score),
			"updatedAt":      now,
		}); err != nil {
			return err
		}
		if opportunityID == "" {
			return nil
		}
		oppPath := s.opps.Under(CollectionClients, clientID).DocPath(tenantID, opportunityID)
		err := tx.Update(oppPath, map[string]any{
			"status":       string(models.StatusCancelled),
			"isActive":     false,
			"statusReason": "qualification removed",
			"probability":  0,
			"updatedAt":    now,
		})
		if err == docstore.ErrNotFound {
			// Qualification pointed at a missing opportunity; removing it
			// repairs the inconsistency, so don't fail the operation.
			s.log.WithFields(logrus.Fields{"client": clientID, "opportunity": opportunityID}).
				Warn("linked opportunity missing during qualification removal")
			return nil
		}
		return err
	})
}

// buildOpportunity maps a qualification and its preferences onto a new
// opportunity record.
func buildOpportunity(tenantID string, client *models.Client, q *models.Qualification, now time.Time) (*models.Opportunity, error) {
	opp := &models.Opportunity{
		ClientID:        client.ID,
		ClientName:      client.Name,
		QualificationID: q.ID,
		Type:            q.Type,
		Stage:           models.StageQualification,
		Status:          models.StatusActive,
		CreatedFrom:     "qualification",
		IsActive:        true,
		StageHistory:    []models.StageEntry{{Stage: models.StageQualification, EnteredAt: now}},
	}
	opp.ID = docstore.NewID()
	opp.TenantID = tenantID
	opp.CreatedAt = now
	opp.UpdatedAt = now

	switch q.Type {
	case models.QualificationBuyer:
		opp.Title = "Compra - " + client.Name
		if q.Buyer != nil {
			opp.BudgetMin = q.Buyer.BudgetMin
			opp.BudgetMax = q.Buyer.BudgetMax
			opp.Urgency = q.Buyer.Urgency
			opp.Value = q.Buyer.BudgetMax
		}
	case models.QualificationSeller:
		opp.Title = "Venda - " + client.Name
		if q.Seller != nil {
			opp.AskingPrice = q.Seller.AskingPrice
			opp.Timeline = q.Seller.Timeline
			opp.Value = q.Seller.AskingPrice
		}
	case models.QualificationTenant:
		opp.Title = "Arrendamento - " + client.Name
		if q.Tenant != nil {
			opp.Value = q.Tenant.RentMax * 12
		}
	case models.QualificationLandlord:
		opp.Title = "Arrendamento (senhorio) - " + client.Name
		if q.Landlord != nil {
			opp.Value = q.Landlord.MonthlyRent * 12
		}
	case models.QualificationInvestor:
		opp.Title = "Investimento - " + client.Name
		if q.Investor != nil {
			opp.Value = q.Investor.InvestmentBudget
		}
	case models.QualificationDeveloper:
		opp.Title = "Promoção - " + client.Name
	case models.QualificationPropertyManager:
		opp.Title = "Gestão - " + client.Name
	}

	opp.Probability = pipeline.CalculateProbability(opp)

	if opp.ClientID == "" || !opp.Stage.Valid() || opp.Title == "" {
		return nil, &docstore.ValidationError{Field: "opportunity", Message: "derived opportunity is incomplete"}
	}
	return opp, nil
}
