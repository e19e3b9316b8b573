// ABOUTME: Buyer-side deal service: pursuit of one property per deal
// ABOUTME: Writes the canonical nested layout, reads the legacy one too
package deals

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
)

// CollectionDeals is the nested collection name. Canonically deals live
// under clients/{c}/opportunities/{o}/deals; a legacy layout put them at
// clients/{c}/deals. Group reads resolve both; writes only ever use the
// canonical path.
const CollectionDeals = "deals"

const (
	collectionClients       = "clients"
	collectionOpportunities = "opportunities"
)

// Service manages buyer-side deals.
type Service struct {
	be      docstore.Backend
	repo    *docstore.Repository[models.Deal, *models.Deal]
	opps    *docstore.Repository[models.Opportunity, *models.Opportunity]
	clients *docstore.Repository[models.Client, *models.Client]
	log     *logrus.Logger
}

// NewService wires a deal service on the given backend.
func NewService(be docstore.Backend, log *logrus.Logger, opts ...docstore.RepositoryOption) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		be:      be,
		repo:    docstore.NewRepository[models.Deal, *models.Deal](be, CollectionDeals, append([]docstore.RepositoryOption{docstore.WithGroupReads(), docstore.WithLogger(log)}, opts...)...),
		opps:    docstore.NewRepository[models.Opportunity, *models.Opportunity](be, collectionOpportunities, append([]docstore.RepositoryOption{docstore.WithGroupReads(), docstore.WithLogger(log)}, opts...)...),
		clients: docstore.NewRepository[models.Client, *models.Client](be, collectionClients, append([]docstore.RepositoryOption{docstore.WithLogger(log)}, opts...)...),
		log:     log,
	}
}

// Repository exposes the deal repository for list, search and subscribe.
func (s *Service) Repository() *docstore.Repository[models.Deal, *models.Deal] {
	return s.repo
}

// Create persists a new deal under its opportunity and records the deal id
// on the opportunity, in one transaction.
func (s *Service) Create(ctx context.Context, tenantID string, deal *models.Deal) (*models.Deal, error) {
	if deal.PropertyRef == "" {
		return nil, &docstore.ValidationError{Field: "propertyRef", Message: "required"}
	}
	if deal.ClientID == "" || deal.OpportunityID == "" {
		return nil, &docstore.ValidationError{Field: "opportunityId", Message: "client and opportunity are required"}
	}
	opp, err := s.opps.GetByID(ctx, tenantID, deal.OpportunityID)
	if err != nil {
		return nil, err
	}
	if opp.ClientID != deal.ClientID {
		return nil, &docstore.ValidationError{Field: "clientId", Message: "opportunity belongs to another client"}
	}

	now := time.Now().UTC()
	if deal.Stage == "" {
		deal.Stage = models.DealLead
	}
	if !deal.Stage.Valid() {
		return nil, &docstore.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown deal stage %q", deal.Stage)}
	}
	deal.ID = docstore.NewID()
	deal.TenantID = tenantID
	deal.CreatedAt = now
	deal.UpdatedAt = now

	dealDoc, err := docstore.Encode(deal)
	if err != nil {
		return nil, err
	}
	dealPath := s.repo.
		Under(collectionClients, deal.ClientID, collectionOpportunities, deal.OpportunityID).
		DocPath(tenantID, deal.ID)
	oppPath, err := s.opps.Path(ctx, tenantID, deal.OpportunityID)
	if err != nil {
		return nil, err
	}

	dealIDs := append(append([]string{}, opp.DealIDs...), deal.ID)
	err = s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Set(dealPath, dealDoc); err != nil {
			return err
		}
		return tx.Update(oppPath, map[string]any{
			"dealIds":   docstore.EncodeValue(dealIDs),
			"updatedAt": now,
		})
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

// Get fetches one deal by id, in either layout.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// MoveToStage moves the deal through its own stage enum. Closing a deal as
// fechado stamps closure and rolls the client's deal stats.
func (s *Service) MoveToStage(ctx context.Context, tenantID, id string, stage models.DealStage) (*models.Deal, error) {
	if !stage.Valid() {
		return nil, &docstore.ValidationError{Field: "stage", Message: fmt.Sprintf("unknown deal stage %q", stage)}
	}
	deal, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if deal.Stage.Terminal() {
		return nil, &docstore.ValidationError{Field: "stage", Message: "deal is already closed"}
	}

	now := time.Now().UTC()
	patch := map[string]any{
		"stage": string(stage),
		"activities": docstore.EncodeValue(appendActivity(deal.Activities, "stage_changed",
			fmt.Sprintf("moved to %s", stage), now)),
	}
	if stage.Terminal() {
		patch["closedAt"] = now
	}
	updated, err := s.repo.Update(ctx, tenantID, id, patch)
	if err != nil {
		return nil, err
	}
	if stage == models.DealFechado {
		s.rollClientStats(ctx, tenantID, deal)
	}
	return updated, nil
}

// AddOffer appends an offer to the deal.
func (s *Service) AddOffer(ctx context.Context, tenantID, id string, offer models.Offer) (*models.Deal, error) {
	if offer.Amount <= 0 {
		return nil, &docstore.ValidationError{Field: "amount", Message: "must be positive"}
	}
	deal, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	offer.ID = docstore.NewLogID()
	offer.CreatedAt = now
	if offer.Status == "" {
		offer.Status = models.OfferPending
	}
	offers := append(append([]models.Offer{}, deal.Offers...), offer)
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"offers": docstore.EncodeValue(offers),
		"activities": docstore.EncodeValue(appendActivity(deal.Activities, "offer_added",
			fmt.Sprintf("offer of %.2f", offer.Amount), now)),
	})
}

// AddViewing appends a viewing record.
func (s *Service) AddViewing(ctx context.Context, tenantID, id string, viewing models.Viewing) (*models.Deal, error) {
	deal, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	viewing.ID = docstore.NewLogID()
	viewings := append(append([]models.Viewing{}, deal.Viewings...), viewing)
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"viewings": docstore.EncodeValue(viewings),
	})
}

// AddActivity appends one activity entry.
func (s *Service) AddActivity(ctx context.Context, tenantID, id, activityType, summary string) (*models.Deal, error) {
	deal, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"activities": docstore.EncodeValue(appendActivity(deal.Activities, activityType, summary, now)),
	})
}

// LinkSellerOpportunity cross-links the deal with the seller-side
// opportunity when both sides run under this tenant. Both writes happen in
// one transaction.
func (s *Service) LinkSellerOpportunity(ctx context.Context, tenantID, dealID, sellerOpportunityID string) error {
	sellerOpp, err := s.opps.GetByID(ctx, tenantID, sellerOpportunityID)
	if err != nil {
		return err
	}
	dealPath, err := s.repo.Path(ctx, tenantID, dealID)
	if err != nil {
		return err
	}
	sellerPath, err := s.opps.Path(ctx, tenantID, sellerOpportunityID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	dealIDs := sellerOpp.DealIDs
	linked := false
	for _, id := range dealIDs {
		if id == dealID {
			linked = true
			break
		}
	}
	if !linked {
		dealIDs = append(append([]string{}, dealIDs...), dealID)
	}

	return s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Update(dealPath, map[string]any{
			"sellerOpportunityId": sellerOpportunityID,
			"updatedAt":           now,
		}); err != nil {
			return err
		}
		return tx.Update(sellerPath, map[string]any{
			"dealIds":   docstore.EncodeValue(dealIDs),
			"updatedAt": now,
		})
	})
}

// rollClientStats updates the client's aggregate deal stats after a close.
// Stats upkeep never fails the primary operation.
func (s *Service) rollClientStats(ctx context.Context, tenantID string, deal *models.Deal) {
	client, err := s.clients.GetByID(ctx, tenantID, deal.ClientID)
	if err != nil {
		s.log.WithError(err).WithField("client", deal.ClientID).Warn("deal stats rollup skipped")
		return
	}
	stats := client.DealStats
	stats.TotalDeals++
	stats.ClosedDeals++
	price := deal.AgreedPrice
	if price == 0 {
		price = deal.AskingPrice
	}
	stats.TotalVolume += price
	if _, err := s.clients.Update(ctx, tenantID, deal.ClientID, map[string]any{
		"dealStats": docstore.EncodeValue(stats),
	}); err != nil {
		s.log.WithError(err).WithField("client", deal.ClientID).Warn("deal stats rollup failed")
	}
}

func appendActivity(activities []models.Activity, activityType, summary string, now time.Time) []models.Activity {
	return append(append([]models.Activity{}, activities...), models.Activity{
		ID:         docstore.NewLogID(),
		Type:       activityType,
		Summary:    summary,
		OccurredAt: now,
	})
}
