// ABOUTME: Spouse promotion: turning an embedded spouse into its own client
// ABOUTME: Links both records bidirectionally inside one transaction
package clients

import (
	"context"
	"time"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
)

// LinkSpouseAsClient promotes the client's embedded spouse into an
// independent client record. If a client already matches the spouse's NIF
// or email it is linked instead of creating a new one. Both records end up
// pointing at each other.
func (s *Service) LinkSpouseAsClient(ctx context.Context, tenantID, clientID string) (*models.Client, error) {
	client, err := s.repo.GetByID(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if client.Spouse == nil {
		return nil, &docstore.ValidationError{Field: "spouse", Message: "client has no spouse record"}
	}
	if client.Spouse.LinkedClientID != "" {
		return s.repo.GetByID(ctx, tenantID, client.Spouse.LinkedClientID)
	}

	existing, err := s.findSpouseMatch(ctx, tenantID, client.Spouse)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	clientPath := s.repo.DocPath(tenantID, clientID)

	if existing != nil {
		spouseOfExisting := existing.Spouse
		if spouseOfExisting == nil {
			spouseOfExisting = &models.Spouse{Name: client.Name, NIF: client.NIF, Email: client.Email, Phone: client.Phone}
		}
		spouseOfExisting.LinkedClientID = client.ID

		linked := *client.Spouse
		linked.LinkedClientID = existing.ID

		existingPath := s.repo.DocPath(tenantID, existing.ID)
		err = s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
			if err := tx.Update(clientPath, map[string]any{
				"spouse":    docstore.EncodeValue(&linked),
				"updatedAt": now,
			}); err != nil {
				return err
			}
			return tx.Update(existingPath, map[string]any{
				"spouse":    docstore.EncodeValue(spouseOfExisting),
				"updatedAt": now,
			})
		})
		if err != nil {
			return nil, err
		}
		return s.repo.GetByID(ctx, tenantID, existing.ID)
	}

	spouseClient := &models.Client{
		Name:         client.Spouse.Name,
		NIF:          client.Spouse.NIF,
		Email:        client.Spouse.Email,
		Phone:        client.Spouse.Phone,
		AnnualIncome: client.Spouse.AnnualIncome,
		ReferredBy:   client.Name,
		Spouse: &models.Spouse{
			Name:           client.Name,
			NIF:            client.NIF,
			Email:          client.Email,
			Phone:          client.Phone,
			AnnualIncome:   client.AnnualIncome,
			LinkedClientID: client.ID,
		},
	}
	spouseClient.ID = docstore.NewID()
	spouseClient.TenantID = tenantID
	spouseClient.CreatedAt = now
	spouseClient.UpdatedAt = now
	spouseClient.Score = CalculateClientScoreAt(spouseClient, nil, now)

	linked := *client.Spouse
	linked.LinkedClientID = spouseClient.ID

	spouseDoc, err := docstore.Encode(spouseClient)
	if err != nil {
		return nil, err
	}
	spousePath := s.repo.DocPath(tenantID, spouseClient.ID)

	err = s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Set(spousePath, spouseDoc); err != nil {
			return err
		}
		return tx.Update(clientPath, map[string]any{
			"spouse":    docstore.EncodeValue(&linked),
			"updatedAt": now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.bumpClientCount(ctx, tenantID, 1)
	return spouseClient, nil
}

// findSpouseMatch checks NIF first, then email, mirroring the duplicate
// short-circuit order for identity-bearing fields.
func (s *Service) findSpouseMatch(ctx context.Context, tenantID string, spouse *models.Spouse) (*models.Client, error) {
	for _, c := range []struct{ field, value string }{
		{"nif", spouse.NIF},
		{"email", spouse.Email},
	} {
		if c.value == "" {
			continue
		}
		page, err := s.repo.List(ctx, tenantID, docstore.ListOptions{
			Filters:  []docstore.Filter{{Field: c.field, Op: "==", Value: c.value}},
			PageSize: 1,
		})
		if err != nil {
			return nil, err
		}
		if len(page.Items) > 0 {
			return page.Items[0], nil
		}
	}
	return nil, nil
}
